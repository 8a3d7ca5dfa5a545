package backstage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/light-letter/lightletter/internal/store"
	"github.com/light-letter/lightletter/pkg/rpc"
	"github.com/light-letter/lightletter/pkg/session"
)

// RPC paths served by every blog site.
const (
	PathLogin       = "/backstage/login"
	PathLogout      = "/backstage/logout"
	PathRegister    = "/backstage/register"
	PathCurrentUser = "/backstage/current-user"
	PathPostList    = "/backstage/post/list"
	PathPostGet     = "/backstage/post/get"
	PathPostSave    = "/backstage/post/save"
	PathSiteInfo    = "/site/info"
)

const (
	minPasswordLen = 6
	maxNameLen     = 64
	maxTitleLen    = 256
)

var accountRe = regexp.MustCompile(`^[-_0-9a-zA-Z]{4,32}$`)

// ValidAccount reports whether account is a legal login name.
func ValidAccount(account string) bool {
	return accountRe.MatchString(account)
}

// LoginReq logs a user in.
type LoginReq struct {
	Account string `json:"account"`
	Pwd     string `json:"pwd"`
}

func (r *LoginReq) Validate() error {
	if !ValidAccount(r.Account) {
		return errors.New("account must be 4-32 characters of letters, digits, '-' or '_'")
	}
	if r.Pwd == "" {
		return errors.New("password is required")
	}
	return nil
}

// LoginResult is the outcome of a login or registration.
type LoginResult string

const (
	Success       LoginResult = "success"
	NoSuchAccount LoginResult = "no_such_account"
	WrongPassword LoginResult = "wrong_password"
	AlreadyExists LoginResult = "already_exists"
	Denied        LoginResult = "denied"
)

// LoginResp carries the result and, on success, the logged in user.
type LoginResp struct {
	Result LoginResult        `json:"result"`
	User   *session.LoginUser `json:"user,omitempty"`
}

// RegisterReq creates an account.
type RegisterReq struct {
	Account string `json:"account"`
	Name    string `json:"name"`
	Pwd     string `json:"pwd"`
	Email   string `json:"email,omitempty"`
}

func (r *RegisterReq) Validate() error {
	if !ValidAccount(r.Account) {
		return errors.New("account must be 4-32 characters of letters, digits, '-' or '_'")
	}
	name := strings.TrimSpace(r.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return fmt.Errorf("name must be 1-%d characters", maxNameLen)
	}
	if len(r.Pwd) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	if r.Email != "" && !strings.Contains(r.Email, "@") {
		return errors.New("email is malformed")
	}
	return nil
}

// Empty is the request of calls without arguments.
type Empty struct{}

// LogoutResp reports whether a user was logged in.
type LogoutResp struct {
	WasLoggedIn bool `json:"was_logged_in"`
}

// CurrentUserResp is nil-user for anonymous sessions.
type CurrentUserResp struct {
	User *session.LoginUser `json:"user"`
}

// PostListReq pages through posts.
type PostListReq struct {
	Skip   int              `json:"skip"`
	Count  int              `json:"count"`
	Filter store.ListFilter `json:"filter"`
	// Mine limits the listing to the caller's own posts.
	Mine bool `json:"mine,omitempty"`
	// Published hides drafts and hidden links even from logged in callers.
	Published bool `json:"published,omitempty"`
}

func (r *PostListReq) Validate() error {
	if r.Skip < 0 {
		return errors.New("skip must not be negative")
	}
	if r.Count < 0 || r.Count > store.MaxListCount {
		return fmt.Errorf("count must be between 0 and %d", store.MaxListCount)
	}
	if !r.Filter.Kind.Valid() {
		return fmt.Errorf("unknown filter %q", r.Filter.Kind)
	}
	return nil
}

// PostListResp holds one page of posts.
type PostListResp struct {
	Posts []store.PostMeta `json:"posts"`
}

// PostGetReq fetches one post.
type PostGetReq struct {
	ID string `json:"id"`
}

func (r *PostGetReq) Validate() error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	return nil
}

// PostGetResp has a nil Post when the post does not exist or is not
// visible to the caller.
type PostGetResp struct {
	Post *store.Post `json:"post"`
}

// PostSaveReq creates (empty id) or updates a post.
type PostSaveReq struct {
	Post store.Post `json:"post"`
}

func (r *PostSaveReq) Validate() error {
	title := strings.TrimSpace(r.Post.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
		return fmt.Errorf("title must be 1-%d characters", maxTitleLen)
	}
	if _, err := r.Post.Status.MarshalText(); err != nil {
		return err
	}
	return nil
}

// PostSaveResp returns the stored post.
type PostSaveResp struct {
	Post *store.Post `json:"post"`
}

// SiteInfoResp is the public description of the site.
type SiteInfoResp struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type handlers struct {
	store  *store.Store
	logger *slog.Logger
}

// Register installs the backstage RPC handlers on reg.
func Register(reg *rpc.Registry, st *store.Store, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{store: st, logger: logger}

	rpc.Handle(reg, PathLogin, h.login)
	rpc.Handle(reg, PathLogout, h.logout)
	rpc.Handle(reg, PathRegister, h.register)
	rpc.Handle(reg, PathCurrentUser, h.currentUser)
	rpc.Handle(reg, PathPostList, h.postList)
	rpc.Handle(reg, PathPostGet, h.postGet)
	rpc.Handle(reg, PathPostSave, h.postSave)
	rpc.Handle(reg, PathSiteInfo, h.siteInfo)
}

func (h *handlers) login(ctx context.Context, req LoginReq, s *session.Session) (LoginResp, error) {
	u, err := h.store.Authenticate(ctx, req.Account, req.Pwd)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return LoginResp{Result: NoSuchAccount}, nil
	case errors.Is(err, store.ErrWrongPassword):
		h.logger.Info("login failed", "account", req.Account)
		return LoginResp{Result: WrongPassword}, nil
	case err != nil:
		return LoginResp{}, rpc.InternalError(err)
	}

	s.SetLoginUser(u.ID, u.Name)
	h.logger.Info("login", "account", u.ID)
	return LoginResp{Result: Success, User: s.LoginUser}, nil
}

func (h *handlers) logout(ctx context.Context, _ Empty, s *session.Session) (LogoutResp, error) {
	was := s.LoggedIn()
	s.Logout()
	return LogoutResp{WasLoggedIn: was}, nil
}

func (h *handlers) register(ctx context.Context, req RegisterReq, s *session.Session) (LoginResp, error) {
	open, err := store.ConfigValue(ctx, h.store, store.ConfigRegistrationOpen, false)
	if err != nil {
		return LoginResp{}, rpc.InternalError(err)
	}

	u := store.User{ID: req.Account, Name: strings.TrimSpace(req.Name), Email: req.Email}
	first, err := h.store.RegisterUser(ctx, u, req.Pwd, open)
	switch {
	case errors.Is(err, store.ErrRegistrationClosed):
		return LoginResp{Result: Denied}, nil
	case errors.Is(err, store.ErrExists):
		return LoginResp{Result: AlreadyExists}, nil
	case err != nil:
		return LoginResp{}, rpc.InternalError(err)
	}

	s.SetLoginUser(u.ID, u.Name)
	h.logger.Info("account registered", "account", u.ID, "first", first)
	return LoginResp{Result: Success, User: s.LoginUser}, nil
}

func (h *handlers) currentUser(ctx context.Context, _ Empty, s *session.Session) (CurrentUserResp, error) {
	if !s.LoggedIn() {
		return CurrentUserResp{}, nil
	}
	u := *s.LoginUser
	return CurrentUserResp{User: &u}, nil
}

func (h *handlers) postList(ctx context.Context, req PostListReq, s *session.Session) (PostListResp, error) {
	opts := store.ListOptions{
		Skip:          req.Skip,
		Count:         req.Count,
		Filter:        req.Filter,
		PublishedOnly: req.Published || !s.LoggedIn(),
	}
	if s.LoggedIn() {
		opts.Viewer = s.LoginUser.ID
	}
	if req.Mine {
		if err := rpc.RequireLogin(s); err != nil {
			return PostListResp{}, err
		}
		opts.Author = s.LoginUser.ID
	}
	if req.Count == 0 {
		return PostListResp{Posts: []store.PostMeta{}}, nil
	}
	posts, err := h.store.ListPosts(ctx, opts)
	if err != nil {
		return PostListResp{}, rpc.InternalError(err)
	}
	return PostListResp{Posts: posts}, nil
}

func (h *handlers) postGet(ctx context.Context, req PostGetReq, s *session.Session) (PostGetResp, error) {
	p, err := h.store.GetPost(ctx, req.ID)
	if errors.Is(err, store.ErrNotFound) {
		return PostGetResp{}, nil
	}
	if err != nil {
		return PostGetResp{}, rpc.InternalError(err)
	}
	if p.Status == store.Draft && (!s.LoggedIn() || p.Author != s.LoginUser.ID) {
		return PostGetResp{}, nil
	}
	return PostGetResp{Post: p}, nil
}

func (h *handlers) postSave(ctx context.Context, req PostSaveReq, s *session.Session) (PostSaveResp, error) {
	if err := rpc.RequireLogin(s); err != nil {
		return PostSaveResp{}, err
	}
	p := req.Post
	p.Author = s.LoginUser.ID
	saved, err := h.store.SavePost(ctx, p)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return PostSaveResp{}, rpc.IllegalArgsf("no such post %q", p.ID)
	case errors.Is(err, store.ErrNotOwner):
		h.logger.Warn("post save denied", "id", p.ID, "account", p.Author)
		return PostSaveResp{}, &rpc.Error{Kind: rpc.Unauthorized, Message: "post belongs to another author"}
	case err != nil:
		return PostSaveResp{}, rpc.InternalError(err)
	}
	h.logger.Info("post saved", "id", saved.ID, "account", s.LoginUser.ID)
	return PostSaveResp{Post: saved}, nil
}

func (h *handlers) siteInfo(ctx context.Context, _ Empty, _ *session.Session) (SiteInfoResp, error) {
	title, err := store.ConfigValue(ctx, h.store, store.ConfigSiteTitle, "")
	if err != nil {
		return SiteInfoResp{}, rpc.InternalError(err)
	}
	desc, err := store.ConfigValue(ctx, h.store, store.ConfigSiteDescription, "")
	if err != nil {
		return SiteInfoResp{}, rpc.InternalError(err)
	}
	return SiteInfoResp{Title: title, Description: desc}, nil
}
