package backstage

import (
	"context"
	"html/template"
	"io"
	"log/slog"

	"github.com/light-letter/lightletter/internal/store"
	"github.com/light-letter/lightletter/pkg/channel"
	"github.com/light-letter/lightletter/pkg/page"
	"github.com/light-letter/lightletter/pkg/session"
)

// Page routes of the backstage.
const (
	RouteHome  = "/backstage"
	RouteLogin = "/backstage/login"
	RoutePosts = "/backstage/posts"
)

const recentPostCount = 20

var templates = template.Must(template.New("backstage").Parse(`
{{define "home"}}<div class="backstage"><main class="backstage-home">
{{- if .User}}<h1>Welcome, {{.User.Name}}</h1><p class="account">Signed in as {{.User.ID}}</p><a href="/backstage/posts">Your posts</a>
{{- else}}<h1>Backstage</h1><p>You are not signed in.</p><a href="/backstage/login">Sign in</a>{{end -}}
</main></div>{{end}}

{{define "login"}}<div class="backstage"><main class="backstage-login">
<h1>Sign in</h1>
<form method="post" action="/rpc/backstage/login" data-rpc="login">
<label>Account <input name="account" value="{{.Username}}" minlength="4" maxlength="32" required></label>
<label>Password <input name="pwd" type="password" required></label>
<button type="submit">Sign in</button>
</form>
</main></div>{{end}}

{{define "posts"}}<div class="backstage"><main class="backstage-posts">
{{- if not .User}}<p>Sign in to manage your posts. <a href="/backstage/login">Sign in</a></p>
{{- else}}<h1>Posts by {{.User.Name}}</h1>
{{- if .Posts}}<ul>{{range .Posts}}<li class="post {{.Status}}"><a href="/posts/{{.ID}}">{{.Title}}</a> <span class="status">{{.Status}}</span></li>{{end}}</ul>
{{- else}}<p class="empty">No posts yet.</p>{{end}}{{end -}}
</main></div>{{end}}

{{define "notfound"}}<div class="backstage"><main class="backstage-missing"><h1>Not Found</h1><p>This backstage page does not exist.</p><a href="/backstage">Back</a></main></div>{{end}}
`))

// HomeData is the data of the backstage home page.
type HomeData struct {
	User *session.LoginUser `json:"user"`
}

type homePage struct {
	logger *slog.Logger
	HomeData
}

func (p *homePage) Fetch(ctx context.Context, args page.Args[struct{}]) (HomeData, page.MetaData) {
	meta := page.MetaData{Title: "Backstage"}
	resp, err := channel.Request[CurrentUserResp](ctx, args.Channel, PathCurrentUser, Empty{})
	if err != nil {
		p.logger.Warn("fetch current user failed", "error", err)
		return HomeData{}, meta
	}
	return HomeData{User: resp.User}, meta
}

func (p *homePage) Apply(d HomeData)         { p.HomeData = d }
func (p *homePage) Render(w io.Writer) error { return templates.ExecuteTemplate(w, "home", p.HomeData) }

// LoginQuery is the query string of the login page.
type LoginQuery struct {
	Username string `json:"username"`
}

// LoginData is the data of the login page.
type LoginData struct {
	Username string `json:"username"`
}

type loginPage struct {
	LoginData
}

func (p *loginPage) Fetch(ctx context.Context, args page.Args[LoginQuery]) (LoginData, page.MetaData) {
	return LoginData{Username: args.Query.Username}, page.MetaData{Title: "Sign in"}
}

func (p *loginPage) Apply(d LoginData)        { p.LoginData = d }
func (p *loginPage) Render(w io.Writer) error { return templates.ExecuteTemplate(w, "login", p.LoginData) }

// PostsData is the data of the post management page.
type PostsData struct {
	User  *session.LoginUser `json:"user"`
	Posts []store.PostMeta   `json:"posts"`
}

type postsPage struct {
	logger *slog.Logger
	PostsData
}

func (p *postsPage) Fetch(ctx context.Context, args page.Args[struct{}]) (PostsData, page.MetaData) {
	meta := page.MetaData{Title: "Posts"}
	user, err := channel.Request[CurrentUserResp](ctx, args.Channel, PathCurrentUser, Empty{})
	if err != nil {
		p.logger.Warn("fetch current user failed", "error", err)
		return PostsData{}, meta
	}
	if user.User == nil {
		return PostsData{}, meta
	}

	list, err := channel.Request[PostListResp](ctx, args.Channel, PathPostList, PostListReq{Count: recentPostCount, Mine: true})
	if err != nil {
		p.logger.Warn("fetch posts failed", "error", err)
		return PostsData{User: user.User}, meta
	}
	return PostsData{User: user.User, Posts: list.Posts}, meta
}

func (p *postsPage) Apply(d PostsData)        { p.PostsData = d }
func (p *postsPage) Render(w io.Writer) error { return templates.ExecuteTemplate(w, "posts", p.PostsData) }

type notFoundPage struct{}

func (notFoundPage) Fetch(ctx context.Context, args page.Args[struct{}]) (struct{}, page.MetaData) {
	return struct{}{}, page.MetaData{Title: "Not Found"}
}

func (notFoundPage) Apply(struct{}) {}

func (notFoundPage) Render(w io.Writer) error { return templates.ExecuteTemplate(w, "notfound", nil) }

// Pages returns the backstage page set.
func Pages(logger *slog.Logger, opts ...page.SetOption) *page.Set {
	if logger == nil {
		logger = slog.Default()
	}
	return page.MustNewSet(
		page.Define("", func() page.Component[struct{}, struct{}] { return notFoundPage{} }),
		[]page.Definition{
			page.Define(RouteHome, func() page.Component[struct{}, HomeData] { return &homePage{logger: logger} }),
			page.Define(RouteLogin, func() page.Component[LoginQuery, LoginData] { return &loginPage{} }),
			page.Define(RoutePosts, func() page.Component[struct{}, PostsData] { return &postsPage{logger: logger} }),
		},
		opts...,
	)
}
