// Package site turns the [[site]] tables of config.toml into running
// site states: directories, databases, themes and RPC handlers.
package site

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/light-letter/lightletter/internal/backstage"
	"github.com/light-letter/lightletter/internal/config"
	"github.com/light-letter/lightletter/internal/db"
	"github.com/light-letter/lightletter/internal/errors"
	"github.com/light-letter/lightletter/internal/store"
	"github.com/light-letter/lightletter/internal/theme"
	"github.com/light-letter/lightletter/pkg/page"
	"github.com/light-letter/lightletter/pkg/rpc"
)

// Kind is the type of a site.
type Kind uint8

const (
	// Blog sites have a database, a theme and the backstage.
	Blog Kind = iota + 1
	// Static sites serve a directory.
	Static
)

// String returns the config.toml spelling of the kind.
func (k Kind) String() string {
	switch k {
	case Blog:
		return config.TypeBlog
	case Static:
		return config.TypeStatic
	default:
		return "unknown"
	}
}

// ParseKind parses a config.toml site type.
func ParseKind(s string) (Kind, error) {
	switch s {
	case config.TypeBlog:
		return Blog, nil
	case config.TypeStatic:
		return Static, nil
	}
	return 0, errors.New(errors.CodeSiteKind).WithSubject(s)
}

const (
	filesDirName  = "files"
	staticDirName = "static"
)

// State is one initialized site. It is immutable after Build.
type State struct {
	Name    string
	Host    string
	Aliases []string
	Kind    Kind
	// Dir is sites/<name>.
	Dir string

	// The remaining fields are set for blog sites only.
	Assets    *theme.Assets
	Pages     *page.Set
	Backstage *page.Set
	DB        *sql.DB
	Store     *store.Store
	RPC       *rpc.Registry

	InitializedAt time.Time
}

// FilesDir is the upload directory of a blog site.
func (s *State) FilesDir() string {
	return filepath.Join(s.Dir, filesDirName)
}

// StaticDir is the document root of a static site.
func (s *State) StaticDir() string {
	return filepath.Join(s.Dir, staticDirName)
}

// Option configures Build.
type Option func(*builder)

// WithRPCOptions passes options to every site's RPC registry.
func WithRPCOptions(opts ...rpc.Option) Option {
	return func(b *builder) {
		b.rpcOpts = append(b.rpcOpts, opts...)
	}
}

// WithPageOptions passes options to every page set.
func WithPageOptions(opts ...page.SetOption) Option {
	return func(b *builder) {
		b.pageOpts = append(b.pageOpts, opts...)
	}
}

type builder struct {
	cfg      *config.Config
	themes   *theme.Registry
	logger   *slog.Logger
	rpcOpts  []rpc.Option
	pageOpts []page.SetOption
	now      func() time.Time
}

// Build initializes every configured site in order. The first failure
// aborts startup: sites built so far are closed and the error returned.
func Build(ctx context.Context, cfg *config.Config, themes *theme.Registry, logger *slog.Logger, opts ...Option) ([]*State, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &builder{cfg: cfg, themes: themes, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}

	states := make([]*State, 0, len(cfg.Sites))
	for _, sc := range cfg.Sites {
		st, err := b.build(ctx, sc)
		if err != nil {
			_ = Close(states)
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

func (b *builder) build(ctx context.Context, sc config.SiteConfig) (*State, error) {
	if !config.ValidSiteName(sc.Name) {
		return nil, errors.New(errors.CodeSiteName).WithSubject(sc.Name)
	}
	kind, err := ParseKind(sc.Type)
	if err != nil {
		return nil, err
	}
	logger := b.logger.With("site", sc.Name)

	st := &State{
		Name:    sc.Name,
		Host:    sc.Host,
		Aliases: append([]string(nil), sc.Alias...),
		Kind:    kind,
		Dir:     filepath.Join(b.cfg.SitesDir(), sc.Name),
	}

	sub := st.StaticDir()
	if kind == Blog {
		sub = st.FilesDir()
	}
	if err := os.MkdirAll(sub, 0o755); err != nil {
		return nil, errors.New(errors.CodeSiteDir).WithSubject(sub).Wrap(err)
	}

	if kind == Blog {
		if err := b.buildBlog(ctx, st, sc, logger); err != nil {
			return nil, err
		}
	}

	st.InitializedAt = b.now()
	logger.Info("site initialized", "kind", kind.String(), "host", sc.Host, "aliases", sc.Alias)
	return st, nil
}

func (b *builder) buildBlog(ctx context.Context, st *State, sc config.SiteConfig, logger *slog.Logger) error {
	dbName := sc.DatabaseName()
	if !config.ValidDatabaseName(dbName) {
		return errors.New(errors.CodeDatabaseName).WithSubject(dbName)
	}

	th, dir, err := b.resolveTheme(sc)
	if err != nil {
		return err
	}
	assets, err := theme.LoadAssets(th, dir, logger)
	if err != nil {
		return err
	}

	pool, err := db.Open(ctx, db.Path(b.cfg.DatabaseDir(), dbName), db.Options{
		MaxOpenConns:    b.cfg.DB.MaxOpenConns,
		MaxIdleConns:    b.cfg.DB.MaxIdleConns,
		ConnMaxLifetime: b.cfg.DB.ConnMaxLifetime,
		BusyTimeoutMS:   b.cfg.DB.BusyTimeoutMS,
	}, logger)
	if err != nil {
		return err
	}

	var storeOpts []store.Option
	if b.cfg.DB.CheckoutTimeout > 0 {
		storeOpts = append(storeOpts, store.WithQueryTimeout(b.cfg.DB.CheckoutTimeout))
	}
	st.DB = pool
	st.Store = store.New(pool, storeOpts...)
	st.RPC = rpc.NewRegistry(append([]rpc.Option{rpc.WithLogger(logger)}, b.rpcOpts...)...)
	backstage.Register(st.RPC, st.Store, logger)

	st.Assets = assets
	st.Pages = th.Pages(logger, b.pageOpts...)
	st.Backstage = backstage.Pages(logger, b.pageOpts...)
	return nil
}

func (b *builder) resolveTheme(sc config.SiteConfig) (theme.Theme, string, error) {
	if sc.Theme == "" {
		return nil, "", errors.New(errors.CodeThemeMissing).WithSubject(sc.Name)
	}
	dir, ok := b.cfg.ThemeDir(sc.Theme)
	if !ok {
		return nil, "", errors.New(errors.CodeThemeUndeclared).WithSubject(sc.Theme)
	}
	th, ok := b.themes.Lookup(sc.Theme)
	if !ok {
		return nil, "", errors.New(errors.CodeThemeUnknown).
			WithSubject(sc.Theme).
			WithDetail(fmt.Sprintf("Compiled themes: %v.", b.themes.Names()))
	}
	return th, dir, nil
}

// Close closes the database pools of states.
func Close(states []*State) error {
	var errs []error
	for _, st := range states {
		if st.DB != nil {
			if err := st.DB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("site %s: %w", st.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}
