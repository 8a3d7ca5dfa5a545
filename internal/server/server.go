package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/light-letter/lightletter/internal/errors"
	"github.com/light-letter/lightletter/internal/site"
	"github.com/light-letter/lightletter/internal/theme"
	"github.com/light-letter/lightletter/pkg/channel"
	"github.com/light-letter/lightletter/pkg/render"
	"github.com/light-letter/lightletter/pkg/session"
)

const (
	defaultShutdownTimeout   = 10 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
)

// Server serves every configured site on every listen address.
type Server struct {
	sites    []*site.State
	sessions *session.Manager
	logger   *slog.Logger
	observer Observer
	dev      bool

	shutdownTimeout   time.Duration
	readHeaderTimeout time.Duration

	metricsAddr     string
	metricsGatherer prometheus.Gatherer

	// hubs holds one live reload hub per blog site in dev mode.
	hubs       map[*site.State]*theme.ReloadHub
	dispatcher *Dispatcher
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithObserver sets the dispatch observer.
func WithObserver(o Observer) Option {
	return func(s *Server) {
		s.observer = o
	}
}

// WithDev enables theme watching and live reload.
func WithDev(dev bool) Option {
	return func(s *Server) {
		s.dev = dev
	}
}

// WithShutdownTimeout bounds the graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// WithMetricsEndpoint serves g as /metrics on a separate listener.
func WithMetricsEndpoint(addr string, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metricsAddr = addr
		s.metricsGatherer = g
	}
}

// New builds the handler tree for sites. Sessions are shared by all sites.
func New(sites []*site.State, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		sites:             sites,
		sessions:          sessions,
		shutdownTimeout:   defaultShutdownTimeout,
		readHeaderTimeout: defaultReadHeaderTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.dispatcher = NewDispatcher(s.observer, s.logger)
	s.hubs = make(map[*site.State]*theme.ReloadHub)
	for _, st := range sites {
		var h http.Handler
		switch st.Kind {
		case site.Blog:
			h = s.blogRouter(st)
		default:
			h = s.staticRouter(st)
		}
		s.dispatcher.Add(st.Name, st.Host, st.Aliases, h)
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.dispatcher
}

func newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		forbidden(w)
	})
	return r
}

func (s *Server) blogRouter(st *site.State) http.Handler {
	r := newRouter()

	r.Handle("/files/*", fileHandler(st.FilesDir(), "/files/"))
	r.Handle("/theme/*", fileHandler(st.Assets.Dir(), "/theme/"))
	r.Get(StylesheetPath, st.Assets.ServeStylesheet)
	r.Head(StylesheetPath, st.Assets.ServeStylesheet)
	r.Handle(channel.RPCPrefix+"/*", s.rpcHandler(st))

	if s.dev {
		hub := theme.NewReloadHub(s.logger.With("site", st.Name))
		s.hubs[st] = hub
		r.Handle(render.DefaultReloadPath, hub)
	}

	pages := s.pageHandler(st)
	r.Handle("/", pages)
	r.Handle("/*", pages)
	return r
}

func (s *Server) staticRouter(st *site.State) http.Handler {
	r := newRouter()
	files := fileHandler(st.StaticDir(), "/")
	r.Handle("/", files)
	r.Handle("/*", files)
	return r
}

// ListenAndServe binds every address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addrs []string) error {
	listeners := make([]net.Listener, 0, len(addrs))
	for _, addr := range addrs {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return errors.New(errors.CodeListen).WithSubject(addr).Wrap(err)
		}
		listeners = append(listeners, ln)
	}
	return s.Serve(ctx, listeners)
}

// Serve serves on listeners until ctx is done or one listener fails, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listeners []net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Handler:           s.dispatcher,
		ReadHeaderTimeout: s.readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	var servers []*http.Server
	servers = append(servers, srv)

	errCh := make(chan error, len(listeners)+1)
	for _, ln := range listeners {
		s.logger.Info("listening", "addr", ln.Addr().String(), "sites", s.dispatcher.Hosts())
		go func(ln net.Listener) {
			errCh <- srv.Serve(ln)
		}(ln)
	}

	if s.metricsAddr != "" && s.metricsGatherer != nil {
		ln, err := net.Listen("tcp", s.metricsAddr)
		if err != nil {
			_ = srv.Close()
			return errors.New(errors.CodeListen).WithSubject(s.metricsAddr).Wrap(err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(s.metricsGatherer, promhttp.HandlerOpts{}))
		msrv := &http.Server{Handler: mux, ReadHeaderTimeout: s.readHeaderTimeout}
		servers = append(servers, msrv)
		s.logger.Info("metrics listening", "addr", ln.Addr().String())
		go func() {
			errCh <- msrv.Serve(ln)
		}()
	}

	var wg sync.WaitGroup
	for st, hub := range s.hubs {
		wg.Add(1)
		go func(st *site.State, hub *theme.ReloadHub) {
			defer wg.Done()
			logger := s.logger.With("site", st.Name)
			err := theme.Watch(ctx, st.Assets, hub, theme.WatcherConfig{}, logger)
			if err != nil && !stderrors.Is(err, context.Canceled) {
				logger.Warn("theme watcher stopped", "dir", st.Assets.Dir(), "error", err)
			}
		}(st, hub)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			serveErr = errors.New(errors.CodeListen).Wrap(err)
		}
	}

	s.logger.Info("shutting down")
	shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer done()

	cancel()
	for _, hub := range s.hubs {
		hub.Close()
	}
	var errs []error
	if serveErr != nil {
		errs = append(errs, serveErr)
	}
	for _, hs := range servers {
		if err := hs.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	wg.Wait()
	s.logger.Info("server shutdown complete")
	return stderrors.Join(errs...)
}
