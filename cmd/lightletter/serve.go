package main

import (
	"context"
	"encoding/hex"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/light-letter/lightletter/internal/config"
	"github.com/light-letter/lightletter/internal/errors"
	"github.com/light-letter/lightletter/internal/server"
	"github.com/light-letter/lightletter/internal/site"
	"github.com/light-letter/lightletter/internal/telemetry"
	"github.com/light-letter/lightletter/internal/theme"
	"github.com/light-letter/lightletter/internal/theme/ivyleaf"
	"github.com/light-letter/lightletter/pkg/page"
	"github.com/light-letter/lightletter/pkg/rpc"
	"github.com/light-letter/lightletter/pkg/session"
)

// themes lists the themes compiled into the binary.
func themes() *theme.Registry {
	return theme.NewRegistry(ivyleaf.Theme{})
}

func serveCmd(root func() string) *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve every configured site",
		Long: `Load config.toml, initialize every site and serve them on all
configured ports until interrupted.

Examples:
  lightletter serve
  lightletter serve --root /srv/sites --dev`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, root(), dev)
		},
	}

	cmd.Flags().BoolVar(&dev, "dev", false, "Watch theme assets and live reload browsers")

	return cmd
}

func runServe(ctx context.Context, root string, dev bool) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if dev {
		cfg.Dev = true
	}
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(telemetry.WithRegistry(registry))

	tracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	sessions, err := openSessions(cfg, logger, metrics)
	if err != nil {
		return err
	}

	states, err := site.Build(ctx, cfg, themes(), logger,
		site.WithRPCOptions(rpc.WithObserver(metrics)),
		site.WithPageOptions(page.WithObserver(metrics)),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := site.Close(states); err != nil {
			logger.Warn("closing sites failed", "error", err)
		}
	}()

	go sessions.Run(ctx, cfg.Session.SweepInterval)

	srv := server.New(states, sessions,
		server.WithLogger(logger),
		server.WithObserver(metrics),
		server.WithDev(cfg.Dev),
		server.WithMetricsEndpoint(cfg.Telemetry.MetricsAddr, registry),
	)
	logger.Info("lightletter starting", "version", version, "root", cfg.Root(), "sites", len(states), "dev", cfg.Dev, "tracing", tracing.Enabled())
	return srv.ListenAndServe(ctx, cfg.Addrs())
}

// openSessions builds the token manager. An empty secret gets a random
// per-process key, so tokens do not survive a restart.
func openSessions(cfg *config.Config, logger *slog.Logger, obs session.Observer) (*session.Manager, error) {
	store, err := session.NewFileStore(cfg.SessionDir())
	if err != nil {
		return nil, errors.New(errors.CodeSessionDir).WithSubject(cfg.SessionDir()).Wrap(err)
	}

	secret := []byte(cfg.Session.Secret)
	if len(secret) == 0 {
		secret, err = session.NewSecret()
		if err != nil {
			return nil, err
		}
		logger.Warn("session.secret is empty, using a random key", "key_prefix", hex.EncodeToString(secret[:4]))
	}

	opts := []session.ManagerOption{
		session.WithLogger(logger),
		session.WithObserver(obs),
	}
	if cfg.Session.TTL > 0 {
		opts = append(opts, session.WithTTL(cfg.Session.TTL))
	}
	logger.Debug("session store", "dir", store.Dir())
	return session.NewManager(store, secret, opts...), nil
}
