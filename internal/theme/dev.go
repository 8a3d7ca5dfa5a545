package theme

import (
	"context"
	"log/slog"
)

// Watch reloads a's bundle whenever its directory changes and pushes the
// outcome to hub. It blocks until ctx is done.
func Watch(ctx context.Context, a *Assets, hub *ReloadHub, cfg WatcherConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := NewWatcher(a.Dir(), cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("watching theme assets", "theme", a.Theme().Name(), "dir", a.Dir())
	return w.Run(ctx, func(changes []Change) { apply(a, hub, changes, logger) })
}

func apply(a *Assets, hub *ReloadHub, changes []Change, logger *slog.Logger) {
	if len(changes) == 0 {
		return
	}
	if err := a.Reload(); err != nil {
		logger.Warn("theme reload failed", "dir", a.Dir(), "error", err)
		hub.NotifyError(err.Error())
		return
	}

	cssOnly := true
	for _, c := range changes {
		if c.Type != ChangeCSS {
			cssOnly = false
		}
	}
	if cssOnly {
		hub.NotifyCSS(changes[0].Path)
	} else {
		hub.NotifyReload()
	}
	logger.Debug("theme assets changed", "dir", a.Dir(), "changes", len(changes), "css_only", cssOnly)
}
