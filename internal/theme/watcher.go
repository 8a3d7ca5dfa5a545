package theme

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeType represents the type of file change.
type ChangeType int

const (
	ChangeAsset ChangeType = iota
	ChangeCSS
	ChangeManifest
)

func (c ChangeType) String() string {
	switch c {
	case ChangeCSS:
		return "css"
	case ChangeManifest:
		return "manifest"
	default:
		return "asset"
	}
}

// Change represents a detected file change.
type Change struct {
	Path string
	Type ChangeType
}

// DefaultIgnore contains the name patterns skipped by the watcher.
var DefaultIgnore = []string{".git", "node_modules", "*.tmp", "*.swp", "*~"}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Debounce is the quiet period before changes are reported.
	Debounce time.Duration
	// Ignore holds base-name globs to skip.
	Ignore []string
}

// Watcher reports changes below an asset directory, batched per quiet
// period.
type Watcher struct {
	fsw      *fsnotify.Watcher
	root     string
	debounce time.Duration
	ignore   []string
	logger   *slog.Logger
}

// NewWatcher watches root and every directory below it.
func NewWatcher(root string, cfg WatcherConfig, logger *slog.Logger) (*Watcher, error) {
	if cfg.Debounce == 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	if cfg.Ignore == nil {
		cfg.Ignore = DefaultIgnore
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w := &Watcher{fsw: fsw, root: root, debounce: cfg.Debounce, ignore: cfg.Ignore, logger: logger}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.shouldIgnore(p) {
			return filepath.SkipDir
		}
		return fsw.Add(p)
	})
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}
	return w, nil
}

// Run delivers batches of changes to fn until ctx is done. Only the first
// change of each type in a batch is reported.
func (w *Watcher) Run(ctx context.Context, fn func([]Change)) error {
	defer w.fsw.Close()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending []Change
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.shouldIgnore(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				w.addIfDir(ev.Name)
			}
			pending = append(pending, Change{Path: ev.Name, Type: classifyChange(ev.Name)})
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			fn(dedupe(pending))
			pending = nil

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("theme watcher error", "dir", w.root, "error", err)
		}
	}
}

func (w *Watcher) addIfDir(p string) {
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.fsw.Add(p); err != nil {
		w.logger.Debug("theme watcher add failed", "path", p, "error", err)
	}
}

func (w *Watcher) shouldIgnore(p string) bool {
	name := filepath.Base(p)
	for _, pattern := range w.ignore {
		if name == pattern {
			return true
		}
		if strings.ContainsAny(pattern, "*?[") {
			if matched, _ := filepath.Match(pattern, name); matched {
				return true
			}
		}
	}
	return false
}

func dedupe(changes []Change) []Change {
	seen := make(map[ChangeType]bool)
	out := changes[:0:0]
	for _, c := range changes {
		if !seen[c.Type] {
			seen[c.Type] = true
			out = append(out, c)
		}
	}
	return out
}

func classifyChange(p string) ChangeType {
	if filepath.Base(p) == ManifestName {
		return ChangeManifest
	}
	switch strings.ToLower(filepath.Ext(p)) {
	case ".css":
		return ChangeCSS
	default:
		return ChangeAsset
	}
}
