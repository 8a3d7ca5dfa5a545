package theme

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/light-letter/lightletter/pkg/page"
)

// Theme is a site theme compiled into the binary.
type Theme interface {
	// Name is the key used by [[site]] theme.
	Name() string
	// Pages builds the public page set. Each call returns a fresh Set.
	Pages(logger *slog.Logger, opts ...page.SetOption) *page.Set
	// Stylesheet is the base CSS of the theme.
	Stylesheet() []byte
}

// Registry maps theme names to themes. It is filled at startup and
// read-only afterwards.
type Registry struct {
	themes map[string]Theme
}

// NewRegistry returns a registry holding themes. Duplicate names panic.
func NewRegistry(themes ...Theme) *Registry {
	r := &Registry{themes: make(map[string]Theme, len(themes))}
	for _, t := range themes {
		if _, dup := r.themes[t.Name()]; dup {
			panic(fmt.Sprintf("theme: duplicate theme %q", t.Name()))
		}
		r.themes[t.Name()] = t
	}
	return r
}

// Lookup returns the theme called name.
func (r *Registry) Lookup(name string) (Theme, bool) {
	t, ok := r.themes[name]
	return t, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.themes))
	for n := range r.themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
