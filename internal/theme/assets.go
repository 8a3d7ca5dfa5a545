package theme

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/light-letter/lightletter/internal/errors"
)

// ManifestName is the optional manifest file in an asset directory.
const ManifestName = "theme.yaml"

// Manifest describes an asset directory.
type Manifest struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Stylesheets []string `yaml:"stylesheets"`
}

// ReadManifest parses dir/theme.yaml. A missing manifest yields the zero
// Manifest.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if stderrors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%s: %w", ManifestName, err)
	}
	for _, s := range m.Stylesheets {
		if !filepath.IsLocal(s) {
			return m, fmt.Errorf("%s: stylesheet %q escapes the theme directory", ManifestName, s)
		}
	}
	return m, nil
}

// Assets is a theme bound to its asset directory: the manifest and the
// stylesheet bundle. Reload swaps both atomically, so Assets is safe for
// concurrent use.
type Assets struct {
	theme  Theme
	dir    string
	logger *slog.Logger

	mu       sync.RWMutex
	manifest Manifest
	bundle   []byte
	etag     string
}

// LoadAssets reads the asset directory of t. The directory must exist.
func LoadAssets(t Theme, dir string, logger *slog.Logger) (*Assets, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.New(errors.CodeThemeAssets).WithSubject(dir).Wrap(err)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.CodeThemeAssets).WithSubject(dir).WithDetail("The theme path is not a directory.")
	}

	a := &Assets{theme: t, dir: dir, logger: logger}
	if err := a.Reload(); err != nil {
		return nil, errors.New(errors.CodeThemeAssets).WithSubject(dir).Wrap(err)
	}
	return a, nil
}

// Theme returns the theme the assets belong to.
func (a *Assets) Theme() Theme {
	return a.theme
}

// Dir returns the asset directory.
func (a *Assets) Dir() string {
	return a.dir
}

// Reload rereads the manifest and rebuilds the stylesheet bundle. On
// error the previous state is kept.
func (a *Assets) Reload() error {
	m, err := ReadManifest(a.dir)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.Write(a.theme.Stylesheet())
	for _, name := range m.Stylesheets {
		css, err := os.ReadFile(filepath.Join(a.dir, filepath.FromSlash(name)))
		if err != nil {
			return err
		}
		fmt.Fprintf(&buf, "\n/* %s */\n", name)
		buf.Write(css)
	}
	bundle := buf.Bytes()
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(bundle))

	a.mu.Lock()
	changed := etag != a.etag
	a.manifest, a.bundle, a.etag = m, bundle, etag
	a.mu.Unlock()

	if changed {
		a.logger.Debug("theme assets loaded", "theme", a.theme.Name(), "dir", a.dir, "etag", etag)
	}
	return nil
}

// Manifest returns the current manifest.
func (a *Assets) Manifest() Manifest {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.manifest
}

// Stylesheet returns the current bundle and its ETag.
func (a *Assets) Stylesheet() ([]byte, string) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bundle, a.etag
}

// ServeStylesheet writes the bundle, answering 304 when If-None-Match
// carries the current ETag.
func (a *Assets) ServeStylesheet(w http.ResponseWriter, r *http.Request) {
	bundle, etag := a.Stylesheet()
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(bundle)
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
