package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const indexFile = "index.html"

// relPath validates the part of a request path below a file mount. Only
// plain names are accepted: dot segments, backslashes, NUL and absolute
// paths are rejected rather than cleaned away. "" is the mount root.
func relPath(p string) (string, bool) {
	if strings.IndexByte(p, 0) != -1 || strings.Contains(p, "\\") {
		return "", false
	}
	if strings.HasPrefix(p, "/") {
		return "", false
	}

	segs := make([]string, 0, strings.Count(p, "/")+1)
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "":
			continue
		case ".", "..":
			return "", false
		}
		segs = append(segs, seg)
	}
	if len(segs) == 0 {
		return "", true
	}

	rel := path.Join(segs...)
	osPath := filepath.FromSlash(rel)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}
	return rel, true
}

// fileHandler serves dir below the URL prefix. Directories serve their
// index.html. Lookups go through os.Root, so symlinks cannot leave dir.
func fileHandler(dir, prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !readOnly(w, r) {
			return
		}
		rest, ok := strings.CutPrefix(r.URL.Path, prefix)
		if !ok {
			notFound(w)
			return
		}
		rel, ok := relPath(rest)
		if !ok {
			forbidden(w)
			return
		}
		serveFile(w, r, dir, rel)
	}
}

func serveFile(w http.ResponseWriter, r *http.Request, dir, rel string) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		notFound(w)
		return
	}
	defer root.Close()

	name := rel
	if name == "" {
		name = "."
	}
	info, err := root.Stat(name)
	if err == nil && info.IsDir() {
		name = path.Join(name, indexFile)
		info, err = root.Stat(name)
	}
	if err != nil || info.IsDir() {
		notFound(w)
		return
	}

	f, err := root.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			forbidden(w)
			return
		}
		notFound(w)
		return
	}
	defer f.Close()

	w.Header().Set("X-Powered-By", poweredBy)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
