package server

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/light-letter/lightletter/internal/backstage"
	"github.com/light-letter/lightletter/internal/site"
	"github.com/light-letter/lightletter/pkg/page"
	"github.com/light-letter/lightletter/pkg/render"
)

// StylesheetPath is where each blog site serves its theme stylesheet.
const StylesheetPath = "/static/lightletter.css"

// pageSet picks the backstage pages for /backstage and below, the theme
// pages otherwise.
func pageSet(st *site.State, p string) *page.Set {
	if p == backstage.RouteHome || strings.HasPrefix(p, backstage.RouteHome+"/") {
		return st.Backstage
	}
	return st.Pages
}

// pageHandler prerenders the page for the request path through the
// in-process channel bound to the caller's session. Unmatched paths
// render the set's not-found page with status 404.
func (s *Server) pageHandler(st *site.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !readOnly(w, r) {
			return
		}
		_, sess := s.requestSession(r)

		set := pageSet(st, r.URL.Path)
		res, err := set.Prerender(r.Context(), page.Request{Path: r.URL.Path, RawQuery: r.URL.RawQuery}, st.RPC.Channel(sess))
		if err != nil {
			s.internalError(w, "prerender failed", "site", st.Name, "path", r.URL.Path, "error", err)
			return
		}

		var body bytes.Buffer
		if err := res.Instance.Render(&body); err != nil {
			s.internalError(w, "page render failed", "site", st.Name, "target", res.Snapshot.Target, "error", err)
			return
		}
		encoded, err := res.Snapshot.Encode()
		if err != nil {
			s.internalError(w, "snapshot encode failed", "site", st.Name, "target", res.Snapshot.Target, "error", err)
			return
		}

		doc := render.Document{
			Title:       res.Instance.Meta().Title,
			StyleSheets: []string{StylesheetPath},
			Body:        body.Bytes(),
			Snapshot:    encoded,
			LiveReload:  s.dev,
		}
		if desc := st.Assets.Manifest().Description; desc != "" {
			doc.Meta = append(doc.Meta, render.MetaTag{Name: "description", Content: desc})
		}

		var out bytes.Buffer
		if err := render.RenderDocument(&out, doc); err != nil {
			s.internalError(w, "document render failed", "site", st.Name, "error", err)
			return
		}

		status := http.StatusOK
		if !res.Found {
			status = http.StatusNotFound
		}
		commonHeaders(w)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(out.Bytes())
	}
}

func (s *Server) internalError(w http.ResponseWriter, msg string, args ...any) {
	s.logger.Error(msg, args...)
	commonHeaders(w)
	plain(w, http.StatusInternalServerError, "Internal Server Error")
}
