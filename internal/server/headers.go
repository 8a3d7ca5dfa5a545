package server

import (
	"net/http"
)

const (
	poweredBy = "light-letter"

	notFoundBody  = "Not Found"
	forbiddenBody = "Forbidden"
)

// commonHeaders sets the headers carried by every dynamic response.
func commonHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("X-Powered-By", poweredBy)
	h.Set("Cache-Control", "no-cache, no-store")
	h.Set("Vary", "Accept-Encoding,Cookie")
}

func plain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func notFound(w http.ResponseWriter) {
	commonHeaders(w)
	plain(w, http.StatusNotFound, notFoundBody)
}

func forbidden(w http.ResponseWriter) {
	commonHeaders(w)
	plain(w, http.StatusForbidden, forbiddenBody)
}

func redirect(w http.ResponseWriter, location string) {
	commonHeaders(w)
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusFound)
}

// readOnly answers 403 for anything but GET and HEAD.
func readOnly(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	forbidden(w)
	return false
}
