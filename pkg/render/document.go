package render

import (
	"fmt"
	"io"
)

const (
	// SnapshotElementID is the id of the script element carrying the
	// encoded page snapshot.
	SnapshotElementID = "lightletter-prerendered"

	// LoaderFunc is the global the client bundle installs to resume a
	// prerendered page.
	LoaderFunc = "__lightletter_load__"

	// DefaultReloadPath is the live-reload websocket endpoint.
	DefaultReloadPath = "/_lightletter/reload"
)

// Document contains everything needed to render a complete HTML page.
type Document struct {
	// Title is the page title.
	Title string

	// Lang is the language attribute for the html element.
	// Defaults to "en" if not specified.
	Lang string

	// Meta contains extra meta tags for the head.
	Meta []MetaTag

	// StyleSheets contains paths to external stylesheets.
	StyleSheets []string

	// Body is the already-rendered page markup.
	Body []byte

	// Snapshot is the base64 page snapshot. Empty omits the snapshot and
	// the loader call.
	Snapshot string

	// ClientScript is the path to the client bundle. Empty omits it.
	ClientScript string

	// LiveReload enables the development reload script.
	LiveReload bool

	// ReloadPath overrides DefaultReloadPath.
	ReloadPath string
}

// MetaTag represents a meta element in the document head.
type MetaTag struct {
	Name     string // name attribute
	Property string // property attribute (for OpenGraph)
	Content  string // content attribute
}

// docWriter keeps the first write error so rendering reads linearly.
type docWriter struct {
	w   io.Writer
	err error
}

func (d *docWriter) printf(format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, format, args...)
}

func (d *docWriter) write(b []byte) {
	if d.err != nil {
		return
	}
	_, d.err = d.w.Write(b)
}

// RenderDocument renders a complete HTML document to w.
func RenderDocument(w io.Writer, doc Document) error {
	lang := doc.Lang
	if lang == "" {
		lang = "en"
	}

	d := &docWriter{w: w}
	d.printf("<!DOCTYPE html>\n<html lang=\"%s\">\n", escapeAttr(lang))
	renderHead(d, doc)

	d.printf("<body>\n")
	d.write(doc.Body)
	d.printf("\n")
	renderScripts(d, doc)
	d.printf("</body>\n</html>\n")
	return d.err
}

func renderHead(d *docWriter, doc Document) {
	d.printf("<head>\n")
	d.printf("  <meta charset=\"utf-8\">\n")
	d.printf("  <meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")

	if doc.Title != "" {
		d.printf("  <title>%s</title>\n", escapeHTML(doc.Title))
	}

	for _, m := range doc.Meta {
		switch {
		case m.Name != "":
			d.printf("  <meta name=\"%s\" content=\"%s\">\n", escapeAttr(m.Name), escapeAttr(m.Content))
		case m.Property != "":
			d.printf("  <meta property=\"%s\" content=\"%s\">\n", escapeAttr(m.Property), escapeAttr(m.Content))
		}
	}

	for _, href := range doc.StyleSheets {
		d.printf("  <link rel=\"stylesheet\" href=\"%s\">\n", escapeAttr(href))
	}
	d.printf("</head>\n")
}

func renderScripts(d *docWriter, doc Document) {
	if doc.Snapshot != "" {
		// The encoding is base64, escaping only guards against misuse.
		d.printf("  <script id=\"%s\" type=\"application/octet-stream\">%s</script>\n",
			SnapshotElementID, escapeHTML(doc.Snapshot))
	}

	if doc.ClientScript != "" {
		d.printf("  <script src=\"%s\" defer></script>\n", escapeAttr(doc.ClientScript))
	}

	if doc.Snapshot != "" {
		d.printf("  <script>window.addEventListener(\"DOMContentLoaded\",function(){"+
			"if(typeof %[1]s===\"function\"){%[1]s(location.pathname,"+
			"document.getElementById(\"%[2]s\").textContent)}})</script>\n",
			LoaderFunc, SnapshotElementID)
	}

	if doc.LiveReload {
		path := doc.ReloadPath
		if path == "" {
			path = DefaultReloadPath
		}
		d.printf("  <script>(function(){var s=new WebSocket((location.protocol===\"https:\"?\"wss://\":\"ws://\")"+
			"+location.host+\"%s\");s.onmessage=function(){location.reload()}})()</script>\n",
			escapeAttr(path))
	}
}
