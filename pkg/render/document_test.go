package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRenderDocument(t *testing.T) {
	doc := Document{
		Title:        "Hello & Welcome",
		StyleSheets:  []string{"/static/lightletter.css"},
		Body:         []byte("<main><h1>Hi</h1></main>"),
		Snapshot:     "eyJ0YXJnZXQiOiIvIn0=",
		ClientScript: "/static/lightletter.js",
		Meta:         []MetaTag{{Name: "description", Content: `a "quoted" blog`}},
	}

	var buf bytes.Buffer
	if err := RenderDocument(&buf, doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	html := buf.String()

	wants := []string{
		"<!DOCTYPE html>\n",
		`<html lang="en">`,
		`<meta charset="utf-8">`,
		"<title>Hello &amp; Welcome</title>",
		`<meta name="description" content="a &quot;quoted&quot; blog">`,
		`<link rel="stylesheet" href="/static/lightletter.css">`,
		"<main><h1>Hi</h1></main>",
		`<script id="lightletter-prerendered" type="application/octet-stream">eyJ0YXJnZXQiOiIvIn0=</script>`,
		`<script src="/static/lightletter.js" defer></script>`,
		`__lightletter_load__(location.pathname,document.getElementById("lightletter-prerendered").textContent)`,
		"</body>\n</html>\n",
	}
	for _, want := range wants {
		if !strings.Contains(html, want) {
			t.Errorf("document missing %q\n%s", want, html)
		}
	}
	if !strings.HasPrefix(html, "<!DOCTYPE html>") {
		t.Errorf("should start with DOCTYPE, got %q", html[:20])
	}
	if strings.Contains(html, "WebSocket") {
		t.Error("live reload script rendered while disabled")
	}
}

func TestRenderDocument_SnapshotBeforeLoader(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderDocument(&buf, Document{Snapshot: "AAAA"}); err != nil {
		t.Fatal(err)
	}
	html := buf.String()
	snap := strings.Index(html, SnapshotElementID+`" type=`)
	loader := strings.Index(html, LoaderFunc+"(")
	if snap < 0 || loader < 0 || snap > loader {
		t.Errorf("snapshot element must precede the loader call:\n%s", html)
	}
}

func TestRenderDocument_NoSnapshot(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderDocument(&buf, Document{Lang: "zh", Body: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	html := buf.String()
	if !strings.Contains(html, `<html lang="zh">`) {
		t.Errorf("lang not applied: %s", html)
	}
	if strings.Contains(html, SnapshotElementID) || strings.Contains(html, LoaderFunc) {
		t.Errorf("no snapshot should mean no loader: %s", html)
	}
	if strings.Contains(html, "<title>") {
		t.Errorf("empty title rendered: %s", html)
	}
}

func TestRenderDocument_LiveReload(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderDocument(&buf, Document{LiveReload: true}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `location.host+"/_lightletter/reload"`) {
		t.Errorf("reload script missing: %s", buf.String())
	}

	buf.Reset()
	if err := RenderDocument(&buf, Document{LiveReload: true, ReloadPath: "/dev/ws"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"/dev/ws"`) {
		t.Errorf("custom reload path missing: %s", buf.String())
	}
}

type failingWriter struct{ n int }

var errWrite = errors.New("write failed")

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n == 0 {
		return 0, errWrite
	}
	f.n--
	return len(p), nil
}

func TestRenderDocument_WriteError(t *testing.T) {
	for n := 0; n < 5; n++ {
		err := RenderDocument(&failingWriter{n: n}, Document{Title: "t", Body: []byte("b"), Snapshot: "AA=="})
		if !errors.Is(err, errWrite) {
			t.Errorf("n=%d: got %v, want errWrite", n, err)
		}
	}
}
