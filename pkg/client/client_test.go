package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/light-letter/lightletter/pkg/channel"
	"github.com/light-letter/lightletter/pkg/page"
	"github.com/light-letter/lightletter/pkg/render"
)

type greeting struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type greetPage struct {
	fetches *atomic.Int32
	G       greeting
}

func (p *greetPage) Fetch(ctx context.Context, args page.Args[struct{}]) (greeting, page.MetaData) {
	p.fetches.Add(1)
	g, err := channel.Request[greeting](ctx, args.Channel, "/greet", map[string]string{"name": args.Param("name")})
	if err != nil {
		return greeting{}, page.MetaData{Title: "error"}
	}
	return g, page.MetaData{Title: "Hi " + g.Name}
}

func (p *greetPage) Apply(g greeting) { p.G = g }

func (p *greetPage) Render(w io.Writer) error {
	_, err := fmt.Fprintf(w, "<p>hello %s</p>", render.EscapeHTML(p.G.Name))
	return err
}

type missingPage struct{}

func (missingPage) Fetch(context.Context, page.Args[struct{}]) (string, page.MetaData) {
	return "", page.MetaData{Title: "Not Found"}
}
func (missingPage) Apply(string) {}
func (missingPage) Render(w io.Writer) error {
	_, err := io.WriteString(w, "gone")
	return err
}

func newSet(fetches *atomic.Int32) *page.Set {
	return page.MustNewSet(
		page.Define("", func() page.Component[struct{}, string] { return missingPage{} }),
		[]page.Definition{
			page.Define("/greet/{name}", func() page.Component[struct{}, greeting] { return &greetPage{fetches: fetches} }),
		},
	)
}

// newSite serves prerendered documents and the /rpc/greet endpoint.
func newSite(t *testing.T, serverFetches *atomic.Int32) *httptest.Server {
	t.Helper()
	var calls atomic.Int32
	backend := channel.Func(func(ctx context.Context, path string, payload []byte) ([]byte, error) {
		var req map[string]string
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return json.Marshal(greeting{Name: req["name"], Count: int(calls.Add(1))})
	})
	set := newSet(serverFetches)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc/greet", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		out, err := backend.Do(r.Context(), "/greet", body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Write(out)
	})
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		res, err := set.Prerender(r.Context(), page.Request{Path: r.URL.Path, RawQuery: r.URL.RawQuery}, backend)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var body bytes.Buffer
		if err := res.Instance.Render(&body); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		enc, err := res.Snapshot.Encode()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !res.Found {
			w.WriteHeader(http.StatusNotFound)
		}
		render.RenderDocument(w, render.Document{Title: res.Snapshot.Meta.Title, Body: body.Bytes(), Snapshot: enc})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractSnapshot(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render.RenderDocument(&buf, render.Document{Body: []byte("<p>x</p>"), Snapshot: "QUJD"}))

	got, err := ExtractSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, "QUJD", got)
}

func TestExtractSnapshot_Missing(t *testing.T) {
	_, err := ExtractSnapshot(strings.NewReader("<html><body><script>var a</script></body></html>"))
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestOpen_ResumesWithoutClientFetch(t *testing.T) {
	var serverFetches, clientFetches atomic.Int32
	srv := newSite(t, &serverFetches)

	c := New(srv.URL, newSet(&clientFetches))
	inst, status, err := c.Open(context.Background(), "/greet/ada")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, serverFetches.Load())
	assert.EqualValues(t, 0, clientFetches.Load(), "resume must not fetch")
	assert.Equal(t, page.Terminal, inst.Phase())
	assert.Equal(t, "Hi ada", inst.Meta().Title)
	assert.Equal(t, greeting{Name: "ada", Count: 1}, inst.State().(*greetPage).G)
}

func TestOpen_NotFound(t *testing.T) {
	var serverFetches, clientFetches atomic.Int32
	srv := newSite(t, &serverFetches)

	c := New(srv.URL, newSet(&clientFetches))
	inst, status, err := c.Open(context.Background(), "/nope?x=1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Not Found", inst.Meta().Title)
}

func TestNavigate_FetchesOverWire(t *testing.T) {
	var serverFetches, clientFetches atomic.Int32
	srv := newSite(t, &serverFetches)

	c := New(srv.URL, newSet(&clientFetches))
	inst, err := c.Navigate(context.Background(), "/greet/bob")
	require.NoError(t, err)

	assert.EqualValues(t, 1, clientFetches.Load())
	assert.EqualValues(t, 0, serverFetches.Load())
	assert.Equal(t, page.Applied, inst.Phase())
	assert.Equal(t, "bob", inst.State().(*greetPage).G.Name)
}

func TestResume_TargetMismatch(t *testing.T) {
	var fetches atomic.Int32
	set := newSet(&fetches)

	res, err := set.Prerender(context.Background(), page.Request{Path: "/missing"}, nil)
	require.NoError(t, err)
	enc, err := res.Snapshot.Encode()
	require.NoError(t, err)

	var doc bytes.Buffer
	require.NoError(t, render.RenderDocument(&doc, render.Document{Snapshot: enc}))

	_, err = Resume(set, "/greet/x", doc.Bytes())
	assert.ErrorIs(t, err, page.ErrTargetMismatch)
}
