package ivyleaf

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/light-letter/lightletter/internal/backstage"
	"github.com/light-letter/lightletter/internal/db"
	"github.com/light-letter/lightletter/internal/store"
	"github.com/light-letter/lightletter/pkg/page"
	"github.com/light-letter/lightletter/pkg/rpc"
	"github.com/light-letter/lightletter/pkg/session"
)

func newSite(t *testing.T) (*store.Store, *rpc.Registry) {
	t.Helper()
	pool, err := db.Open(context.Background(), db.Path(t.TempDir(), "blog"), db.Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	st := store.New(pool)
	require.NoError(t, st.CreateUser(context.Background(), store.User{ID: "admin", Name: "Ada"}, "hunter22"))
	reg := rpc.NewRegistry()
	backstage.Register(reg, st, nil)
	return st, reg
}

func render(t *testing.T, reg *rpc.Registry, s *session.Session, path, query string) (*page.Result, string) {
	t.Helper()
	res, err := Theme{}.Pages(nil).Prerender(context.Background(), page.Request{Path: path, RawQuery: query}, reg.Channel(s))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, res.Instance.Render(&buf))
	return res, buf.String()
}

func TestTheme(t *testing.T) {
	assert.Equal(t, "ivy-leaf", Theme{}.Name())
	assert.Contains(t, string(Theme{}.Stylesheet()), ".header")
	assert.Equal(t, []string{"/", "/about", "/posts/{id}"}, Theme{}.Pages(nil).Patterns())
}

func TestIndex(t *testing.T) {
	ctx := context.Background()
	st, reg := newSite(t)

	_, html := render(t, reg, session.Anonymous(), "/", "")
	assert.Contains(t, html, "Coming Soon...")
	assert.Contains(t, html, defaultTitle)

	require.NoError(t, st.SetConfig(ctx, store.ConfigSiteTitle, "Leaves"))
	for i := range pageSize + 2 {
		_, err := st.SavePost(ctx, store.Post{Title: fmt.Sprintf("Post %02d", i), Status: store.Published, Author: "admin", Timestamp: int64(1700000000 + i)})
		require.NoError(t, err)
	}
	_, err := st.SavePost(ctx, store.Post{Title: "Secret draft", Author: "admin"})
	require.NoError(t, err)

	author := session.Anonymous()
	author.SetLoginUser("admin", "Ada")
	res, html := render(t, reg, author, "/", "")
	assert.Equal(t, "Leaves", res.Snapshot.Meta.Title)
	assert.NotContains(t, html, "Secret draft", "the index lists published posts only")
	assert.Contains(t, html, "Post 11")
	assert.NotContains(t, html, "Post 01")
	assert.Contains(t, html, `href="/?page=1"`)
	assert.NotContains(t, html, "Newer")

	_, html = render(t, reg, session.Anonymous(), "/", "page=1")
	assert.Contains(t, html, "Post 01")
	assert.Contains(t, html, "Post 00")
	assert.Contains(t, html, `href="/?page=0"`)
	assert.NotContains(t, html, "Older")

	_, html = render(t, reg, session.Anonymous(), "/", "page=bogus")
	assert.Contains(t, html, "Post 11")
}

func TestAbout(t *testing.T) {
	st, reg := newSite(t)
	_, html := render(t, reg, session.Anonymous(), "/about", "")
	assert.Contains(t, html, "A blog powered by light-letter.")

	require.NoError(t, st.SetConfig(context.Background(), store.ConfigSiteDescription, "Notes <from> a leaf"))
	res, html := render(t, reg, session.Anonymous(), "/about", "")
	assert.Contains(t, html, "Notes &lt;from&gt; a leaf")
	assert.Equal(t, "About - "+defaultTitle, res.Snapshot.Meta.Title)
}

func TestPost(t *testing.T) {
	ctx := context.Background()
	st, reg := newSite(t)

	pub, err := st.SavePost(ctx, store.Post{
		Title:   "Hello",
		Content: `<p>Hi <em>there</em></p><script>alert(1)</script>`,
		Status:  store.Published,
		Author:  "admin",
		Tags:    []string{"go"},
	})
	require.NoError(t, err)
	draft, err := st.SavePost(ctx, store.Post{Title: "Draft", Author: "admin"})
	require.NoError(t, err)

	res, html := render(t, reg, session.Anonymous(), "/posts/"+pub.ID, "")
	assert.True(t, res.Found)
	assert.Equal(t, "Hello - "+defaultTitle, res.Snapshot.Meta.Title)
	assert.Contains(t, html, "<p>Hi <em>there</em></p>")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "<li>go</li>")

	_, html = render(t, reg, session.Anonymous(), "/posts/"+draft.ID, "")
	assert.Contains(t, html, "This post does not exist.")

	_, html = render(t, reg, session.Anonymous(), "/posts/missing", "")
	assert.Contains(t, html, "This post does not exist.")

	// The snapshot replays to the same markup.
	res, want := render(t, reg, session.Anonymous(), "/posts/"+pub.ID, "")
	inst, err := Theme{}.Pages(nil).Hydrate("/posts/"+pub.ID, res.Snapshot)
	require.NoError(t, err)
	var got bytes.Buffer
	require.NoError(t, inst.Render(&got))
	assert.Equal(t, want, got.String())
}

func TestNotFound(t *testing.T) {
	_, reg := newSite(t)
	res, html := render(t, reg, session.Anonymous(), "/nope/deeper", "")
	assert.False(t, res.Found)
	assert.Contains(t, html, "Not Found")
}
