package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/light-letter/lightletter/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	pool, err := db.Open(context.Background(), db.Path(t.TempDir(), "blog"), db.Options{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	clock := time.Unix(1700000000, 0)
	return New(pool, WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateUser(ctx, User{ID: "admin", Name: "Ada", Email: "ada@example.com"}, "hunter22"))
	assert.ErrorIs(t, s.CreateUser(ctx, User{ID: "admin", Name: "Other"}, "x"), ErrExists)

	u, err := s.UserByID(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, &User{ID: "admin", Name: "Ada", Email: "ada@example.com"}, u)

	_, err = s.UserByID(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	u, err = s.Authenticate(ctx, "admin", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)

	_, err = s.Authenticate(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, ErrWrongPassword)
	_, err = s.Authenticate(ctx, "nobody", "hunter22")
	assert.ErrorIs(t, err, ErrNotFound)

	var stored string
	require.NoError(t, s.DB().QueryRow(`SELECT pwd FROM users WHERE id = 'admin'`).Scan(&stored))
	assert.NotContains(t, stored, "hunter22")
}

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.RegisterUser(ctx, User{ID: "owner", Name: "Owner"}, "secret1", false)
	require.NoError(t, err)
	assert.True(t, first)

	_, err = s.RegisterUser(ctx, User{ID: "guest", Name: "Guest"}, "secret2", false)
	assert.ErrorIs(t, err, ErrRegistrationClosed)
	_, err = s.UserByID(ctx, "guest")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err = s.RegisterUser(ctx, User{ID: "guest", Name: "Guest"}, "secret2", true)
	require.NoError(t, err)
	assert.False(t, first)

	_, err = s.RegisterUser(ctx, User{ID: "guest", Name: "Again"}, "secret3", true)
	assert.ErrorIs(t, err, ErrExists)
}

func TestRegisterUser_ConcurrentFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const n = 4
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		firsts int
		errs   []error
	)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			first, err := s.RegisterUser(ctx, User{ID: fmt.Sprintf("user%d", i), Name: "U"}, "secret1", false)
			mu.Lock()
			defer mu.Unlock()
			if first {
				firsts++
			}
			if err != nil {
				errs = append(errs, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, firsts)
	require.Len(t, errs, n-1)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrRegistrationClosed)
	}
	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSavePost_Ownership(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreateUser(ctx, User{ID: "alice", Name: "Alice"}, "secret1"))
	require.NoError(t, s.CreateUser(ctx, User{ID: "mallory", Name: "Mallory"}, "secret2"))

	saved, err := s.SavePost(ctx, Post{Title: "Mine", Author: "alice"})
	require.NoError(t, err)

	_, err = s.SavePost(ctx, Post{ID: saved.ID, Title: "defaced", Author: "mallory"})
	assert.ErrorIs(t, err, ErrNotOwner)

	got, err := s.GetPost(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Title)
	assert.Equal(t, "alice", got.Author)

	got.Title = "Still mine"
	_, err = s.SavePost(ctx, *got)
	require.NoError(t, err)
}

func TestSavePost_InsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	saved, err := s.SavePost(ctx, Post{
		Title:   "Hello",
		Content: `<p>Hello <b>world</b><script>alert(1)</script></p>`,
		Status:  Published,
		Tags:    []string{"go", " go ", "", "sqlite"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.NotContains(t, saved.Content, "<script>")
	assert.Contains(t, saved.Abstract, "Hello")
	assert.Contains(t, saved.Abstract, "world")
	assert.NotContains(t, saved.Abstract, "alert")
	assert.NotContains(t, saved.Abstract, "<")
	assert.Equal(t, UncategorizedID, saved.Category)
	assert.NotZero(t, saved.Timestamp)

	got, err := s.GetPost(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Content, got.Content)
	assert.Equal(t, []string{"go", "sqlite"}, got.Tags)
	assert.Equal(t, Published, got.Status)

	got.Title = "Hello again"
	got.Abstract = "custom"
	got.Tags = []string{"rust"}
	_, err = s.SavePost(ctx, *got)
	require.NoError(t, err)

	again, err := s.GetPost(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello again", again.Title)
	assert.Equal(t, "custom", again.Abstract)
	assert.Equal(t, []string{"rust"}, again.Tags)

	_, err = s.SavePost(ctx, Post{ID: "missing", Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetPost(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeriveAbstract_Truncates(t *testing.T) {
	s := newTestStore(t)
	long := "<p>" + strings.Repeat("word ", 100) + "</p>"

	got := s.deriveAbstract(long)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len([]rune(got)), abstractRunes+1)
	assert.False(t, strings.Contains(got, "wor…"), "cut should fall on a word boundary: %q", got)
	assert.Equal(t, "", s.deriveAbstract("  "))
}

func TestListPosts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seriesID, err := s.CreateSeries(ctx, "Tour", "")
	require.NoError(t, err)
	catID, err := s.CreateCategory(ctx, "Tech", "tech posts")
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, "Tech", "")
	assert.ErrorIs(t, err, ErrExists)

	posts := []Post{
		{Title: "First", Content: "<p>alpha</p>", Status: Published, Series: seriesID, Author: ""},
		{Title: "Second", Content: "<p>beta 100%</p>", Status: Draft, Category: catID},
		{Title: "Third", Content: "<p>gamma</p>", Status: Published, Category: catID, Tags: []string{"go"}},
		{Title: "Fourth", Content: "<p>delta</p>", Status: HiddenLink, Tags: []string{"go"}},
	}
	for _, p := range posts {
		_, err := s.SavePost(ctx, p)
		require.NoError(t, err)
	}

	titles := func(opts ListOptions) []string {
		t.Helper()
		metas, err := s.ListPosts(ctx, opts)
		require.NoError(t, err)
		out := make([]string, 0, len(metas))
		for _, m := range metas {
			out = append(out, m.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Fourth", "Third", "Second", "First"}, titles(ListOptions{Count: 10}))
	assert.Equal(t, []string{"Third", "First"}, titles(ListOptions{Count: 10, PublishedOnly: true}))
	assert.Equal(t, []string{"Third", "Second"}, titles(ListOptions{Count: 2, Skip: 1}))
	assert.Equal(t, []string{"First"}, titles(ListOptions{Count: 10, Filter: ListFilter{Kind: FilterSeries, Value: seriesID}}))
	assert.Equal(t, []string{"Third", "Second"}, titles(ListOptions{Count: 10, Filter: ListFilter{Kind: FilterCategory, Value: catID}}))
	assert.Equal(t, []string{"Fourth", "Third"}, titles(ListOptions{Count: 10, Filter: ListFilter{Kind: FilterTag, Value: "go"}}))
	assert.Equal(t, []string{"Second"}, titles(ListOptions{Count: 10, Filter: ListFilter{Kind: FilterKeyword, Value: "100%"}}))
	assert.Empty(t, titles(ListOptions{Count: 10, Filter: ListFilter{Kind: FilterKeyword, Value: "_"}}))
	assert.Equal(t, []string{"Third"}, titles(ListOptions{Count: 10, PublishedOnly: true, Filter: ListFilter{Kind: FilterTag, Value: "go"}}))

	require.NoError(t, s.CreateUser(ctx, User{ID: "alice", Name: "Alice"}, "secret1"))
	_, err = s.SavePost(ctx, Post{Title: "Alice draft", Author: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice draft", "Third", "First"}, titles(ListOptions{Count: 10, Viewer: "alice"}))
	assert.Equal(t, []string{"Third", "First"}, titles(ListOptions{Count: 10, Viewer: "bob"}))

	for _, bad := range []ListOptions{
		{Count: 0},
		{Count: MaxListCount + 1},
		{Count: 1, Skip: -1},
		{Count: 1, Filter: ListFilter{Kind: "author"}},
	} {
		_, err := s.ListPosts(ctx, bad)
		assert.Error(t, err, fmt.Sprintf("%+v", bad))
	}
}

func TestConfig(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var open bool
	ok, err := s.GetConfig(ctx, ConfigRegistrationOpen, &open)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := ConfigValue(ctx, s, ConfigRegistrationOpen, true)
	require.NoError(t, err)
	assert.True(t, got, "default returned when absent")

	require.NoError(t, s.SetConfig(ctx, ConfigRegistrationOpen, false))
	got, err = ConfigValue(ctx, s, ConfigRegistrationOpen, true)
	require.NoError(t, err)
	assert.False(t, got)

	require.NoError(t, s.SetConfig(ctx, ConfigSiteTitle, "My Blog"))
	title, err := ConfigValue(ctx, s, ConfigSiteTitle, "")
	require.NoError(t, err)
	assert.Equal(t, "My Blog", title)

	// A second store on the same pool reads through to the database.
	other := New(s.DB())
	title, err = ConfigValue(ctx, other, ConfigSiteTitle, "")
	require.NoError(t, err)
	assert.Equal(t, "My Blog", title)

	_, err = s.DB().Exec(`INSERT INTO config (key, value) VALUES ('broken', 'not json')`)
	require.NoError(t, err)
	_, err = ConfigValue(ctx, other, "broken", 0)
	assert.Error(t, err)
}

func TestPostStatusText(t *testing.T) {
	b, err := json.Marshal(struct {
		S PostStatus `json:"s"`
	}{HiddenLink})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"hidden_link"}`, string(b))

	var back struct {
		S PostStatus `json:"s"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"s":"published"}`), &back))
	assert.Equal(t, Published, back.S)
	assert.Error(t, json.Unmarshal([]byte(`{"s":"gone"}`), &back))

	_, err = PostStatus(7).MarshalText()
	assert.Error(t, err)
}

func TestFilterKindValid(t *testing.T) {
	for _, k := range []FilterKind{"", FilterNone, FilterSeries, FilterCategory, FilterTag, FilterKeyword} {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, FilterKind("author").Valid())
}
