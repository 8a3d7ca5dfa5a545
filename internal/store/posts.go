package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// UncategorizedID is the category seeded by the initial migration.
const UncategorizedID = "00000000-0000-0000-0000-000000000000"

// MaxListCount is the largest page ListPosts serves.
const MaxListCount = 100

const abstractRunes = 200

// PostStatus is the publication state of a post.
type PostStatus int

const (
	Draft PostStatus = iota
	Published
	// HiddenLink posts are reachable by URL but never listed.
	HiddenLink
)

// String returns the string representation of the status.
func (s PostStatus) String() string {
	switch s {
	case Draft:
		return "draft"
	case Published:
		return "published"
	case HiddenLink:
		return "hidden_link"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s PostStatus) MarshalText() ([]byte, error) {
	if s < Draft || s > HiddenLink {
		return nil, fmt.Errorf("store: invalid post status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *PostStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "draft":
		*s = Draft
	case "published":
		*s = Published
	case "hidden_link":
		*s = HiddenLink
	default:
		return fmt.Errorf("store: unknown post status %q", b)
	}
	return nil
}

// Post is a full post.
type Post struct {
	ID          string     `json:"id"`
	Status      PostStatus `json:"status"`
	Timestamp   int64      `json:"timestamp"`
	URL         string     `json:"url,omitempty"`
	Title       string     `json:"title"`
	Abstract    string     `json:"abstract"`
	Content     string     `json:"content"`
	File        string     `json:"file,omitempty"`
	Series      string     `json:"series,omitempty"`
	Category    string     `json:"category"`
	Commentable bool       `json:"commentable"`
	Author      string     `json:"author,omitempty"`
	Tags        []string   `json:"tags"`
}

// PostMeta is the listing view of a post.
type PostMeta struct {
	ID        string     `json:"id"`
	Status    PostStatus `json:"status"`
	Timestamp int64      `json:"timestamp"`
	URL       string     `json:"url,omitempty"`
	Title     string     `json:"title"`
	Abstract  string     `json:"abstract"`
	Series    string     `json:"series,omitempty"`
	Category  string     `json:"category"`
	Author    string     `json:"author,omitempty"`
}

// FilterKind selects how ListPosts narrows its result.
type FilterKind string

const (
	FilterNone     FilterKind = "none"
	FilterSeries   FilterKind = "series"
	FilterCategory FilterKind = "category"
	FilterTag      FilterKind = "tag"
	FilterKeyword  FilterKind = "keyword"
)

// Valid reports whether k is a known filter kind. The empty kind means none.
func (k FilterKind) Valid() bool {
	switch k {
	case "", FilterNone, FilterSeries, FilterCategory, FilterTag, FilterKeyword:
		return true
	}
	return false
}

// ListFilter narrows a post listing. Value is a series or category id, a
// tag, or a keyword matched against title and content.
type ListFilter struct {
	Kind  FilterKind `json:"kind"`
	Value string     `json:"value,omitempty"`
}

// ListOptions configure ListPosts.
type ListOptions struct {
	Skip   int
	Count  int
	Filter ListFilter
	// PublishedOnly hides drafts and hidden-link posts.
	PublishedOnly bool
	// Author limits the listing to one account when set.
	Author string
	// Viewer, when set and PublishedOnly is not, also lists the viewer's
	// own unpublished posts. Other accounts' drafts stay hidden.
	Viewer string
}

// ListPosts returns posts ordered by timestamp, newest first.
func (s *Store) ListPosts(ctx context.Context, opts ListOptions) ([]PostMeta, error) {
	if opts.Count <= 0 || opts.Count > MaxListCount {
		return nil, fmt.Errorf("store: list count %d out of range 1..%d", opts.Count, MaxListCount)
	}
	if opts.Skip < 0 {
		return nil, fmt.Errorf("store: negative skip %d", opts.Skip)
	}

	var (
		where []string
		args  []any
	)
	switch {
	case opts.PublishedOnly:
		where = append(where, "p.status = ?")
		args = append(args, int(Published))
	case opts.Viewer != "":
		where = append(where, "(p.status = ? OR p.author = ?)")
		args = append(args, int(Published), opts.Viewer)
	}
	if opts.Author != "" {
		where = append(where, "p.author = ?")
		args = append(args, opts.Author)
	}
	switch opts.Filter.Kind {
	case "", FilterNone:
	case FilterSeries:
		where = append(where, "p.series = ?")
		args = append(args, opts.Filter.Value)
	case FilterCategory:
		where = append(where, "p.category = ?")
		args = append(args, opts.Filter.Value)
	case FilterTag:
		where = append(where, "EXISTS (SELECT 1 FROM post_tags t WHERE t.post = p.id AND t.tag = ?)")
		args = append(args, opts.Filter.Value)
	case FilterKeyword:
		pattern := "%" + escapeLike(opts.Filter.Value) + "%"
		where = append(where, `(p.title LIKE ? ESCAPE '\' OR p.content LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	default:
		return nil, fmt.Errorf("store: unknown filter %q", opts.Filter.Kind)
	}

	query := `SELECT p.id, p.status, p.timestamp, p.url, p.title, p.abstract, p.series, p.category, p.author FROM posts p`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.timestamp DESC, p.id LIMIT ? OFFSET ?"
	args = append(args, opts.Count, opts.Skip)

	ctx, cancel := s.bound(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]PostMeta, 0, opts.Count)
	for rows.Next() {
		var (
			m                   PostMeta
			url, series, author sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Status, &m.Timestamp, &url, &m.Title, &m.Abstract, &series, &m.Category, &author); err != nil {
			return nil, fmt.Errorf("store: scan post: %w", err)
		}
		m.URL, m.Series, m.Author = url.String, series.String, author.String
		posts = append(posts, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list posts: %w", err)
	}
	return posts, nil
}

// GetPost returns a post with its tags, or ErrNotFound.
func (s *Store) GetPost(ctx context.Context, id string) (*Post, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var (
		p                         Post
		url, file, series, author sql.NullString
		commentable               int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, timestamp, url, title, abstract, content, file, series, category, commentable, author
		 FROM posts WHERE id = ?`, id).
		Scan(&p.ID, &p.Status, &p.Timestamp, &url, &p.Title, &p.Abstract, &p.Content, &file, &series, &p.Category, &commentable, &author)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get post: %w", err)
	}
	p.URL, p.File, p.Series, p.Author = url.String, file.String, series.String, author.String
	p.Commentable = commentable != 0

	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM post_tags WHERE post = ? ORDER BY tag`, id)
	if err != nil {
		return nil, fmt.Errorf("store: get post tags: %w", err)
	}
	defer rows.Close()
	p.Tags = []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("store: scan tag: %w", err)
		}
		p.Tags = append(p.Tags, tag)
	}
	return &p, rows.Err()
}

// SavePost inserts p when its ID is empty and updates it otherwise. The
// content is sanitised, an empty abstract is derived from the content, and
// the tag set is replaced. It returns the stored post.
//
// An update keeps the stored author and fails with ErrNotOwner when
// p.Author is someone else.
func (s *Store) SavePost(ctx context.Context, p Post) (*Post, error) {
	p.Content = s.sanitizer.Sanitize(p.Content)
	if strings.TrimSpace(p.Abstract) == "" {
		p.Abstract = s.deriveAbstract(p.Content)
	}
	if p.Timestamp == 0 {
		p.Timestamp = s.now().Unix()
	}
	if p.Category == "" {
		p.Category = UncategorizedID
	}
	p.Tags = normalizeTags(p.Tags)

	insert := p.ID == ""
	if insert {
		p.ID = s.newID()
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: save post: %w", err)
	}
	defer tx.Rollback()

	args := []any{
		int(p.Status), p.Timestamp, nullString(p.URL), p.Title, p.Abstract, p.Content,
		nullString(p.File), nullString(p.Series), p.Category, boolInt(p.Commentable), nullString(p.Author),
		p.ID,
	}
	if insert {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO posts (status, timestamp, url, title, abstract, content, file, series, category, commentable, author, id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	} else {
		var owner sql.NullString
		err = tx.QueryRowContext(ctx, `SELECT author FROM posts WHERE id = ?`, p.ID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("store: save post: %w", err)
		}
		if owner.Valid && owner.String != p.Author {
			return nil, ErrNotOwner
		}

		var res sql.Result
		res, err = tx.ExecContext(ctx,
			`UPDATE posts SET status = ?, timestamp = ?, url = ?, title = ?, abstract = ?, content = ?,
			 file = ?, series = ?, category = ?, commentable = ?, author = ? WHERE id = ?`, args...)
		if err == nil {
			if n, _ := res.RowsAffected(); n == 0 {
				return nil, ErrNotFound
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("store: save post: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post = ?`, p.ID); err != nil {
		return nil, fmt.Errorf("store: save post tags: %w", err)
	}
	for _, tag := range p.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT INTO post_tags (post, tag) VALUES (?, ?)`, p.ID, tag); err != nil {
			return nil, fmt.Errorf("store: save post tags: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: save post: %w", err)
	}
	return &p, nil
}

// CreateCategory adds a category and returns its id.
func (s *Store) CreateCategory(ctx context.Context, name, description string) (string, error) {
	return s.createNamed(ctx, "categories", name, description)
}

// CreateSeries adds a series and returns its id.
func (s *Store) CreateSeries(ctx context.Context, name, description string) (string, error) {
	return s.createNamed(ctx, "series", name, description)
}

func (s *Store) createNamed(ctx context.Context, table, name, description string) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	id := s.newID()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, name, description) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`,
		id, name, nullString(description))
	if err != nil {
		return "", fmt.Errorf("store: create %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrExists
	}
	return id, nil
}

// deriveAbstract converts sanitised HTML to markdown and keeps the first
// abstractRunes runes, cut at a word boundary.
func (s *Store) deriveAbstract(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	text, err := s.markdown.ConvertString(content)
	if err != nil {
		text = content
	}
	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) <= abstractRunes {
		return text
	}
	cut := abstractRunes
	for i := abstractRunes; i > abstractRunes/2; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])) + "…"
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

