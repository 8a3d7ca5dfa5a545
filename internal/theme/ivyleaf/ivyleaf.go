// Package ivyleaf is the default blog theme.
package ivyleaf

import (
	"context"
	_ "embed"
	"html/template"
	"io"
	"log/slog"

	"github.com/light-letter/lightletter/internal/backstage"
	"github.com/light-letter/lightletter/internal/store"
	"github.com/light-letter/lightletter/pkg/channel"
	"github.com/light-letter/lightletter/pkg/page"
)

// Name is the key of the theme in config.toml.
const Name = "ivy-leaf"

const (
	defaultTitle = "Secret Stories of LastLeaf"
	pageSize     = 10
)

//go:embed style.css
var stylesheet []byte

var templates = template.Must(template.New("ivy-leaf").Parse(`
{{define "header"}}<div class="header"><div class="title"><a href="/">{{.Title}}</a></div>
{{- with .Description}}<div class="subtitle">{{.}}</div>{{end}}</div>{{end}}

{{define "footer"}}<div class="footer">Powered by <a target="_blank" href="https://github.com/LastLeaf/light-letter">light-letter</a>. <a href="/about">About</a></div>{{end}}

{{define "index"}}<div class="wrapper">{{template "header" .Site}}<div class="body">
{{- if .Posts}}<ul class="post-list">{{range .Posts}}<li><a href="/posts/{{.ID}}">{{.Title}}</a><div class="abstract">{{.Abstract}}</div></li>{{end}}</ul>
{{- else}}<div class="empty">Coming Soon...</div>{{end}}
{{- if or .Page .HasNext}}<div class="pager">{{if .Page}}<a href="/?page={{.Prev}}">Newer</a>{{end}}{{if .HasNext}}<a href="/?page={{.Next}}">Older</a>{{end}}</div>{{end -}}
</div>{{template "footer"}}</div>{{end}}

{{define "about"}}<div class="wrapper">{{template "header" .Site}}<div class="body about">
{{- if .Site.Description}}<p>{{.Site.Description}}</p>{{else}}<p>A blog powered by light-letter.</p>{{end -}}
</div>{{template "footer"}}</div>{{end}}

{{define "post"}}<div class="wrapper">{{template "header" .Site}}<div class="body">
{{- with .Post}}<article class="post"><h1>{{.Title}}</h1><div class="content">{{.HTML}}</div>
{{- with .Tags}}<ul class="tags">{{range .}}<li>{{.}}</li>{{end}}</ul>{{end}}</article>
{{- else}}<div class="empty">This post does not exist.</div>{{end -}}
</div>{{template "footer"}}</div>{{end}}

{{define "notfound"}}<div class="wrapper"><div class="body"><div class="empty">Not Found</div></div>{{template "footer"}}</div>{{end}}
`))

// Theme is the ivy-leaf theme.
type Theme struct{}

func (Theme) Name() string       { return Name }
func (Theme) Stylesheet() []byte { return stylesheet }

// Pages returns the public page set: the post index, the about page and
// single posts.
func (Theme) Pages(logger *slog.Logger, opts ...page.SetOption) *page.Set {
	if logger == nil {
		logger = slog.Default()
	}
	return page.MustNewSet(
		page.Define("", func() page.Component[struct{}, struct{}] { return notFoundPage{} }),
		[]page.Definition{
			page.Define("/", func() page.Component[IndexQuery, IndexData] { return &indexPage{logger: logger} }),
			page.Define("/about", func() page.Component[struct{}, AboutData] { return &aboutPage{logger: logger} }),
			page.Define("/posts/{id}", func() page.Component[struct{}, PostData] { return &postPage{logger: logger} }),
		},
		opts...,
	)
}

// SiteInfo is the header data shared by every page.
type SiteInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func fetchSite(ctx context.Context, ch channel.Channel, logger *slog.Logger) SiteInfo {
	site := SiteInfo{Title: defaultTitle}
	info, err := channel.Request[backstage.SiteInfoResp](ctx, ch, backstage.PathSiteInfo, backstage.Empty{})
	if err != nil {
		logger.Warn("fetch site info failed", "error", err)
		return site
	}
	if info.Title != "" {
		site.Title = info.Title
	}
	site.Description = info.Description
	return site
}

// IndexQuery selects a page of the post index, counted from 0.
type IndexQuery struct {
	Page int `json:"page,string"`
}

// IndexData is one page of published posts.
type IndexData struct {
	Site    SiteInfo         `json:"site"`
	Posts   []store.PostMeta `json:"posts"`
	Page    int              `json:"page"`
	HasNext bool             `json:"has_next"`
}

func (d IndexData) Prev() int { return d.Page - 1 }
func (d IndexData) Next() int { return d.Page + 1 }

type indexPage struct {
	logger *slog.Logger
	IndexData
}

func (p *indexPage) Fetch(ctx context.Context, args page.Args[IndexQuery]) (IndexData, page.MetaData) {
	data := IndexData{Site: fetchSite(ctx, args.Channel, p.logger), Page: max(args.Query.Page, 0)}
	meta := page.MetaData{Title: data.Site.Title}

	// One extra row tells whether an older page exists.
	req := backstage.PostListReq{Skip: data.Page * pageSize, Count: pageSize + 1, Published: true}
	list, err := channel.Request[backstage.PostListResp](ctx, args.Channel, backstage.PathPostList, req)
	if err != nil {
		p.logger.Warn("fetch post index failed", "error", err)
		return data, meta
	}
	if len(list.Posts) > pageSize {
		data.HasNext = true
		list.Posts = list.Posts[:pageSize]
	}
	data.Posts = list.Posts
	return data, meta
}

func (p *indexPage) Apply(d IndexData)        { p.IndexData = d }
func (p *indexPage) Render(w io.Writer) error { return templates.ExecuteTemplate(w, "index", p.IndexData) }

// AboutData is the data of the about page.
type AboutData struct {
	Site SiteInfo `json:"site"`
}

type aboutPage struct {
	logger *slog.Logger
	AboutData
}

func (p *aboutPage) Fetch(ctx context.Context, args page.Args[struct{}]) (AboutData, page.MetaData) {
	site := fetchSite(ctx, args.Channel, p.logger)
	return AboutData{Site: site}, page.MetaData{Title: "About - " + site.Title}
}

func (p *aboutPage) Apply(d AboutData)        { p.AboutData = d }
func (p *aboutPage) Render(w io.Writer) error { return templates.ExecuteTemplate(w, "about", p.AboutData) }

// Post is a post as shown by the theme.
type Post struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// HTML returns the content, which the store sanitised on save.
func (p Post) HTML() template.HTML { return template.HTML(p.Content) }

// PostData is the data of a single post page. Post is nil when the post
// does not exist or is not visible.
type PostData struct {
	Site SiteInfo `json:"site"`
	Post *Post    `json:"post"`
}

type postPage struct {
	logger *slog.Logger
	PostData
}

func (p *postPage) Fetch(ctx context.Context, args page.Args[struct{}]) (PostData, page.MetaData) {
	data := PostData{Site: fetchSite(ctx, args.Channel, p.logger)}
	meta := page.MetaData{Title: data.Site.Title}

	resp, err := channel.Request[backstage.PostGetResp](ctx, args.Channel, backstage.PathPostGet, backstage.PostGetReq{ID: args.Param("id")})
	if err != nil {
		p.logger.Warn("fetch post failed", "id", args.Param("id"), "error", err)
		return data, meta
	}
	if resp.Post == nil {
		return data, meta
	}
	data.Post = &Post{ID: resp.Post.ID, Title: resp.Post.Title, Content: resp.Post.Content, Tags: resp.Post.Tags}
	meta.Title = resp.Post.Title + " - " + data.Site.Title
	return data, meta
}

func (p *postPage) Apply(d PostData)         { p.PostData = d }
func (p *postPage) Render(w io.Writer) error { return templates.ExecuteTemplate(w, "post", p.PostData) }

type notFoundPage struct{}

func (notFoundPage) Fetch(ctx context.Context, args page.Args[struct{}]) (struct{}, page.MetaData) {
	return struct{}{}, page.MetaData{Title: "Not Found"}
}

func (notFoundPage) Apply(struct{}) {}

func (notFoundPage) Render(w io.Writer) error { return templates.ExecuteTemplate(w, "notfound", nil) }
