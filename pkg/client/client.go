package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/light-letter/lightletter/pkg/channel"
	"github.com/light-letter/lightletter/pkg/page"
	"github.com/light-letter/lightletter/pkg/render"
)

// ErrNoSnapshot is returned when a document carries no prerendered snapshot.
var ErrNoSnapshot = errors.New("client: document has no prerendered snapshot")

const maxDocumentBytes = 8 << 20

// ExtractSnapshot returns the encoded snapshot embedded in an HTML document.
func ExtractSnapshot(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("client: parse document: %w", err)
	}
	n := findSnapshot(doc)
	if n == nil {
		return "", ErrNoSnapshot
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func findSnapshot(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == render.SnapshotElementID {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findSnapshot(c); found != nil {
			return found
		}
	}
	return nil
}

// Resume hydrates the page for path from a served document, without
// fetching.
func Resume(set *page.Set, path string, document []byte) (page.Instance, error) {
	encoded, err := ExtractSnapshot(bytes.NewReader(document))
	if err != nil {
		return nil, err
	}
	return set.HydrateEncoded(path, encoded)
}

// Client drives a site the way the browser bundle does: the first load
// resumes the prerendered document, later navigations fetch over the wire.
// A cookie jar carries the session between calls.
type Client struct {
	baseURL string
	set     *page.Set
	http    *http.Client
	wire    *channel.Wire
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. It should have a
// cookie jar for sessions to work.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the site at baseURL using set as its pages.
func New(baseURL string, set *page.Set, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		set:     set,
		http:    &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.wire = channel.NewWire(c.baseURL, channel.WithHTTPClient(c.http))
	return c
}

// Channel returns the wire channel sharing the client's cookies.
func (c *Client) Channel() channel.Channel {
	return c.wire
}

// Open loads the document for target (a path with optional query) and
// resumes it from its snapshot. The HTTP status is returned alongside, so
// callers can tell a themed 404 from a page.
func (c *Client) Open(ctx context.Context, target string) (page.Instance, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+target, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	inst, err := Resume(c.set, u.Path, body)
	return inst, resp.StatusCode, err
}

// Navigate runs a fresh client-side fetch for target over the wire.
func (c *Client) Navigate(ctx context.Context, target string) (page.Instance, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	return c.set.Navigate(ctx, page.Request{Path: u.Path, RawQuery: u.RawQuery}, c.wire)
}
