package page

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/light-letter/lightletter/pkg/channel"
	"github.com/light-letter/lightletter/pkg/router"
)

const tracerName = "github.com/light-letter/lightletter/pkg/page"

// ErrTargetMismatch is returned by Hydrate when the snapshot was produced
// for a different route than the path resolves to.
var ErrTargetMismatch = errors.New("page: snapshot target does not match path")

// Observer receives prerender timings. internal/telemetry provides a
// Prometheus-backed implementation.
type Observer interface {
	ObservePrerender(target string, found bool, d time.Duration)
}

// Request identifies the page to prerender.
type Request struct {
	Path     string
	RawQuery string
}

// Result is the outcome of a prerender.
type Result struct {
	Instance Instance
	Snapshot Snapshot
	// Found is false when the default page ran because nothing matched.
	Found bool
}

// Set is the route table of one site section plus its page types. It is
// immutable after NewSet and safe for concurrent use.
type Set struct {
	table    *router.Table
	defs     map[string]Definition
	notFound Definition
	observer Observer
	tracer   trace.Tracer
}

// SetOption configures a Set.
type SetOption func(*Set)

// WithObserver sets the prerender observer.
func WithObserver(o Observer) SetOption {
	return func(s *Set) {
		s.observer = o
	}
}

// NewSet compiles defs into a route table. notFound is mandatory and runs
// for every path that matches nothing.
func NewSet(notFound Definition, defs []Definition, opts ...SetOption) (*Set, error) {
	if notFound == nil {
		return nil, errors.New("page: a not-found page is required")
	}
	patterns := make([]string, 0, len(defs))
	byPattern := make(map[string]Definition, len(defs))
	for _, d := range defs {
		patterns = append(patterns, d.Pattern())
		byPattern[d.Pattern()] = d
	}
	table, err := router.Build(patterns...)
	if err != nil {
		return nil, err
	}

	s := &Set{
		table:    table,
		defs:     byPattern,
		notFound: notFound,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MustNewSet is like NewSet but panics on error.
func MustNewSet(notFound Definition, defs []Definition, opts ...SetOption) *Set {
	s, err := NewSet(notFound, defs, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Resolve returns the route match for path.
func (s *Set) Resolve(path string) router.Match {
	return s.table.Resolve(path)
}

// Patterns returns the declared page patterns.
func (s *Set) Patterns() []string {
	return s.table.Patterns()
}

func (s *Set) definition(m router.Match) Definition {
	if !m.Found() {
		return s.notFound
	}
	return s.defs[m.Target]
}

// Prerender runs the full server lifecycle for req: resolve, construct,
// fetch through ch, apply, and snapshot. A path that matches nothing
// runs the not-found page and reports Found == false.
func (s *Set) Prerender(ctx context.Context, req Request, ch channel.Channel) (*Result, error) {
	start := time.Now()
	m := s.table.Resolve(req.Path)

	ctx, span := s.tracer.Start(ctx, "page.prerender",
		trace.WithAttributes(
			attribute.String("lightletter.page_path", req.Path),
			attribute.String("lightletter.page_target", m.Target),
		),
	)
	defer span.End()

	query, err := url.ParseQuery(req.RawQuery)
	if err != nil {
		query = nil
	}

	inst, raw, err := s.definition(m).fetch(ctx, m.Target, m.Params, query, ch)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("page: snapshot %q: %w", req.Path, err)
	}

	res := &Result{
		Instance: inst,
		Snapshot: Snapshot{Target: m.Target, Data: raw, Meta: inst.Meta()},
		Found:    m.Found(),
	}
	if i, ok := inst.(interface{ terminate() }); ok {
		i.terminate()
	}

	if s.observer != nil {
		s.observer.ObservePrerender(m.Target, m.Found(), time.Since(start))
	}
	return res, nil
}

// Navigate runs a fresh client-side fetch for path through ch, typically
// a wire channel. Unlike Prerender the instance stays live (Applied).
func (s *Set) Navigate(ctx context.Context, req Request, ch channel.Channel) (Instance, error) {
	m := s.table.Resolve(req.Path)
	query, err := url.ParseQuery(req.RawQuery)
	if err != nil {
		query = nil
	}
	inst, _, err := s.definition(m).fetch(ctx, m.Target, m.Params, query, ch)
	return inst, err
}

// Hydrate resumes the page for path from a snapshot without fetching.
func (s *Set) Hydrate(path string, snap Snapshot) (Instance, error) {
	m := s.table.Resolve(path)
	if m.Target != snap.Target {
		return nil, fmt.Errorf("%w: path %q resolves to %q, snapshot is for %q", ErrTargetMismatch, path, m.Target, snap.Target)
	}
	inst, err := s.definition(m).hydrate(m.Target, snap.Data, snap.Meta)
	if err != nil {
		return nil, fmt.Errorf("page: hydrate %q: %w", path, err)
	}
	return inst, nil
}

// HydrateEncoded is Hydrate for the base64 form embedded in documents.
func (s *Set) HydrateEncoded(path, encoded string) (Instance, error) {
	snap, err := DecodeSnapshot(encoded)
	if err != nil {
		return nil, err
	}
	return s.Hydrate(path, snap)
}
