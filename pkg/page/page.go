package page

import (
	"context"
	"encoding/json"
	"io"
	"net/url"

	"github.com/light-letter/lightletter/pkg/channel"
)

// MetaData is page metadata produced alongside the fetched data.
type MetaData struct {
	Title string `json:"title"`
}

// Args are the inputs of one Fetch: the route captures, the decoded query
// string and the channel to fetch through.
type Args[Q any] struct {
	Params  map[string]string
	Query   Q
	Channel channel.Channel
}

// Param returns the captured path segment for name, or "".
func (a Args[Q]) Param(name string) string {
	return a.Params[name]
}

// Component is implemented by every page type.
//
// Fetch must not fail: on channel errors implementations log and return
// an empty data value. Fetch must not modify the component; everything
// Render depends on travels in D. Apply pushes data into the live state.
// The server applies the snapshot bytes, not the fetched value, so a
// prerendered and a hydrated instance render the same output.
type Component[Q, D any] interface {
	Fetch(ctx context.Context, args Args[Q]) (D, MetaData)
	Apply(data D)
	Render(w io.Writer) error
}

// Phase is the lifecycle state of a page instance.
type Phase uint8

const (
	Constructed Phase = iota
	Fetching
	Applied
	Terminal
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case Constructed:
		return "Constructed"
	case Fetching:
		return "Fetching"
	case Applied:
		return "Applied"
	case Terminal:
		return "Terminal"
	default:
		return "Unknown"
	}
}

// Instance is a live page.
type Instance interface {
	// Target is the route pattern the instance was created for.
	Target() string
	Phase() Phase
	Meta() MetaData
	// NeedsRender reports whether Apply ran since the last Render.
	NeedsRender() bool
	Render(w io.Writer) error
	// State returns the underlying component.
	State() any
}

type instance[Q, D any] struct {
	target      string
	comp        Component[Q, D]
	phase       Phase
	meta        MetaData
	needsRender bool
}

func (i *instance[Q, D]) Target() string    { return i.target }
func (i *instance[Q, D]) Phase() Phase      { return i.phase }
func (i *instance[Q, D]) Meta() MetaData    { return i.meta }
func (i *instance[Q, D]) NeedsRender() bool { return i.needsRender }
func (i *instance[Q, D]) State() any        { return i.comp }

func (i *instance[Q, D]) Render(w io.Writer) error {
	if err := i.comp.Render(w); err != nil {
		return err
	}
	i.needsRender = false
	return nil
}

func (i *instance[Q, D]) terminate() {
	i.phase = Terminal
}

func (i *instance[Q, D]) apply(data D, meta MetaData) {
	i.comp.Apply(data)
	i.meta = meta
	i.phase = Applied
	i.needsRender = true
}

// Definition binds a route pattern to a page type.
type Definition interface {
	Pattern() string

	fetch(ctx context.Context, target string, params map[string]string, query url.Values, ch channel.Channel) (Instance, json.RawMessage, error)
	hydrate(target string, data json.RawMessage, meta MetaData) (Instance, error)
}

type definition[Q, D any] struct {
	pattern string
	newFn   func() Component[Q, D]
}

// Define declares a page type for pattern. newFn returns a component in
// its default, empty state.
//
// Example:
//
//	page.Define("/posts/{id}", func() page.Component[PostQuery, PostData] { return &PostPage{} })
func Define[Q, D any](pattern string, newFn func() Component[Q, D]) Definition {
	return &definition[Q, D]{pattern: pattern, newFn: newFn}
}

func (d *definition[Q, D]) Pattern() string {
	return d.pattern
}

func (d *definition[Q, D]) fetch(ctx context.Context, target string, params map[string]string, query url.Values, ch channel.Channel) (Instance, json.RawMessage, error) {
	inst := &instance[Q, D]{target: target, comp: d.newFn(), phase: Constructed}

	args := Args[Q]{Params: params, Query: DecodeQuery[Q](query), Channel: ch}
	inst.phase = Fetching
	data, meta := inst.comp.Fetch(ctx, args)

	// The snapshot is the fetched value, captured before Apply.
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, nil, err
	}
	var replay D
	if err := json.Unmarshal(raw, &replay); err != nil {
		return nil, nil, err
	}
	inst.apply(replay, meta)
	return inst, raw, nil
}

func (d *definition[Q, D]) hydrate(target string, raw json.RawMessage, meta MetaData) (Instance, error) {
	var data D
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	inst := &instance[Q, D]{target: target, comp: d.newFn(), phase: Constructed}
	inst.apply(data, meta)
	inst.phase = Terminal
	return inst, nil
}

// DecodeQuery decodes a query string into Q through its JSON field names.
// Only the first value of each key is used. A query that does not fit Q
// decodes to the zero value.
func DecodeQuery[Q any](values url.Values) Q {
	var q Q
	if len(values) == 0 {
		return q
	}
	flat := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			flat[k] = vs[0]
		}
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return q
	}
	if err := json.Unmarshal(b, &q); err != nil {
		var zero Q
		return zero
	}
	return q
}
