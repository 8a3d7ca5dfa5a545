package router

import (
	"errors"
	"slices"
)

// NotFound is the target reported for a path that matches no route.
const NotFound = ""

var (
	// ErrDuplicateRoute is returned when two patterns end at the same node.
	ErrDuplicateRoute = errors.New("router: duplicate route")

	// ErrConflictingParam is returned when two differently named captures
	// diverge at the same depth, e.g. /a/{x}/b and /a/{y}/c.
	ErrConflictingParam = errors.New("router: conflicting capture names")

	// ErrEmptyParam is returned for a capture segment without a name ("{}").
	ErrEmptyParam = errors.New("router: empty capture name")
)

// Match is the result of resolving a concrete path.
type Match struct {
	// Target is the declared pattern that matched, or NotFound.
	Target string

	// Params maps capture names to the raw path segments they matched.
	Params map[string]string
}

// Found reports whether a declared route matched.
func (m Match) Found() bool {
	return m.Target != NotFound
}

// Param returns the captured value for name, or "".
func (m Match) Param(name string) string {
	return m.Params[name]
}

// Table is a compiled, immutable route trie. It is safe for concurrent use.
type Table struct {
	root     *routeNode
	patterns []string
}

// Build compiles patterns into a Table.
//
// Patterns are split on "/" and empty segments are dropped. A segment of
// the form {name} captures one path segment.
//
// Example:
//
//	t, err := router.Build("/", "/posts/recent", "/posts/{id}")
//	m := t.Resolve("/posts/42") // m.Target == "/posts/{id}", m.Params["id"] == "42"
func Build(patterns ...string) (*Table, error) {
	t := &Table{root: newRouteNode("")}
	var errs []error
	for _, p := range patterns {
		if err := t.root.insertRoute(p); err != nil {
			errs = append(errs, err)
			continue
		}
		t.patterns = append(t.patterns, p)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

// MustBuild is like Build but panics on error. Use it for static
// declaration lists.
func MustBuild(patterns ...string) *Table {
	t, err := Build(patterns...)
	if err != nil {
		panic(err)
	}
	return t
}

// Resolve matches path against the table. A path that does not match
// resolves to NotFound with no captures; it is never an error.
func (t *Table) Resolve(path string) Match {
	params := make(map[string]string)
	node, ok := t.root.match(splitPath(path), params)
	if !ok {
		return Match{Target: NotFound}
	}
	return Match{Target: node.target, Params: params}
}

// Patterns returns the declared patterns in declaration order.
func (t *Table) Patterns() []string {
	return slices.Clone(t.patterns)
}
