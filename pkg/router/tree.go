package router

import (
	"fmt"
	"strings"
)

// routeNode is a node in the route trie.
type routeNode struct {
	// segment is the literal path segment this node matches
	segment string

	// paramName is set on a dynamic node ({name})
	paramName string

	// target is the pattern that ends at this node
	target    string
	hasTarget bool

	// children are static segment children
	children []*routeNode

	// paramChild is the single dynamic child ({name})
	paramChild *routeNode
}

func newRouteNode(segment string) *routeNode {
	return &routeNode{segment: segment}
}

// findChild finds a child node with an exact segment match.
func (n *routeNode) findChild(segment string) *routeNode {
	for _, child := range n.children {
		if child.segment == segment {
			return child
		}
	}
	return nil
}

// addChild adds or retrieves a child node for the given segment.
func (n *routeNode) addChild(segment string) *routeNode {
	if child := n.findChild(segment); child != nil {
		return child
	}
	child := newRouteNode(segment)
	n.children = append(n.children, child)
	return child
}

// addParamChild sets or reuses the dynamic child. A node has at most one
// dynamic edge, so a second capture with a different name is rejected.
func (n *routeNode) addParamChild(name string) (*routeNode, error) {
	if n.paramChild != nil {
		if n.paramChild.paramName != name {
			return nil, fmt.Errorf("%w: {%s} and {%s}", ErrConflictingParam, n.paramChild.paramName, name)
		}
		return n.paramChild, nil
	}
	child := newRouteNode("")
	child.paramName = name
	n.paramChild = child
	return child, nil
}

// insertRoute walks (creating as needed) the nodes for pattern and marks
// the final one as its target.
func (n *routeNode) insertRoute(pattern string) error {
	current := n
	for _, seg := range splitPath(pattern) {
		name, isParam := parseParamSegment(seg)
		if !isParam {
			current = current.addChild(seg)
			continue
		}
		if name == "" {
			return fmt.Errorf("%w in %q", ErrEmptyParam, pattern)
		}
		next, err := current.addParamChild(name)
		if err != nil {
			return fmt.Errorf("route %q: %w", pattern, err)
		}
		current = next
	}

	if current.hasTarget {
		return fmt.Errorf("%w: %q shadows %q", ErrDuplicateRoute, pattern, current.target)
	}
	current.target = pattern
	current.hasTarget = true
	return nil
}

// match walks the trie for segments. A literal edge always wins over the
// dynamic edge, and a taken edge is never revisited.
func (n *routeNode) match(segments []string, params map[string]string) (*routeNode, bool) {
	current := n
	for _, seg := range segments {
		if child := current.findChild(seg); child != nil {
			current = child
			continue
		}
		if current.paramChild == nil {
			return nil, false
		}
		current = current.paramChild
		params[current.paramName] = seg
	}
	if !current.hasTarget {
		return nil, false
	}
	return current, true
}

// splitPath splits a path into segments, dropping empty ones so leading,
// trailing and doubled slashes are irrelevant.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// parseParamSegment reports whether seg is a capture ("{id}") and its name.
func parseParamSegment(seg string) (name string, ok bool) {
	if len(seg) < 2 || seg[0] != '{' || seg[len(seg)-1] != '}' {
		return "", false
	}
	return seg[1 : len(seg)-1], true
}
