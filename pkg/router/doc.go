// Package router compiles page route patterns into a trie and resolves
// request paths against it.
//
// Patterns are literal segments and {name} captures:
//
//	/
//	/about
//	/posts/recent
//	/posts/{id}
//
// # Resolution
//
// At every depth a literal edge is preferred over the capture edge, so
// /posts/recent shadows /posts/{id}. Once an edge is taken it is never
// revisited. A path that matches nothing resolves to NotFound, and the
// caller renders its default page.
//
// # Building
//
// Each node has a single capture edge. Declaring two captures with
// different names at the same depth is rejected by Build, as is declaring
// the same pattern twice.
package router
