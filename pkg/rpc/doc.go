// Package rpc is the per-site dispatch table behind the request channel.
//
// Handlers are registered by logical path with typed request and
// response shapes:
//
//	reg := rpc.NewRegistry()
//	rpc.Handle(reg, "/backstage/current-user", currentUser)
//
//	out, err := reg.Dispatch(ctx, "/backstage/current-user", []byte(`{}`), sess)
//
// Request types that implement Validator are checked before the handler
// runs. Every failure is an *Error whose Kind maps to an HTTP status:
//
//	IllegalArgs  400
//	Parse        400
//	NoSuchRoute  404
//	Forbidden    403
//	Unauthorized 403
//	Internal     500
//
// Registry.Channel adapts the registry to channel.Channel for use while
// prerendering pages on the server.
package rpc
