// Package channel defines the request/response transport pages use to
// fetch data.
//
// A Channel takes a logical path such as "/backstage/current-user" and a
// JSON payload, and returns the JSON response. There are two variants:
//
//   - in-process: a Func bound to a site's RPC registry, used while
//     prerendering on the server. It never performs I/O.
//   - wire: Wire, an HTTP POST to "/rpc" + path, used after hydration.
//
// Request wraps either variant with typed encoding:
//
//	resp, err := channel.Request[PostListResp](ctx, ch, "/backstage/post/list", PostListReq{Count: 10})
//	if errors.Is(err, channel.ErrCustom) {
//	    // server or transport failure
//	}
//
// Channels never retry. Retry policy belongs to the caller.
package channel
