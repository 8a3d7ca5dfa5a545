package channel

import (
	"context"
	"encoding/json"
	"errors"
)

// Channel delivers a serialized request to the handler registered under
// path and returns its serialized response.
//
// Implementations hold no mutable state and may be shared freely. A
// channel never retries.
type Channel interface {
	Do(ctx context.Context, path string, payload []byte) ([]byte, error)
}

// Func adapts an ordinary function to the Channel interface.
type Func func(ctx context.Context, path string, payload []byte) ([]byte, error)

// Do calls f.
func (f Func) Do(ctx context.Context, path string, payload []byte) ([]byte, error) {
	return f(ctx, path, payload)
}

// Request performs a typed call over ch: req is encoded as JSON and the
// response is decoded into Resp.
//
// Example:
//
//	user, err := channel.Request[CurrentUserResp](ctx, ch, "/backstage/current-user", CurrentUserReq{})
func Request[Resp any](ctx context.Context, ch Channel, path string, req any) (Resp, error) {
	var resp Resp

	payload, err := json.Marshal(req)
	if err != nil {
		return resp, &Error{Kind: InvalidRequest, Message: err.Error()}
	}

	out, err := ch.Do(ctx, path, payload)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			return resp, ce
		}
		return resp, &Error{Kind: Custom, Message: err.Error()}
	}

	if err := json.Unmarshal(out, &resp); err != nil {
		return resp, &Error{Kind: InvalidResponse, Message: err.Error()}
	}
	return resp, nil
}
