package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/light-letter/lightletter/pkg/channel"
	"github.com/light-letter/lightletter/pkg/session"
)

const tracerName = "github.com/light-letter/lightletter/pkg/rpc"

// Validator is implemented by request types with argument constraints.
// Validate runs before the handler, so a failing request never reaches
// storage.
type Validator interface {
	Validate() error
}

// HandlerFunc is a typed RPC handler. The session is owned by the handler
// for the duration of the call; mutating it marks it dirty.
type HandlerFunc[Req, Resp any] func(ctx context.Context, req Req, s *session.Session) (Resp, error)

// Observer receives per-call results. internal/telemetry provides a
// Prometheus-backed implementation.
type Observer interface {
	ObserveCall(path, outcome string, d time.Duration)
}

type handler func(ctx context.Context, payload []byte, s *session.Session) ([]byte, error)

// Registry maps logical RPC paths to handlers. Register everything at
// startup; a Registry is read-only afterwards and safe for concurrent use.
type Registry struct {
	handlers map[string]handler
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		r.observer = o
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[string]handler),
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle registers fn under path. Registering a path twice panics.
//
// Example:
//
//	rpc.Handle(reg, "/backstage/login", func(ctx context.Context, req LoginReq, s *session.Session) (LoginResp, error) {
//	    ...
//	})
func Handle[Req, Resp any](r *Registry, path string, fn HandlerFunc[Req, Resp]) {
	if _, dup := r.handlers[path]; dup {
		panic(fmt.Sprintf("rpc: duplicate handler for %s", path))
	}
	r.handlers[path] = func(ctx context.Context, payload []byte, s *session.Session) ([]byte, error) {
		var req Req
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, &Error{Kind: Parse, Message: err.Error(), Wrapped: err}
		}
		if v, ok := any(&req).(Validator); ok {
			if err := v.Validate(); err != nil {
				return nil, toIllegalArgs(err)
			}
		}

		resp, err := fn(ctx, req, s)
		if err != nil {
			return nil, AsError(err)
		}
		out, err := json.Marshal(resp)
		if err != nil {
			return nil, &Error{Kind: Parse, Message: err.Error(), Wrapped: err}
		}
		return out, nil
	}
}

func toIllegalArgs(err error) *Error {
	re := AsError(err)
	if re.Kind == Internal {
		return &Error{Kind: IllegalArgs, Message: err.Error(), Wrapped: err}
	}
	return re
}

// Dispatch runs the handler registered for path. Failures are always
// *Error values.
func (r *Registry) Dispatch(ctx context.Context, path string, payload []byte, s *session.Session) ([]byte, error) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "rpc "+path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("lightletter.rpc_path", path)),
	)
	defer span.End()

	h, ok := r.handlers[path]
	if !ok {
		r.logger.Warn("rpc no route found", "path", path)
		err := &Error{Kind: NoSuchRoute, Message: "no such route: " + path}
		r.finish(span, path, err, start)
		return nil, err
	}

	out, err := h(ctx, payload, s)
	if err != nil {
		re := AsError(err)
		if re.Kind == Internal {
			r.logger.Error("rpc request failed", "path", path, "error", re.Message)
		} else {
			r.logger.Debug("rpc request rejected", "path", path, "kind", re.Kind.String(), "error", re.Message)
		}
		r.finish(span, path, re, start)
		return nil, re
	}

	r.logger.Debug("rpc request finished", "path", path)
	r.finish(span, path, nil, start)
	return out, nil
}

func (r *Registry) finish(span trace.Span, path string, err *Error, start time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = err.Kind.String()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	if r.observer != nil {
		// Unknown paths share one label.
		if err != nil && err.Kind == NoSuchRoute {
			path = "unknown"
		}
		r.observer.ObserveCall(path, outcome, time.Since(start))
	}
}

// Channel returns the in-process variant of channel.Channel bound to s.
// It calls Dispatch directly and performs no I/O; RPC failures are
// reported as channel.Custom errors carrying the RPC message.
func (r *Registry) Channel(s *session.Session) channel.Channel {
	return channel.Func(func(ctx context.Context, path string, payload []byte) ([]byte, error) {
		out, err := r.Dispatch(ctx, path, payload, s)
		if err != nil {
			return nil, &channel.Error{Kind: channel.Custom, Message: err.Error()}
		}
		return out, nil
	})
}

// Paths returns the registered paths in sorted order.
func (r *Registry) Paths() []string {
	paths := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
