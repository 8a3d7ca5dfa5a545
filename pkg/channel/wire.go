package channel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// RPCPrefix is prepended to every logical path on the wire.
const RPCPrefix = "/rpc"

const tracerName = "github.com/light-letter/lightletter/pkg/channel"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// Wire is the network variant of Channel: each call is an HTTP POST of a
// JSON body to baseURL + "/rpc" + path.
type Wire struct {
	baseURL string
	client  *http.Client
	header  http.Header
	tracer  trace.Tracer
}

// WireOption configures a Wire channel.
type WireOption func(*Wire)

// WithHTTPClient sets the HTTP client. Give it a cookie jar to carry the
// session cookie between calls the way a browser does.
func WithHTTPClient(c *http.Client) WireOption {
	return func(w *Wire) {
		w.client = c
	}
}

// WithHeader adds a header sent with every call.
func WithHeader(key, value string) WireOption {
	return func(w *Wire) {
		w.header.Add(key, value)
	}
}

// NewWire creates a wire channel rooted at baseURL (e.g. "https://blog.example").
func NewWire(baseURL string, opts ...WireOption) *Wire {
	w := &Wire{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		header:  make(http.Header),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// URL returns the endpoint a logical path is posted to.
func (w *Wire) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return w.baseURL + RPCPrefix + path
}

// Do implements Channel. Non-2xx statuses and transport failures are
// reported as Custom errors carrying the server's message, or a
// transport-level description when there is none.
func (w *Wire) Do(ctx context.Context, path string, payload []byte) ([]byte, error) {
	ctx, span := w.tracer.Start(ctx, "channel.wire "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("lightletter.rpc_path", path)),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL(path), bytes.NewReader(payload))
	if err != nil {
		return nil, w.fail(span, &Error{Kind: InvalidRequest, Message: err.Error()})
	}
	for k, vs := range w.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, w.fail(span, &Error{Kind: Custom, Message: err.Error()})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, w.fail(span, &Error{Kind: Custom, Message: fmt.Sprintf("read response: %v", err)})
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return nil, w.fail(span, &Error{Kind: Custom, Message: msg})
	}

	span.SetStatus(codes.Ok, "")
	return body, nil
}

func (w *Wire) fail(span trace.Span, err *Error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Message)
	return err
}
