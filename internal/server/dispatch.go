package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/light-letter/lightletter/internal/telemetry"
)

const tracerName = "github.com/light-letter/lightletter/internal/server"

// Observer receives the outcome of every dispatched request.
// internal/telemetry provides a Prometheus-backed implementation.
type Observer interface {
	ObserveDispatch(site, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveDispatch(string, string) {}

type hostEntry struct {
	site    string
	handler http.Handler
}

// Dispatcher routes requests by Host header. Hosts and aliases are
// compared byte for byte, port included.
type Dispatcher struct {
	hosts    map[string]hostEntry
	aliases  map[string]string
	observer Observer
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewDispatcher returns an empty Dispatcher. A nil observer discards
// outcomes.
func NewDispatcher(observer Observer, logger *slog.Logger) *Dispatcher {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		hosts:    make(map[string]hostEntry),
		aliases:  make(map[string]string),
		observer: observer,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// Add registers a site under host and its aliases. Claiming a host twice
// is a programming error; config validation rejects it first.
func (d *Dispatcher) Add(site, host string, aliases []string, h http.Handler) {
	if d.claimed(host) {
		panic(fmt.Sprintf("server: host %q registered twice", host))
	}
	d.hosts[host] = hostEntry{site: site, handler: h}
	for _, a := range aliases {
		if d.claimed(a) {
			panic(fmt.Sprintf("server: host %q registered twice", a))
		}
		d.aliases[a] = host
	}
}

func (d *Dispatcher) claimed(host string) bool {
	_, ok := d.hosts[host]
	_, alias := d.aliases[host]
	return ok || alias
}

// Hosts returns the number of primary hosts.
func (d *Dispatcher) Hosts() int {
	return len(d.hosts)
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if e, ok := d.hosts[r.Host]; ok {
		ctx, span := d.tracer.Start(r.Context(), "dispatch "+e.site,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("lightletter.site", e.site),
				attribute.String("http.host", r.Host),
				attribute.String("http.method", r.Method),
			),
		)
		defer span.End()
		d.observer.ObserveDispatch(e.site, telemetry.DispatchServed)
		e.handler.ServeHTTP(w, r.WithContext(ctx))
		return
	}

	if host, ok := d.aliases[r.Host]; ok {
		d.observer.ObserveDispatch(d.hosts[host].site, telemetry.DispatchRedirect)
		redirect(w, "//"+host+r.URL.RequestURI())
		return
	}

	d.observer.ObserveDispatch("", telemetry.DispatchUnknownHost)
	d.logger.Debug("unknown host", "host", r.Host, "path", r.URL.Path)
	notFound(w)
}
