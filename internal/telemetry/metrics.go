package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch outcomes.
const (
	DispatchServed      = "served"
	DispatchRedirect    = "redirect"
	DispatchUnknownHost = "unknown_host"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "lightletter").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "lightletter",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors of one process.
type Metrics struct {
	rpcCalls          *prometheus.CounterVec
	rpcDuration       *prometheus.HistogramVec
	prerenders        *prometheus.CounterVec
	prerenderDuration *prometheus.HistogramVec
	sessionTokens     *prometheus.CounterVec
	sessionRejections *prometheus.CounterVec
	sessionsSwept     prometheus.Counter
	dispatch          *prometheus.CounterVec
}

// NewMetrics registers the collectors. Registering twice on the same
// registry panics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		rpcCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "rpc_calls_total",
			Help:        "Total number of RPC calls by path and outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"path", "outcome"}),

		rpcDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "rpc_duration_seconds",
			Help:        "RPC handler duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"path"}),

		prerenders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "prerenders_total",
			Help:        "Total number of page prerenders",
			ConstLabels: config.ConstLabels,
		}, []string{"target", "found"}),

		prerenderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Name:        "prerender_duration_seconds",
			Help:        "Page prerender duration in seconds, fetch included",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"target"}),

		sessionTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "session_tokens_total",
			Help:        "Session tokens by lifecycle event",
			ConstLabels: config.ConstLabels,
		}, []string{"event"}),

		sessionRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "session_rejections_total",
			Help:        "Rejected session tokens by reason",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),

		sessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "session_tokens_swept_total",
			Help:        "Expired session token files removed by the sweeper",
			ConstLabels: config.ConstLabels,
		}),

		dispatch: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Name:        "dispatch_total",
			Help:        "Requests by site and dispatch outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"site", "outcome"}),
	}
}

// ObserveCall implements rpc.Observer.
func (m *Metrics) ObserveCall(path, outcome string, d time.Duration) {
	m.rpcCalls.WithLabelValues(path, outcome).Inc()
	m.rpcDuration.WithLabelValues(path).Observe(d.Seconds())
}

// ObservePrerender implements page.Observer. The not-found page reports
// an empty target.
func (m *Metrics) ObservePrerender(target string, found bool, d time.Duration) {
	if !found {
		target = "not_found"
	}
	m.prerenders.WithLabelValues(target, strconv.FormatBool(found)).Inc()
	m.prerenderDuration.WithLabelValues(target).Observe(d.Seconds())
}

// TokenMinted implements session.Observer.
func (m *Metrics) TokenMinted() {
	m.sessionTokens.WithLabelValues("minted").Inc()
}

// TokenVerified implements session.Observer.
func (m *Metrics) TokenVerified() {
	m.sessionTokens.WithLabelValues("verified").Inc()
}

// TokenRejected implements session.Observer.
func (m *Metrics) TokenRejected(reason string) {
	m.sessionTokens.WithLabelValues("rejected").Inc()
	m.sessionRejections.WithLabelValues(reason).Inc()
}

// TokensSwept implements session.Observer.
func (m *Metrics) TokensSwept(n int) {
	m.sessionsSwept.Add(float64(n))
}

// ObserveDispatch counts one host dispatch decision. Unknown hosts share
// the empty site label.
func (m *Metrics) ObserveDispatch(site, outcome string) {
	m.dispatch.WithLabelValues(site, outcome).Inc()
}
