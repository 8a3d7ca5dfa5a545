// Package telemetry collects Prometheus metrics and configures the
// OpenTelemetry tracer provider.
//
// Metrics implements the observer interfaces of pkg/rpc, pkg/page and
// pkg/session, so one value can be handed to every component:
//
//	m := telemetry.NewMetrics(telemetry.WithRegistry(reg))
//	rpc.NewRegistry(rpc.WithObserver(m))
//	session.NewManager(store, secret, session.WithObserver(m))
//
// Metrics collected (namespace "lightletter"):
//   - rpc_calls_total: RPC calls by path and outcome
//   - rpc_duration_seconds: RPC handler duration by path
//   - prerenders_total: page prerenders by route target and found
//   - prerender_duration_seconds: prerender duration by route target
//   - session_tokens_total: tokens minted, verified and rejected
//   - session_rejections_total: rejected tokens by reason
//   - session_tokens_swept_total: expired token files removed
//   - dispatch_total: requests by site and outcome (served, redirect, unknown_host)
package telemetry
