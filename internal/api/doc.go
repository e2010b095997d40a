// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/sync to run an aggregation cycle on demand.
//   - GET /v1/records and /v1/status for the active record set and the
//     most recent cycle summary.
package api
