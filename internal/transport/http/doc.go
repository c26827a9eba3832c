// Package http serves the status endpoints of a running pipeline.
//
// While `optpricer run --metrics-addr` executes, a small chi router exposes:
//
//	GET /health      liveness plus the progress of the latest run
//	GET /health/run  progress of the latest run, 404 before the first one
//	GET /metrics     Prometheus exposition of the pipeline metrics
//
// Errors are rendered as RFC 7807 problem details by internal/errors.
package http
