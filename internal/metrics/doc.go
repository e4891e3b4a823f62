// Package metrics provides per-segment latency tracking and Prometheus
// instrumentation for the interpreter client.
package metrics
