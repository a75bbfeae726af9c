// Package prometheus exposes provider metrics through prometheus/client_golang.
//
// [NewCollector] wraps an [authcore.Provider] in a prometheus.Collector that
// converts each snapshot into const counters (authcore_*_total) and const
// histograms (authcore_*_latency_seconds). [Collector.Handler] serves it from a
// private registry; [Collector.Register] adds it to a caller-owned one.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate provider state.
package prometheus
