// Package otel binds provider counters and histograms to OpenTelemetry instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per provider counter and
// one Int64ObservableGauge per histogram bucket. A single callback reads
// [authcore.Provider.MetricsSnapshot] on each collection cycle.
//
// [NewLogPipeline] is the self-contained variant used by the server: it owns
// an SDK MeterProvider with a periodic reader that writes every collection
// to a slog logger through [LogExporter].
//
// # What this package must NOT do
//
//   - Mutate provider state.
package otel
