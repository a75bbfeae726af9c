package otel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const meterName = "github.com/MrEthical07/authcore"

// LogExporter is an sdkmetric.Exporter that writes each collection as one
// structured log record. Zero-valued instruments are omitted.
type LogExporter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogExporter returns an exporter logging at info level.
func NewLogExporter(logger *slog.Logger) *LogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExporter{logger: logger, level: slog.LevelInfo}
}

func (e *LogExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (e *LogExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (e *LogExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	var attrs []slog.Attr
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if v, ok := int64Value(m.Data); ok && v != 0 {
				attrs = append(attrs, slog.Int64(m.Name, v))
			}
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	e.logger.LogAttrs(ctx, e.level, "metrics", attrs...)
	return nil
}

func (e *LogExporter) ForceFlush(context.Context) error { return nil }

func (e *LogExporter) Shutdown(context.Context) error { return nil }

func int64Value(data metricdata.Aggregation) (int64, bool) {
	switch d := data.(type) {
	case metricdata.Sum[int64]:
		if len(d.DataPoints) > 0 {
			return d.DataPoints[0].Value, true
		}
	case metricdata.Gauge[int64]:
		if len(d.DataPoints) > 0 {
			return d.DataPoints[0].Value, true
		}
	}
	return 0, false
}

// Pipeline owns a MeterProvider whose periodic reader pushes provider
// metrics through a LogExporter.
type Pipeline struct {
	meters   *sdkmetric.MeterProvider
	exporter *OTelExporter
}

// NewLogPipeline starts collecting source every interval.
func NewLogPipeline(source metricsSource, logger *slog.Logger, interval time.Duration) (*Pipeline, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("otel log interval must be positive, got %s", interval)
	}
	reader := sdkmetric.NewPeriodicReader(NewLogExporter(logger), sdkmetric.WithInterval(interval))
	meters := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	exp, err := NewOTelExporterFromSource(meters.Meter(meterName), source)
	if err != nil {
		_ = meters.Shutdown(context.Background())
		return nil, err
	}
	return &Pipeline{meters: meters, exporter: exp}, nil
}

// Flush collects and exports immediately.
func (p *Pipeline) Flush(ctx context.Context) error {
	return p.meters.ForceFlush(ctx)
}

// Shutdown exports a final collection and stops the reader.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	flushErr := p.meters.ForceFlush(ctx)
	return errors.Join(flushErr, p.exporter.Close(), p.meters.Shutdown(ctx))
}
