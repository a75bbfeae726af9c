package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// reading is the state observed during one collection cycle.
type reading struct {
	counters   map[authcore.MetricID]uint64
	cumulative map[authcore.MetricID][8]uint64
	dropped    uint64
}

// binding ties one observable instrument to the value it reports.
type binding struct {
	instrument metric.Int64Observable
	value      func(*reading) int64
}

// OTelExporter publishes provider metrics as observable instruments. Each
// collection cycle reads one snapshot from the source.
type OTelExporter struct {
	source       metricsSource
	histograms   []authcore.MetricID
	bindings     []binding
	registration metric.Registration
}

// NewOTelExporter registers instruments on meter for the given provider.
func NewOTelExporter(meter metric.Meter, provider *authcore.Provider) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, provider)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	if err := e.bindCounters(meter); err != nil {
		return nil, err
	}
	if err := e.bindHistograms(meter); err != nil {
		return nil, err
	}

	observables := make([]metric.Observable, len(e.bindings))
	for i, b := range e.bindings {
		observables[i] = b.instrument
	}
	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *OTelExporter) bindCounters(meter metric.Meter) error {
	for _, def := range internaldefs.CounterDefs {
		id := def.ID
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.bindings = append(e.bindings, binding{
			instrument: ins,
			value:      func(r *reading) int64 { return int64(r.counters[id]) },
		})
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription("Audit events dropped because the buffer was full."))
	if err != nil {
		return fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.bindings = append(e.bindings, binding{
		instrument: dropped,
		value:      func(r *reading) int64 { return int64(r.dropped) },
	})
	return nil
}

// bindHistograms exposes each latency histogram as one cumulative gauge per
// bucket bound plus a total count gauge.
func (e *OTelExporter) bindHistograms(meter metric.Meter) error {
	for _, def := range internaldefs.HistogramDefs {
		id := def.ID
		e.histograms = append(e.histograms, id)

		for i, suffix := range internaldefs.HistogramBoundSuffix {
			bucket := i
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return fmt.Errorf("gauge %s: %w", name, err)
			}
			e.bindings = append(e.bindings, binding{
				instrument: ins,
				value: func(r *reading) int64 {
					c := r.cumulative[id]
					return int64(c[bucket])
				},
			})
		}

		name := def.Name + "_count"
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return fmt.Errorf("gauge %s: %w", name, err)
		}
		e.bindings = append(e.bindings, binding{
			instrument: ins,
			value: func(r *reading) int64 {
				c := r.cumulative[id]
				return int64(c[len(c)-1])
			},
		})
	}
	return nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	r := &reading{
		counters:   snap.Counters,
		cumulative: make(map[authcore.MetricID][8]uint64, len(e.histograms)),
		dropped:    e.source.AuditDropped(),
	}
	for _, id := range e.histograms {
		r.cumulative[id] = internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[id]))
	}
	for _, b := range e.bindings {
		o.ObserveInt64(b.instrument, b.value(r))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
