// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package diag

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "spanpipe"

// Prometheus is a [Reporter] which maintains counters labelled by
// processor name.
type Prometheus struct {
	dropped        *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	exported       *prometheus.CounterVec
	failed         *prometheus.CounterVec
	timedOut       *prometheus.CounterVec
	exportFailures *prometheus.CounterVec
}

// NewPrometheus registers the pipeline counters with reg.
// Like [prometheus.MustRegister] it panics if they are already registered.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	labels := []string{"processor"}

	return &Prometheus{
		dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_dropped_total",
				Help:      "Records dropped because the processor queue was full",
			},
			labels,
		),
		rejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_rejected_total",
				Help:      "Records rejected because the processor was shutting down",
			},
			labels,
		),
		exported: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_exported_total",
				Help:      "Records successfully exported",
			},
			labels,
		),
		failed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_failed_total",
				Help:      "Records in batches whose export failed or timed out",
			},
			labels,
		),
		timedOut: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_timeouts_total",
				Help:      "Export calls which exceeded the export timeout",
			},
			labels,
		),
		exportFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_failures_total",
				Help:      "Export calls which returned an error other than a timeout",
			},
			labels,
		),
	}
}

// Dropped implements the [Reporter] interface.
func (p *Prometheus) Dropped(_ context.Context, processor string, n int) {
	p.dropped.WithLabelValues(processor).Add(float64(n))
}

// Rejected implements the [Reporter] interface.
func (p *Prometheus) Rejected(_ context.Context, processor string, n int) {
	p.rejected.WithLabelValues(processor).Add(float64(n))
}

// Exported implements the [Reporter] interface.
func (p *Prometheus) Exported(_ context.Context, processor string, n int) {
	p.exported.WithLabelValues(processor).Add(float64(n))
}

// ExportFailed implements the [Reporter] interface.
func (p *Prometheus) ExportFailed(_ context.Context, processor string, n int, _ error) {
	p.exportFailures.WithLabelValues(processor).Inc()
	p.failed.WithLabelValues(processor).Add(float64(n))
}

// ExportTimedOut implements the [Reporter] interface.
func (p *Prometheus) ExportTimedOut(_ context.Context, processor string, n int, _ error) {
	p.timedOut.WithLabelValues(processor).Inc()
	p.failed.WithLabelValues(processor).Add(float64(n))
}
