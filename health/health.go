// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health reports whether parts of the pipeline are able to
// deliver records.
package health

import (
	"context"
	"sync/atomic"
)

// Metric represents anything that can report its health status.
type Metric interface {
	Healthy(context.Context) bool
}

// MetricFunc is a func variant of the [Metric] interface.
type MetricFunc func(context.Context) bool

// Healthy implements the [Metric] interface.
func (f MetricFunc) Healthy(ctx context.Context) bool {
	return f(ctx)
}

// Flag is a [Metric] which is explicitly marked unhealthy.
// The zero value is healthy.
type Flag struct {
	unhealthy atomic.Bool
}

// MarkUnhealthy makes every subsequent Healthy call return false.
func (f *Flag) MarkUnhealthy() {
	f.unhealthy.Store(true)
}

// MarkHealthy reverts [Flag.MarkUnhealthy].
func (f *Flag) MarkHealthy() {
	f.unhealthy.Store(false)
}

// Healthy implements the [Metric] interface.
func (f *Flag) Healthy(ctx context.Context) bool {
	return !f.unhealthy.Load()
}

// AndMetric represents multiple Metrics all and'd together.
type AndMetric []Metric

// And returns a Metric which is only healthy while every one of
// metrics is healthy. An empty AndMetric is healthy.
func And(metrics ...Metric) AndMetric {
	return AndMetric(metrics)
}

// Healthy implements the [Metric] interface.
func (m AndMetric) Healthy(ctx context.Context) bool {
	for _, metric := range m {
		if !metric.Healthy(ctx) {
			return false
		}
	}
	return true
}
