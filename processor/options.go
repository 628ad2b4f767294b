// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package processor

import (
	"log/slog"
	"time"

	"github.com/z5labs/spanpipe/diag"

	"github.com/benbjohnson/clock"
)

const (
	DefaultMaxQueueSize   = 2048
	DefaultMaxBatchSize   = 512
	DefaultScheduledDelay = 5 * time.Second
	DefaultExportTimeout  = 30 * time.Second
)

type commonOptions struct {
	name          string
	logHandler    slog.Handler
	diagnostics   diag.Reporter
	exportTimeout time.Duration
}

func (co commonOptions) reporter() diag.Reporter {
	if co.diagnostics != nil {
		return co.diagnostics
	}
	return diag.NewLog(co.logHandler)
}

type simpleOptions struct {
	commonOptions
}

type batchOptions struct {
	commonOptions

	maxQueueSize   int
	maxBatchSize   int
	scheduledDelay time.Duration
	clock          clock.Clock
}

// SimpleOption configures a [Simple] processor.
type SimpleOption interface {
	applySimple(*simpleOptions)
}

// BatchOption configures a [Batch] processor.
type BatchOption interface {
	applyBatch(*batchOptions)
}

// CommonOption configures either kind of processor.
type CommonOption interface {
	SimpleOption
	BatchOption
}

type commonOptionFunc func(*commonOptions)

func (f commonOptionFunc) applySimple(so *simpleOptions) {
	f(&so.commonOptions)
}

func (f commonOptionFunc) applyBatch(bo *batchOptions) {
	f(&bo.commonOptions)
}

type batchOptionFunc func(*batchOptions)

func (f batchOptionFunc) applyBatch(bo *batchOptions) {
	f(bo)
}

// Name labels the processor in logs and diagnostics.
func Name(name string) CommonOption {
	return commonOptionFunc(func(co *commonOptions) {
		co.name = name
	})
}

// LogHandler sets the handler for the processor's own logs. Unless
// [Diagnostics] is also given, delivery problems are logged here too.
func LogHandler(h slog.Handler) CommonOption {
	return commonOptionFunc(func(co *commonOptions) {
		co.logHandler = h
	})
}

// Diagnostics sets where dropped records and export outcomes are reported.
func Diagnostics(r diag.Reporter) CommonOption {
	return commonOptionFunc(func(co *commonOptions) {
		co.diagnostics = r
	})
}

// ExportTimeout bounds every Export call.
func ExportTimeout(d time.Duration) CommonOption {
	return commonOptionFunc(func(co *commonOptions) {
		co.exportTimeout = d
	})
}

// MaxQueueSize sets how many records can be buffered. Records arriving
// while the queue is full are dropped.
func MaxQueueSize(n int) BatchOption {
	return batchOptionFunc(func(bo *batchOptions) {
		bo.maxQueueSize = n
	})
}

// MaxBatchSize caps the number of records given to a single Export call.
// Reaching it in the queue also triggers an export.
func MaxBatchSize(n int) BatchOption {
	return batchOptionFunc(func(bo *batchOptions) {
		bo.maxBatchSize = n
	})
}

// ScheduledDelay is the longest time records wait before being exported
// when fewer than MaxBatchSize are buffered.
func ScheduledDelay(d time.Duration) BatchOption {
	return batchOptionFunc(func(bo *batchOptions) {
		bo.scheduledDelay = d
	})
}

// Clock replaces the clock driving the scheduled delay.
func Clock(c clock.Clock) BatchOption {
	return batchOptionFunc(func(bo *batchOptions) {
		bo.clock = c
	})
}

func (co commonOptions) validate() error {
	if co.exportTimeout <= 0 {
		return ConfigError{Field: "ExportTimeout", Reason: "must be positive"}
	}
	return nil
}

func (bo batchOptions) validate() error {
	switch {
	case bo.maxQueueSize <= 0:
		return ConfigError{Field: "MaxQueueSize", Reason: "must be positive"}
	case bo.maxBatchSize <= 0:
		return ConfigError{Field: "MaxBatchSize", Reason: "must be positive"}
	case bo.maxBatchSize > bo.maxQueueSize:
		return ConfigError{Field: "MaxBatchSize", Reason: "must not exceed MaxQueueSize"}
	case bo.scheduledDelay <= 0:
		return ConfigError{Field: "ScheduledDelay", Reason: "must be positive"}
	case bo.clock == nil:
		return ConfigError{Field: "Clock", Reason: "must not be nil"}
	}
	return bo.commonOptions.validate()
}
