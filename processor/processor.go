// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package processor hands finished records to an [export.Exporter], either
// one at a time on the caller's goroutine ([Simple]) or in batches from a
// background worker ([Batch]).
package processor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/z5labs/spanpipe/diag"
	"github.com/z5labs/spanpipe/export"
	"github.com/z5labs/spanpipe/record"
)

// Processor receives finished records from producers.
//
// OnEnd never returns an error and never blocks on a full buffer. Delivery
// problems are reported to the configured [diag.Reporter] instead.
type Processor interface {
	OnEnd(record.Record)
	ForceFlush(context.Context) error
	Shutdown(context.Context) error
}

// State of a [Batch] processor.
type State int32

const (
	Running State = iota
	Draining
	Stopped
)

// String implements the [fmt.Stringer] interface.
func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Stats is a point in time view of a processor's counters. Every field
// except Queued counts records since construction.
type Stats struct {
	// Queued is the number of records currently buffered.
	Queued   int
	Dropped  uint64
	Rejected uint64
	Exported uint64
	Failed   uint64
	TimedOut uint64
}

// ConfigError is returned when a processor is constructed with invalid options.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the [builtin.error] interface.
func (e ConfigError) Error() string {
	return fmt.Sprintf("invalid processor config: %s %s", e.Field, e.Reason)
}

// TimeoutError is returned by ForceFlush and Shutdown when their context
// ends before the processor finished.
type TimeoutError struct {
	Op    string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e TimeoutError) Error() string {
	return fmt.Sprintf("processor %s did not complete: %s", e.Op, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e TimeoutError) Unwrap() error {
	return e.Cause
}

type counters struct {
	dropped  atomic.Uint64
	rejected atomic.Uint64
	exported atomic.Uint64
	failed   atomic.Uint64
	timedOut atomic.Uint64
}

func (c *counters) stats(queued int) Stats {
	return Stats{
		Queued:   queued,
		Dropped:  c.dropped.Load(),
		Rejected: c.rejected.Load(),
		Exported: c.exported.Load(),
		Failed:   c.failed.Load(),
		TimedOut: c.timedOut.Load(),
	}
}

// observe records the outcome of a single Export call.
func (c *counters) observe(ctx context.Context, r diag.Reporter, name string, n int, err error) {
	switch export.OutcomeOf(err) {
	case export.Success:
		c.exported.Add(uint64(n))
		r.Exported(ctx, name, n)
	case export.Timeout:
		c.timedOut.Add(uint64(n))
		r.ExportTimedOut(ctx, name, n, err)
	default:
		c.failed.Add(uint64(n))
		r.ExportFailed(ctx, name, n, err)
	}
}
