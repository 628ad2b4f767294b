// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package export defines the contract between span processors and the
// component which ships batches of records to a remote collector.
package export

import (
	"context"
	"errors"

	"github.com/z5labs/spanpipe/record"
)

// Exporter transmits batches of records.
//
// Processors never call Export concurrently on the same Exporter, but
// successive calls may come from different goroutines. Implementations must
// not modify the records they are given and must honor the deadline and
// cancellation of every context they receive.
type Exporter interface {
	// Export ships one ordered, non-empty batch.
	Export(ctx context.Context, batch []record.Record) error

	// ForceFlush completes any buffering internal to the exporter.
	ForceFlush(ctx context.Context) error

	// Shutdown releases exporter resources. It is only called after every
	// in-flight Export has returned and must be safe to call more than once.
	Shutdown(ctx context.Context) error
}

// Outcome classifies the result of an export.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Timeout
)

// String implements the [fmt.Stringer] interface.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// OutcomeOf maps an error returned by an [Exporter] onto an [Outcome].
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	default:
		return Failure
	}
}

// Func adapts a plain function into an [Exporter] whose ForceFlush and
// Shutdown do nothing.
type Func func(context.Context, []record.Record) error

// Export implements the [Exporter] interface.
func (f Func) Export(ctx context.Context, batch []record.Record) error {
	return f(ctx, batch)
}

// ForceFlush implements the [Exporter] interface.
func (Func) ForceFlush(context.Context) error { return nil }

// Shutdown implements the [Exporter] interface.
func (Func) Shutdown(context.Context) error { return nil }

// Noop discards everything it is given.
var Noop Exporter = Func(func(context.Context, []record.Record) error { return nil })
