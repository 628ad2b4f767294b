// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package diag reports what happens to records inside a processor:
// records dropped on a full queue, records rejected after shutdown and
// the outcome of every export.
package diag

import (
	"context"
)

// Reporter receives pipeline diagnostics. Every method is called with the
// name of the processor which observed the event and the number of
// records affected. Implementations must be safe for concurrent use and
// must not block.
type Reporter interface {
	Dropped(ctx context.Context, processor string, n int)
	Rejected(ctx context.Context, processor string, n int)
	Exported(ctx context.Context, processor string, n int)
	ExportFailed(ctx context.Context, processor string, n int, err error)
	ExportTimedOut(ctx context.Context, processor string, n int, err error)
}

type noop struct{}

func (noop) Dropped(context.Context, string, int)               {}
func (noop) Rejected(context.Context, string, int)              {}
func (noop) Exported(context.Context, string, int)              {}
func (noop) ExportFailed(context.Context, string, int, error)   {}
func (noop) ExportTimedOut(context.Context, string, int, error) {}

// Noop ignores every event.
var Noop Reporter = noop{}

type multi []Reporter

// Multi fans every event out to each of the given reporters in order.
func Multi(rs ...Reporter) Reporter {
	flat := make(multi, 0, len(rs))
	for _, r := range rs {
		if r == nil {
			continue
		}
		if m, ok := r.(multi); ok {
			flat = append(flat, m...)
			continue
		}
		flat = append(flat, r)
	}
	return flat
}

func (m multi) Dropped(ctx context.Context, processor string, n int) {
	for _, r := range m {
		r.Dropped(ctx, processor, n)
	}
}

func (m multi) Rejected(ctx context.Context, processor string, n int) {
	for _, r := range m {
		r.Rejected(ctx, processor, n)
	}
}

func (m multi) Exported(ctx context.Context, processor string, n int) {
	for _, r := range m {
		r.Exported(ctx, processor, n)
	}
}

func (m multi) ExportFailed(ctx context.Context, processor string, n int, err error) {
	for _, r := range m {
		r.ExportFailed(ctx, processor, n, err)
	}
}

func (m multi) ExportTimedOut(ctx context.Context, processor string, n int, err error) {
	for _, r := range m {
		r.ExportTimedOut(ctx, processor, n, err)
	}
}
