// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package diag

import (
	"context"
	"log/slog"

	"github.com/z5labs/spanpipe/pkg/slogfield"
)

// Log is a [Reporter] which writes every event as a structured log record.
// Successful exports are logged at debug level, drops and rejections at
// warn and failed exports at error.
type Log struct {
	log *slog.Logger
}

// NewLog returns a [Log] reporter writing to h.
func NewLog(h slog.Handler) *Log {
	return &Log{log: slog.New(h)}
}

// Dropped implements the [Reporter] interface.
func (l *Log) Dropped(ctx context.Context, processor string, n int) {
	l.log.WarnContext(
		ctx,
		"queue is full, dropped records",
		slogfield.Processor(processor),
		slogfield.Int("dropped", n),
	)
}

// Rejected implements the [Reporter] interface.
func (l *Log) Rejected(ctx context.Context, processor string, n int) {
	l.log.WarnContext(
		ctx,
		"processor is shut down, rejected records",
		slogfield.Processor(processor),
		slogfield.Int("rejected", n),
	)
}

// Exported implements the [Reporter] interface.
func (l *Log) Exported(ctx context.Context, processor string, n int) {
	l.log.DebugContext(
		ctx,
		"exported batch",
		slogfield.Processor(processor),
		slogfield.BatchSize(n),
	)
}

// ExportFailed implements the [Reporter] interface.
func (l *Log) ExportFailed(ctx context.Context, processor string, n int, err error) {
	l.log.ErrorContext(
		ctx,
		"failed to export batch",
		slogfield.Processor(processor),
		slogfield.BatchSize(n),
		slogfield.Error(err),
	)
}

// ExportTimedOut implements the [Reporter] interface.
func (l *Log) ExportTimedOut(ctx context.Context, processor string, n int, err error) {
	l.log.ErrorContext(
		ctx,
		"timed out exporting batch",
		slogfield.Processor(processor),
		slogfield.BatchSize(n),
		slogfield.Error(err),
	)
}
