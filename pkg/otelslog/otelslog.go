// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelslog provides a OpenTelemetry aware slog.Handler implementation.
package otelslog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/z5labs/spanpipe/pkg/slogfield"

	"go.opentelemetry.io/otel/trace"
)

// Handler is an slog.Handler which correlates logs with traces by adding
// the trace and span ids of the span carried by the logging context.
type Handler struct {
	slog slog.Handler
}

// NewHandler wraps h.
func NewHandler(h slog.Handler) *Handler {
	return &Handler{slog: h}
}

// Enabled implements the slog.Handler interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.slog.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return h.slog.Handle(ctx, record)
	}

	r := record.Clone()
	r.AddAttrs(
		slog.Group(
			"otel",
			slogfield.String("trace_id", spanCtx.TraceID().String()),
			slogfield.String("span_id", spanCtx.SpanID().String()),
			slogfield.Bool("sampled", spanCtx.IsSampled()),
		),
	)
	return h.slog.Handle(ctx, r)
}

// WithAttrs implements the slog.Handler interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewHandler(h.slog.WithAttrs(attrs))
}

// WithGroup implements the slog.Handler interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return NewHandler(h.slog.WithGroup(name))
}

// UnknownFormatError is returned by [NewHandlerFor] for unsupported formats.
type UnknownFormatError struct {
	Format string
}

// Error implements the [builtin.error] interface.
func (e UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown log format: %s", e.Format)
}

// NewHandlerFor builds a trace correlating [Handler] writing to w in the
// given format ("json" or "text") at or above the given level.
func NewHandlerFor(w io.Writer, format string, level slog.Level) (*Handler, error) {
	opts := &slog.HandlerOptions{
		Level: level,
	}
	switch strings.ToLower(format) {
	case "", "json":
		return NewHandler(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return NewHandler(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, UnknownFormatError{Format: format}
	}
}

// NewLogger is a convenience wrapper around [NewHandlerFor].
func NewLogger(w io.Writer, format string, level slog.Level) (*slog.Logger, error) {
	h, err := NewHandlerFor(w, format, level)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}
