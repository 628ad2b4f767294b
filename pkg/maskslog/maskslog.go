// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package maskslog provides a [slog.Handler] which masks the values of
// selected attributes before they are written, e.g. exporter headers
// carrying credentials.
package maskslog

import (
	"context"
	"log/slog"
	"maps"
	"slices"
)

// Masked replaces every masked value.
const Masked = "****"

// MaskFunc rewrites an attribute.
type MaskFunc func(slog.Attr) slog.Attr

// Redact replaces the attribute value with [Masked] regardless of its type.
func Redact(a slog.Attr) slog.Attr {
	return slog.String(a.Key, Masked)
}

// RedactValues keeps the keys of a map[string]string value and replaces
// every value with [Masked]. Other value kinds are fully redacted.
func RedactValues(a slog.Attr) slog.Attr {
	m, ok := a.Value.Any().(map[string]string)
	if !ok {
		return Redact(a)
	}

	keys := slices.Sorted(maps.Keys(m))
	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, Masked))
	}
	return slog.Group(a.Key, attrs...)
}

type options struct {
	masks map[string]MaskFunc
}

// Option helps configure the Handler.
type Option interface {
	applyOption(*options)
}

type optionFunc func(*options)

func (f optionFunc) applyOption(o *options) {
	f(o)
}

// Attr registers f for every attribute named key, at any group depth.
func Attr(key string, f MaskFunc) Option {
	return optionFunc(func(o *options) {
		o.masks[key] = f
	})
}

// Handler is an slog.Handler.
type Handler struct {
	slog  slog.Handler
	masks map[string]MaskFunc
}

// NewHandler returns a new Handler.
func NewHandler(h slog.Handler, opts ...Option) *Handler {
	o := &options{
		masks: make(map[string]MaskFunc),
	}
	for _, opt := range opts {
		opt.applyOption(o)
	}
	return &Handler{
		slog:  h,
		masks: o.masks,
	}
}

// Enabled implements the slog.Handler interface.
func (h *Handler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.slog.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if len(h.masks) == 0 {
		return h.slog.Handle(ctx, record)
	}

	nr := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(h.mask(a))
		return true
	})
	return h.slog.Handle(ctx, nr)
}

// WithAttrs implements the slog.Handler interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.mask(a)
	}
	return &Handler{
		slog:  h.slog.WithAttrs(masked),
		masks: h.masks,
	}
}

// WithGroup implements the slog.Handler interface.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		slog:  h.slog.WithGroup(name),
		masks: h.masks,
	}
}

func (h *Handler) mask(a slog.Attr) slog.Attr {
	if f, ok := h.masks[a.Key]; ok {
		return f(a)
	}
	if a.Value.Kind() != slog.KindGroup {
		return a
	}

	group := a.Value.Group()
	attrs := make([]any, len(group))
	for i, ga := range group {
		attrs[i] = h.mask(ga)
	}
	return slog.Group(a.Key, attrs...)
}
