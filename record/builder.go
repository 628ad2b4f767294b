// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package record

import (
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
)

// Builder accumulates the mutable state of a span until [Builder.End]
// finalizes it. A Builder is not safe for concurrent use and all setters
// become no-ops after End.
type Builder struct {
	rec   Record
	index map[attribute.Key]int
	ended bool
}

// NewBuilder starts building a record with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		rec:   Record{name: name},
		index: make(map[attribute.Key]int),
	}
}

// SetSpanContext sets the identity of the record.
func (b *Builder) SetSpanContext(sc trace.SpanContext) *Builder {
	if !b.ended {
		b.rec.spanContext = sc
	}
	return b
}

// SetParent sets the identity of the parent span.
func (b *Builder) SetParent(sc trace.SpanContext) *Builder {
	if !b.ended {
		b.rec.parent = sc
	}
	return b
}

// SetKind sets the span kind.
func (b *Builder) SetKind(kind trace.SpanKind) *Builder {
	if !b.ended {
		b.rec.kind = kind
	}
	return b
}

// SetStatus sets the final status.
func (b *Builder) SetStatus(code codes.Code, description string) *Builder {
	if !b.ended {
		b.rec.status = Status{Code: code, Description: description}
	}
	return b
}

// SetResource sets the producing resource.
func (b *Builder) SetResource(res *resource.Resource) *Builder {
	if !b.ended {
		b.rec.resource = res
	}
	return b
}

// SetScope sets the instrumentation scope.
func (b *Builder) SetScope(scope instrumentation.Scope) *Builder {
	if !b.ended {
		b.rec.scope = scope
	}
	return b
}

// SetAttributes records attributes in insertion order. Writing a key which
// was already set replaces its value but keeps its original position.
func (b *Builder) SetAttributes(kvs ...attribute.KeyValue) *Builder {
	if b.ended {
		return b
	}
	for _, kv := range kvs {
		if i, ok := b.index[kv.Key]; ok {
			b.rec.attrs[i] = kv
			continue
		}
		b.index[kv.Key] = len(b.rec.attrs)
		b.rec.attrs = append(b.rec.attrs, kv)
	}
	return b
}

// Start sets the start timestamp.
func (b *Builder) Start(t time.Time) *Builder {
	if !b.ended {
		b.rec.start = t
	}
	return b
}

// End finalizes the builder and returns the immutable [Record].
// Calling End more than once returns the same record.
func (b *Builder) End(t time.Time) Record {
	if !b.ended {
		b.ended = true
		b.rec.end = t
		b.rec.attrs = slices.Clip(b.rec.attrs)
		b.index = nil
	}
	return b.rec
}
