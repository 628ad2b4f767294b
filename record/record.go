// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package record defines the finalized unit of telemetry which flows
// through the export pipeline.
//
// A [Record] can only be produced by finalizing a [Builder] or by converting
// an already ended OpenTelemetry span with [FromReadOnlySpan]. Once produced
// it is immutable, so exporters may read it from any goroutine without
// synchronization.
package record

import (
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// Status is the final status of the operation a [Record] describes.
type Status struct {
	Code        codes.Code
	Description string
}

// Record is an immutable, finalized span.
type Record struct {
	name        string
	spanContext trace.SpanContext
	parent      trace.SpanContext
	kind        trace.SpanKind
	start       time.Time
	end         time.Time
	attrs       []attribute.KeyValue
	status      Status
	resource    *resource.Resource
	scope       instrumentation.Scope
}

// Name returns the name of the span.
func (r Record) Name() string { return r.name }

// SpanContext returns the identity of the span.
func (r Record) SpanContext() trace.SpanContext { return r.spanContext }

// Parent returns the identity of the parent span, if any.
func (r Record) Parent() trace.SpanContext { return r.parent }

// Kind returns the span kind.
func (r Record) Kind() trace.SpanKind { return r.kind }

// StartTime returns when the span started.
func (r Record) StartTime() time.Time { return r.start }

// EndTime returns when the span was finalized.
func (r Record) EndTime() time.Time { return r.end }

// Status returns the span status.
func (r Record) Status() Status { return r.status }

// Resource returns the resource the span was produced by. It may be nil.
func (r Record) Resource() *resource.Resource { return r.resource }

// Scope returns the instrumentation scope which produced the span.
func (r Record) Scope() instrumentation.Scope { return r.scope }

// Attributes returns a copy of the attributes in insertion order.
func (r Record) Attributes() []attribute.KeyValue {
	return slices.Clone(r.attrs)
}

// Attribute looks up a single attribute value by key.
func (r Record) Attribute(key attribute.Key) (attribute.Value, bool) {
	for _, kv := range r.attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

// Snapshot returns a read only OpenTelemetry view of the record so it can
// be handed to any [sdktrace.SpanExporter].
func (r Record) Snapshot() sdktrace.ReadOnlySpan {
	stub := tracetest.SpanStub{
		Name:        r.name,
		SpanContext: r.spanContext,
		Parent:      r.parent,
		SpanKind:    r.kind,
		StartTime:   r.start,
		EndTime:     r.end,
		Attributes:  slices.Clone(r.attrs),
		Status: sdktrace.Status{
			Code:        r.status.Code,
			Description: r.status.Description,
		},
		Resource:             r.resource,
		InstrumentationScope: r.scope,
	}
	return stub.Snapshot()
}

// FromReadOnlySpan finalizes an ended OpenTelemetry span into a [Record].
func FromReadOnlySpan(s sdktrace.ReadOnlySpan) Record {
	st := s.Status()
	return Record{
		name:        s.Name(),
		spanContext: s.SpanContext(),
		parent:      s.Parent(),
		kind:        s.SpanKind(),
		start:       s.StartTime(),
		end:         s.EndTime(),
		attrs:       dedupe(s.Attributes()),
		status: Status{
			Code:        st.Code,
			Description: st.Description,
		},
		resource: s.Resource(),
		scope:    s.InstrumentationScope(),
	}
}

// dedupe keeps the first position of every key and the last value written to it.
func dedupe(kvs []attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kvs))
	index := make(map[attribute.Key]int, len(kvs))
	for _, kv := range kvs {
		if i, ok := index[kv.Key]; ok {
			out[i] = kv
			continue
		}
		index[kv.Key] = len(out)
		out = append(out, kv)
	}
	return out
}
