// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package spanpipe

import (
	"context"

	"github.com/z5labs/spanpipe/record"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type spanProcessor struct {
	p *Pipeline
}

// SpanProcessor returns an [sdktrace.SpanProcessor] feeding every sampled
// span ended by a tracer provider into p. Shutting down the tracer
// provider shuts p down.
func (p *Pipeline) SpanProcessor() sdktrace.SpanProcessor {
	return spanProcessor{p: p}
}

func (spanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (sp spanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	if !s.SpanContext().IsSampled() {
		return
	}
	sp.p.OnEnd(record.FromReadOnlySpan(s))
}

func (sp spanProcessor) ForceFlush(ctx context.Context) error {
	return sp.p.ForceFlush(ctx)
}

func (sp spanProcessor) Shutdown(ctx context.Context) error {
	return sp.p.Shutdown(ctx)
}
