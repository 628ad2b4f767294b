// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package spanpipe_test

import (
	"context"
	"fmt"

	"github.com/z5labs/spanpipe"
	"github.com/z5labs/spanpipe/export"
	"github.com/z5labs/spanpipe/processor"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func Example() {
	mem := export.NewMemory()
	bp, err := processor.NewBatch(mem, processor.MaxBatchSize(5))
	if err != nil {
		fmt.Println(err)
		return
	}

	p, err := spanpipe.New(spanpipe.WithProcessor(bp))
	if err != nil {
		fmt.Println(err)
		return
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(p.SpanProcessor()))
	tracer := tp.Tracer("example")
	for j := range 12 {
		_, span := tracer.Start(context.Background(), fmt.Sprintf("PipelineBenchmarkSpan %d", j))
		span.End()
	}

	err = tp.Shutdown(context.Background())
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(len(mem.Records()))
	// Output: 12
}
