// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package spanpipe delivers finished spans from many concurrent producers
// to a remote collector.
//
// A [Pipeline] owns one or more processors. Each processor hands records to
// an exporter either synchronously ([processor.Simple]) or in batches from
// a background worker ([processor.Batch]):
//
//	exp, err := otlp.NewGrpc(ctx, otlp.GrpcConfig{Target: "localhost:4317"})
//	if err != nil {
//	    return err
//	}
//
//	bp, err := processor.NewBatch(exp, processor.MaxBatchSize(256))
//	if err != nil {
//	    return err
//	}
//
//	p, err := spanpipe.New(spanpipe.WithProcessor(bp))
//	if err != nil {
//	    return err
//	}
//	defer p.Shutdown(context.Background())
//
// The pipeline is explicitly owned. It never installs itself as the global
// tracer provider; [Pipeline.SpanProcessor] plugs it into a tracer provider
// constructed by the caller.
package spanpipe
