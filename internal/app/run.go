// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/z5labs/spanpipe"
	"github.com/z5labs/spanpipe/diag"
	"github.com/z5labs/spanpipe/lifecycle"
	"github.com/z5labs/spanpipe/pkg/maskslog"
	"github.com/z5labs/spanpipe/pkg/otelslog"
	"github.com/z5labs/spanpipe/pkg/slogfield"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Result summarizes a single emit run.
type Result struct {
	Emitted  int
	Queued   int
	Exported uint64
	Dropped  uint64
	Rejected uint64
	Failed   uint64
	TimedOut uint64
}

// String renders the result as space separated key=value pairs.
func (r Result) String() string {
	return fmt.Sprintf(
		"emitted=%d exported=%d dropped=%d rejected=%d failed=%d timed_out=%d queued=%d",
		r.Emitted,
		r.Exported,
		r.Dropped,
		r.Rejected,
		r.Failed,
		r.TimedOut,
		r.Queued,
	)
}

// Run builds a pipeline from cfg, pushes the configured workload through
// an OpenTelemetry tracer backed by it and shuts everything down.
// Spans written by the stdout exporter go to out and logs go to logOut.
func Run(ctx context.Context, cfg Config, out, logOut io.Writer) (res Result, err error) {
	lvl, err := cfg.Log.level()
	if err != nil {
		return res, err
	}
	oh, err := otelslog.NewHandlerFor(logOut, cfg.Log.Format, lvl)
	if err != nil {
		return res, err
	}
	h := maskslog.NewHandler(oh, maskslog.Attr("headers", maskslog.RedactValues))
	log := slog.New(h)

	lc := &lifecycle.Context{}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()

		perr := lc.PostRun().Run(sctx)
		if perr != nil {
			log.ErrorContext(sctx, "failed to shut down cleanly", slogfield.Error(perr))
		}
		err = errors.Join(err, perr)
	}()

	reporter := diag.Reporter(diag.NewLog(h))
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reporter = diag.Multi(reporter, diag.NewPrometheus(reg))

		srv, err := serveMetrics(ctx, cfg.MetricsAddr, reg, log)
		if err != nil {
			return res, err
		}
		lc.OnPostRun(lifecycle.HookFunc(srv.Shutdown))
	}

	log.InfoContext(
		ctx,
		"starting span pipeline",
		slogfield.Processor(cfg.Processor.Kind),
		slog.Group(
			"exporter",
			slogfield.String("kind", cfg.Exporter.Kind),
			slog.Any("headers", cfg.Exporter.headers()),
		),
	)

	exp, metrics, err := buildExporter(ctx, cfg.Exporter, h, out)
	if err != nil {
		return res, err
	}
	proc, err := buildProcessor(exp, cfg.Processor, h, reporter)
	if err != nil {
		return res, errors.Join(err, exp.Shutdown(ctx))
	}

	opts := []spanpipe.Option{
		spanpipe.LogHandler(h),
		spanpipe.WithProcessor(proc),
	}
	for _, m := range metrics {
		opts = append(opts, spanpipe.WithHealthMetric(m))
	}
	p, err := spanpipe.New(opts...)
	if err != nil {
		return res, err
	}
	p.OnPostRun(lc)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))),
		sdktrace.WithSpanProcessor(p.SpanProcessor()),
	)
	lc.OnPostRun(lifecycle.HookFunc(tp.Shutdown))

	res.Emitted, err = emit(ctx, tp.Tracer("github.com/z5labs/spanpipe"), cfg.Workload)
	if err != nil {
		return res, err
	}

	fctx, cancel := context.WithTimeout(ctx, cfg.Workload.FlushTimeout)
	defer cancel()
	ferr := p.ForceFlush(fctx)
	if ferr != nil {
		log.WarnContext(ctx, "force flush did not complete", slogfield.Error(ferr))
	}

	stats := proc.Stats()
	res.Queued = stats.Queued
	res.Exported = stats.Exported
	res.Dropped = stats.Dropped
	res.Rejected = stats.Rejected
	res.Failed = stats.Failed
	res.TimedOut = stats.TimedOut
	return res, nil
}

func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer, log *slog.Logger) (*http.Server, error) {
	ls, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Handler: promhttp.HandlerFor(g, promhttp.HandlerOpts{}),
	}
	go func() {
		err := srv.Serve(ls)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorContext(ctx, "metrics server stopped", slogfield.Error(err))
		}
	}()
	return srv, nil
}

func emit(ctx context.Context, tracer trace.Tracer, cfg WorkloadConfig) (int, error) {
	attrs := make([]attribute.KeyValue, cfg.Attributes)
	for i := range attrs {
		attrs[i] = attribute.String(
			fmt.Sprintf("benchmarkAttribute_%d", i),
			fmt.Sprintf("benchmarkAttrValue_%d", i),
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	for range cfg.Producers {
		g.Go(func() error {
			for j := range cfg.Spans {
				if err := gctx.Err(); err != nil {
					return err
				}
				_, span := tracer.Start(gctx, fmt.Sprintf("PipelineBenchmarkSpan %d", j))
				span.SetAttributes(attrs...)
				span.End()
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		return 0, err
	}
	return cfg.Producers * cfg.Spans, nil
}
