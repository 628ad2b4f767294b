// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/z5labs/spanpipe/diag"
	"github.com/z5labs/spanpipe/export"
	"github.com/z5labs/spanpipe/export/otlp"
	"github.com/z5labs/spanpipe/health"
	"github.com/z5labs/spanpipe/processor"
)

// UnknownKindError is returned when a processor or exporter kind is not supported.
type UnknownKindError struct {
	Component string
	Kind      string
}

// Error implements the [builtin.error] interface.
func (e UnknownKindError) Error() string {
	return fmt.Sprintf("unknown %s kind: %q", e.Component, e.Kind)
}

func buildExporter(ctx context.Context, cfg ExporterConfig, h slog.Handler, out io.Writer) (export.Exporter, []health.Metric, error) {
	var (
		exp export.Exporter
		err error
	)
	switch cfg.Kind {
	case "otlp-grpc":
		exp, err = otlp.NewGrpc(ctx, cfg.Grpc)
	case "otlp-http":
		httpCfg := cfg.Http
		httpCfg.LogHandler = h
		exp, err = otlp.NewHttp(ctx, httpCfg)
	case "stdout":
		exp, err = otlp.NewStdout(out, cfg.Pretty)
	case "memory":
		exp = export.NewMemory()
	case "noop":
		exp = export.Noop
	default:
		return nil, nil, UnknownKindError{Component: "exporter", Kind: cfg.Kind}
	}
	if err != nil {
		return nil, nil, err
	}

	if cfg.Retry.Enabled {
		exp = export.WithRetry(
			exp,
			export.MaxAttempts(cfg.Retry.MaxAttempts),
			export.InitialInterval(cfg.Retry.InitialInterval),
			export.MaxInterval(cfg.Retry.MaxInterval),
			export.MaxElapsedTime(cfg.Retry.MaxElapsedTime),
			export.RetryLogHandler(h),
		)
	}

	var metrics []health.Metric
	if cfg.Breaker.Enabled {
		b := export.WithCircuitBreaker(
			exp,
			export.BreakerName(cfg.Kind),
			export.TripAfter(cfg.Breaker.TripAfter),
			export.OpenStateTimeout(cfg.Breaker.OpenTimeout),
			export.BreakerLogHandler(h),
		)
		exp = b
		metrics = append(metrics, b)
	}
	return exp, metrics, nil
}

type statsProcessor interface {
	processor.Processor

	Stats() processor.Stats
}

func buildProcessor(exp export.Exporter, cfg ProcessorConfig, h slog.Handler, r diag.Reporter) (statsProcessor, error) {
	switch cfg.Kind {
	case "simple":
		return processor.NewSimple(
			exp,
			processor.Name(cfg.Kind),
			processor.LogHandler(h),
			processor.Diagnostics(r),
			processor.ExportTimeout(cfg.ExportTimeout),
		)
	case "batch":
		return processor.NewBatch(
			exp,
			processor.Name(cfg.Kind),
			processor.LogHandler(h),
			processor.Diagnostics(r),
			processor.ExportTimeout(cfg.ExportTimeout),
			processor.MaxQueueSize(cfg.MaxQueueSize),
			processor.MaxBatchSize(cfg.MaxBatchSize),
			processor.ScheduledDelay(cfg.ScheduledDelay),
		)
	default:
		return nil, UnknownKindError{Component: "processor", Kind: cfg.Kind}
	}
}
