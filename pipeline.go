// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package spanpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/z5labs/spanpipe/health"
	"github.com/z5labs/spanpipe/internal/fixedpool"
	"github.com/z5labs/spanpipe/lifecycle"
	"github.com/z5labs/spanpipe/pkg/slogfield"
	"github.com/z5labs/spanpipe/processor"
	"github.com/z5labs/spanpipe/record"
)

// ErrNoProcessors is returned by [New] when no processor was given.
var ErrNoProcessors = errors.New("spanpipe: at least one processor is required")

// ProcessorError wraps the error a single processor returned from
// ForceFlush or Shutdown.
type ProcessorError struct {
	Op    string
	Index int
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ProcessorError) Error() string {
	return fmt.Sprintf("processor %d failed to %s: %s", e.Index, e.Op, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ProcessorError) Unwrap() error {
	return e.Cause
}

type options struct {
	logHandler slog.Handler
	processors []processor.Processor
	metrics    []health.Metric
}

// Option configures a [Pipeline].
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

// WithProcessor adds a processor. Every record is handed to every
// processor in the order they were added.
func WithProcessor(p processor.Processor) Option {
	return optionFunc(func(o *options) {
		o.processors = append(o.processors, p)
	})
}

// WithHealthMetric makes the pipeline report unhealthy while m does,
// e.g. while an exporter's circuit breaker is open.
func WithHealthMetric(m health.Metric) Option {
	return optionFunc(func(o *options) {
		o.metrics = append(o.metrics, m)
	})
}

// LogHandler sets the handler used for the pipeline's own logs.
func LogHandler(h slog.Handler) Option {
	return optionFunc(func(o *options) {
		o.logHandler = h
	})
}

// Pipeline coordinates flushing and shutting down a set of processors.
type Pipeline struct {
	log        *slog.Logger
	processors []processor.Processor
	health     health.AndMetric

	shuttingDown health.Flag
	stopped      atomic.Bool
}

// New returns a [Pipeline] owning the given processors.
func New(opts ...Option) (*Pipeline, error) {
	o := &options{
		logHandler: slog.DiscardHandler,
	}
	for _, opt := range opts {
		opt.apply(o)
	}
	if len(o.processors) == 0 {
		return nil, ErrNoProcessors
	}

	p := &Pipeline{
		log:        slog.New(o.logHandler),
		processors: o.processors,
	}
	p.health = health.And(append([]health.Metric{&p.shuttingDown}, o.metrics...)...)
	return p, nil
}

// OnEnd hands r to every processor.
func (p *Pipeline) OnEnd(r record.Record) {
	for _, proc := range p.processors {
		proc.OnEnd(r)
	}
}

// ForceFlush flushes every processor concurrently and waits until all
// of them returned. It returns nil once the pipeline has been shut down.
func (p *Pipeline) ForceFlush(ctx context.Context) error {
	if p.stopped.Load() {
		return nil
	}
	return p.each(ctx, "force flush", processor.Processor.ForceFlush)
}

// Shutdown shuts every processor down concurrently. Processors which do
// not finish before ctx ends report a [processor.TimeoutError]. Once a
// Shutdown call has succeeded later calls return nil.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if p.stopped.Load() {
		return nil
	}
	p.shuttingDown.MarkUnhealthy()

	err := p.each(ctx, "shutdown", processor.Processor.Shutdown)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to shut down span pipeline", slogfield.Error(err))
		return err
	}
	p.stopped.Store(true)
	return nil
}

func (p *Pipeline) each(ctx context.Context, op string, f func(processor.Processor, context.Context) error) error {
	tasks := make([]fixedpool.Task, len(p.processors))
	for i, proc := range p.processors {
		tasks[i] = func(ctx context.Context) error {
			err := f(proc, ctx)
			if err == nil {
				return nil
			}
			return ProcessorError{Op: op, Index: i, Cause: err}
		}
	}
	return fixedpool.Run(ctx, tasks...)
}

// Healthy implements the [health.Metric] interface. A pipeline is
// unhealthy once shutdown started or while any metric registered with
// [WithHealthMetric] is unhealthy.
func (p *Pipeline) Healthy(ctx context.Context) bool {
	return p.health.Healthy(ctx)
}

// OnPostRun registers Shutdown to run after the program's main work returns.
func (p *Pipeline) OnPostRun(lc *lifecycle.Context) {
	lc.OnPostRun(lifecycle.HookFunc(p.Shutdown))
}
