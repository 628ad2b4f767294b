// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package processor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/z5labs/spanpipe/diag"
	"github.com/z5labs/spanpipe/export"
	"github.com/z5labs/spanpipe/internal/ring"
	"github.com/z5labs/spanpipe/internal/try"
	"github.com/z5labs/spanpipe/pkg/slogfield"
	"github.com/z5labs/spanpipe/record"

	"github.com/benbjohnson/clock"
)

// Batch buffers records in a bounded queue and exports them from a single
// background goroutine. An export happens when MaxBatchSize records are
// queued, when ScheduledDelay has passed since the worker last woke up,
// or when ForceFlush or Shutdown ask for it.
//
// Records are exported in the order they were accepted. Every Export call
// receives between 1 and MaxBatchSize records and is bounded by
// ExportTimeout. Failed exports are reported, never retried.
type Batch struct {
	name           string
	log            *slog.Logger
	diag           diag.Reporter
	exp            export.Exporter
	clock          clock.Clock
	maxBatchSize   int
	scheduledDelay time.Duration
	exportTimeout  time.Duration

	queue *ring.Buffer[record.Record]
	state atomic.Int32

	full        chan struct{}
	flushSignal chan struct{}
	stop        chan struct{}
	done        chan struct{}

	// exporting is set while the worker holds records outside the queue
	exporting atomic.Bool
	// abandoned is set once a Shutdown caller gave up waiting
	abandoned atomic.Bool

	flushMu sync.Mutex
	pending *pendingFlush

	shutdownOnce sync.Once
	shutdownErr  error

	counters counters
}

type pendingFlush struct {
	done chan struct{}
	err  error
}

// NewBatch validates the options and starts the worker goroutine. The
// worker runs until Shutdown is called.
func NewBatch(exp export.Exporter, opts ...BatchOption) (*Batch, error) {
	bo := &batchOptions{
		commonOptions: commonOptions{
			name:          "batch",
			logHandler:    slog.DiscardHandler,
			exportTimeout: DefaultExportTimeout,
		},
		maxQueueSize:   DefaultMaxQueueSize,
		maxBatchSize:   DefaultMaxBatchSize,
		scheduledDelay: DefaultScheduledDelay,
		clock:          clock.New(),
	}
	for _, opt := range opts {
		opt.applyBatch(bo)
	}
	if exp == nil {
		return nil, ConfigError{Field: "Exporter", Reason: "must not be nil"}
	}
	if err := bo.validate(); err != nil {
		return nil, err
	}

	b := &Batch{
		name:           bo.name,
		log:            slog.New(bo.logHandler).With(slogfield.Processor(bo.name)),
		diag:           bo.reporter(),
		exp:            exp,
		clock:          bo.clock,
		maxBatchSize:   bo.maxBatchSize,
		scheduledDelay: bo.scheduledDelay,
		exportTimeout:  bo.exportTimeout,
		queue:          ring.New[record.Record](bo.maxQueueSize),
		full:           make(chan struct{}, 1),
		flushSignal:    make(chan struct{}, 1),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	b.log.Debug(
		"starting batch processor",
		slogfield.Int("max_queue_size", bo.maxQueueSize),
		slogfield.Int("max_batch_size", bo.maxBatchSize),
		slogfield.Duration("scheduled_delay", bo.scheduledDelay),
		slogfield.Duration("export_timeout", bo.exportTimeout),
	)

	go b.run()
	return b, nil
}

// State returns the current lifecycle state.
func (b *Batch) State() State {
	return State(b.state.Load())
}

// Stats returns the processor's counters.
func (b *Batch) Stats() Stats {
	return b.counters.stats(b.queue.Len())
}

// OnEnd implements the [Processor] interface. It never blocks: when the
// queue is full r is dropped, and once Shutdown has been called r is rejected.
func (b *Batch) OnEnd(r record.Record) {
	ctx := context.Background()
	if b.State() != Running {
		b.reject(ctx)
		return
	}

	n, err := b.queue.Push(r)
	switch {
	case errors.Is(err, ring.ErrClosed):
		b.reject(ctx)
	case errors.Is(err, ring.ErrFull):
		b.counters.dropped.Add(1)
		b.diag.Dropped(ctx, b.name, 1)
	case n >= b.maxBatchSize:
		notify(b.full)
	}
}

func (b *Batch) reject(ctx context.Context) {
	b.counters.rejected.Add(1)
	b.diag.Rejected(ctx, b.name, 1)
}

func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// ForceFlush implements the [Processor] interface. It blocks until every
// record queued when it was called has been exported and the exporter
// itself was flushed, or until ctx ends. Concurrent callers share the same
// drain. Export errors encountered while draining are returned joined.
//
// A [TimeoutError] only releases the caller, the drain keeps going.
func (b *Batch) ForceFlush(ctx context.Context) error {
	switch b.State() {
	case Stopped:
		return nil
	case Draining:
		select {
		case <-b.done:
			return nil
		case <-ctx.Done():
			return TimeoutError{Op: "force flush", Cause: ctx.Err()}
		}
	}

	if b.queue.Len() == 0 && !b.exporting.Load() {
		return nil
	}

	b.flushMu.Lock()
	pf := b.pending
	if pf == nil {
		pf = &pendingFlush{done: make(chan struct{})}
		b.pending = pf
	}
	b.flushMu.Unlock()

	notify(b.flushSignal)

	select {
	case <-pf.done:
		return pf.err
	case <-b.done:
		return nil
	case <-ctx.Done():
		return TimeoutError{Op: "force flush", Cause: ctx.Err()}
	}
}

// Shutdown implements the [Processor] interface. New records are rejected
// from the moment it is called. It waits for the queue to be exported and
// the exporter to be shut down. If ctx ends first, whatever is still queued
// is discarded and counted as dropped and a [TimeoutError] is returned.
// An export already in flight is not interrupted; once it returns the
// worker shuts the exporter down without exporting anything else.
//
// Calling Shutdown after the processor stopped returns nil.
func (b *Batch) Shutdown(ctx context.Context) error {
	if b.State() == Stopped {
		return nil
	}

	first := false
	b.shutdownOnce.Do(func() {
		first = true
		b.state.CompareAndSwap(int32(Running), int32(Draining))
		b.queue.Close()
		close(b.stop)
	})

	select {
	case <-b.done:
		return b.shutdownResult(first)
	case <-ctx.Done():
	}
	// the worker may have finished while ctx was ending
	select {
	case <-b.done:
		return b.shutdownResult(first)
	default:
	}

	b.abandoned.Store(true)
	b.state.Store(int32(Stopped))
	if n := b.queue.Discard(); n > 0 {
		b.counters.dropped.Add(uint64(n))
		b.diag.Dropped(ctx, b.name, n)
	}
	b.log.WarnContext(ctx, "shutdown did not complete in time", slogfield.Error(ctx.Err()))
	return TimeoutError{Op: "shutdown", Cause: ctx.Err()}
}

func (b *Batch) shutdownResult(first bool) error {
	if first {
		return b.shutdownErr
	}
	return nil
}

func (b *Batch) run() {
	defer close(b.done)

	timer := b.clock.Timer(b.scheduledDelay)
	defer timer.Stop()

	for {
		select {
		case <-b.full:
			for b.queue.Len() >= b.maxBatchSize && !b.abandoned.Load() {
				b.exportBatch(b.maxBatchSize)
			}
		case <-timer.C:
			b.drain(b.queue.Len())
		case <-b.flushSignal:
			b.flush()
		case <-b.stop:
			b.shutdown()
			return
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(b.scheduledDelay)
	}
}

// drain exports up to n records in batches of at most maxBatchSize.
func (b *Batch) drain(n int) error {
	var errs []error
	for n > 0 && !b.abandoned.Load() {
		exported, err := b.exportBatch(min(n, b.maxBatchSize))
		if exported == 0 {
			break
		}
		if err != nil {
			errs = append(errs, err)
		}
		n -= exported
	}
	return errors.Join(errs...)
}

func (b *Batch) exportBatch(n int) (int, error) {
	b.exporting.Store(true)
	defer b.exporting.Store(false)

	batch := b.queue.PopN(make([]record.Record, 0, n), n)
	if len(batch) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.exportTimeout)
	defer cancel()

	err := try.Call(func() error {
		return b.exp.Export(ctx, batch)
	})
	b.counters.observe(ctx, b.diag, b.name, len(batch), err)
	return len(batch), err
}

func (b *Batch) flush() {
	b.flushMu.Lock()
	pf := b.pending
	b.pending = nil
	b.flushMu.Unlock()
	if pf == nil {
		return
	}

	err := b.drain(b.queue.Len())

	ctx, cancel := context.WithTimeout(context.Background(), b.exportTimeout)
	defer cancel()

	ferr := try.Call(func() error {
		return b.exp.ForceFlush(ctx)
	})
	pf.err = errors.Join(err, ferr)
	close(pf.done)
}

func (b *Batch) shutdown() {
	if err := b.drain(b.queue.Len()); err != nil {
		b.log.Warn("failed to export remaining records", slogfield.Error(err))
	}

	b.flushMu.Lock()
	pf := b.pending
	b.pending = nil
	b.flushMu.Unlock()
	if pf != nil {
		close(pf.done)
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.exportTimeout)
	defer cancel()

	b.shutdownErr = try.Call(func() error {
		return b.exp.Shutdown(ctx)
	})
	if b.shutdownErr != nil {
		b.log.ErrorContext(ctx, "failed to shut down exporter", slogfield.Error(b.shutdownErr))
	}
	b.state.Store(int32(Stopped))
}
