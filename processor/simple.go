// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package processor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/z5labs/spanpipe/diag"
	"github.com/z5labs/spanpipe/export"
	"github.com/z5labs/spanpipe/internal/try"
	"github.com/z5labs/spanpipe/pkg/slogfield"
	"github.com/z5labs/spanpipe/record"
)

// Simple exports every record synchronously on the goroutine which ended it.
type Simple struct {
	name          string
	log           *slog.Logger
	diag          diag.Reporter
	exp           export.Exporter
	exportTimeout time.Duration

	// mu serializes calls to exp
	mu      sync.Mutex
	stopped atomic.Bool

	shutdownOnce sync.Once
	shutdownDone chan struct{}
	shutdownErr  error

	counters counters
}

// NewSimple returns a [Simple] processor exporting to exp.
func NewSimple(exp export.Exporter, opts ...SimpleOption) (*Simple, error) {
	so := &simpleOptions{
		commonOptions: commonOptions{
			name:          "simple",
			logHandler:    slog.DiscardHandler,
			exportTimeout: DefaultExportTimeout,
		},
	}
	for _, opt := range opts {
		opt.applySimple(so)
	}
	if exp == nil {
		return nil, ConfigError{Field: "Exporter", Reason: "must not be nil"}
	}
	if err := so.validate(); err != nil {
		return nil, err
	}

	return &Simple{
		name:          so.name,
		log:           slog.New(so.logHandler).With(slogfield.Processor(so.name)),
		diag:          so.reporter(),
		exp:           exp,
		exportTimeout: so.exportTimeout,
		shutdownDone:  make(chan struct{}),
	}, nil
}

// OnEnd implements the [Processor] interface. It returns once the export
// of r completed, failed or timed out.
func (s *Simple) OnEnd(r record.Record) {
	ctx := context.Background()
	if s.stopped.Load() {
		s.reject(ctx)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped.Load() {
		s.reject(ctx)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.exportTimeout)
	defer cancel()

	err := try.Call(func() error {
		return s.exp.Export(ctx, []record.Record{r})
	})
	s.counters.observe(ctx, s.diag, s.name, 1, err)
}

func (s *Simple) reject(ctx context.Context) {
	s.counters.rejected.Add(1)
	s.diag.Rejected(ctx, s.name, 1)
}

// ForceFlush implements the [Processor] interface. Nothing is ever
// buffered so it always returns nil immediately.
func (s *Simple) ForceFlush(ctx context.Context) error {
	return nil
}

// Shutdown implements the [Processor] interface. Records ended after
// Shutdown is called are rejected. The exporter is shut down once any
// in-flight export returns.
func (s *Simple) Shutdown(ctx context.Context) error {
	first := false
	s.shutdownOnce.Do(func() {
		first = true
		s.stopped.Store(true)

		shutdownCtx := context.WithoutCancel(ctx)
		go func() {
			defer close(s.shutdownDone)

			s.mu.Lock()
			defer s.mu.Unlock()

			ctx, cancel := context.WithTimeout(shutdownCtx, s.exportTimeout)
			defer cancel()

			s.shutdownErr = try.Call(func() error {
				return s.exp.Shutdown(ctx)
			})
			if s.shutdownErr != nil {
				s.log.ErrorContext(ctx, "failed to shut down exporter", slogfield.Error(s.shutdownErr))
			}
		}()
	})

	select {
	case <-s.shutdownDone:
		return s.shutdownResult(first)
	case <-ctx.Done():
	}
	// the exporter may have shut down while ctx was ending
	select {
	case <-s.shutdownDone:
		return s.shutdownResult(first)
	default:
		return TimeoutError{Op: "shutdown", Cause: ctx.Err()}
	}
}

func (s *Simple) shutdownResult(first bool) error {
	if first {
		return s.shutdownErr
	}
	return nil
}

// Stats returns the processor's counters.
func (s *Simple) Stats() Stats {
	return s.counters.stats(0)
}
