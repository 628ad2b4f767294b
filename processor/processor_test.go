// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/z5labs/spanpipe/record"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRecord(i int) record.Record {
	return record.NewBuilder(fmt.Sprintf("span-%d", i)).End(time.Time{})
}

func names(recs []record.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Name())
	}
	return out
}

// gatedExporter blocks every Export until release is closed, ignoring
// the export context.
type gatedExporter struct {
	entered  chan struct{}
	release  chan struct{}
	once     sync.Once
	exports  atomic.Int64
	records  atomic.Int64
	shutdown atomic.Int64
}

func newGatedExporter() *gatedExporter {
	return &gatedExporter{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (e *gatedExporter) Export(ctx context.Context, batch []record.Record) error {
	e.exports.Add(1)
	e.records.Add(int64(len(batch)))
	select {
	case e.entered <- struct{}{}:
	default:
	}
	<-e.release
	return nil
}

func (e *gatedExporter) Open() {
	e.once.Do(func() { close(e.release) })
}

func (e *gatedExporter) ForceFlush(context.Context) error { return nil }

func (e *gatedExporter) Shutdown(context.Context) error {
	e.shutdown.Add(1)
	return nil
}

// countingExporter counts calls and returns err from every Export.
type countingExporter struct {
	err        error
	exports    atomic.Int64
	flushes    atomic.Int64
	shutdowns  atomic.Int64
	inFlight   atomic.Int64
	overlapped atomic.Bool
}

func (e *countingExporter) Export(ctx context.Context, batch []record.Record) error {
	if e.inFlight.Add(1) > 1 {
		e.overlapped.Store(true)
	}
	defer e.inFlight.Add(-1)

	e.exports.Add(1)
	time.Sleep(time.Millisecond)
	return e.err
}

func (e *countingExporter) ForceFlush(context.Context) error {
	e.flushes.Add(1)
	return nil
}

func (e *countingExporter) Shutdown(context.Context) error {
	e.shutdowns.Add(1)
	return nil
}

type panicExporter struct{}

func (panicExporter) Export(context.Context, []record.Record) error { panic("boom") }
func (panicExporter) ForceFlush(context.Context) error            { return nil }
func (panicExporter) Shutdown(context.Context) error              { return nil }

// waitExporter honors the export context and never succeeds.
type waitExporter struct{}

func (waitExporter) Export(ctx context.Context, _ []record.Record) error {
	<-ctx.Done()
	return ctx.Err()
}
func (waitExporter) ForceFlush(context.Context) error { return nil }
func (waitExporter) Shutdown(context.Context) error   { return nil }

// reporter tallies diagnostics events.
type reporter struct {
	dropped, rejected, exported, failed, timedOut atomic.Int64
}

func (r *reporter) Dropped(_ context.Context, _ string, n int)  { r.dropped.Add(int64(n)) }
func (r *reporter) Rejected(_ context.Context, _ string, n int) { r.rejected.Add(int64(n)) }
func (r *reporter) Exported(_ context.Context, _ string, n int) { r.exported.Add(int64(n)) }
func (r *reporter) ExportFailed(_ context.Context, _ string, n int, _ error) {
	r.failed.Add(int64(n))
}
func (r *reporter) ExportTimedOut(_ context.Context, _ string, n int, _ error) {
	r.timedOut.Add(int64(n))
}

func TestLogHandler(t *testing.T) {
	t.Run("will keep the given handler as is", func(t *testing.T) {
		h := slog.NewTextHandler(io.Discard, nil)

		t.Run("if applied to a simple processor", func(t *testing.T) {
			so := &simpleOptions{}
			LogHandler(h).applySimple(so)
			assert.Same(t, h, so.logHandler)
		})

		t.Run("if applied to a batch processor", func(t *testing.T) {
			bo := &batchOptions{}
			LogHandler(h).applyBatch(bo)
			assert.Same(t, h, bo.logHandler)
		})
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "draining", Draining.String())
	assert.Equal(t, "stopped", Stopped.String())
	assert.Equal(t, "State(7)", State(7).String())
}

func TestTimeoutError(t *testing.T) {
	err := error(TimeoutError{Op: "shutdown", Cause: context.DeadlineExceeded})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "processor shutdown did not complete: context deadline exceeded", err.Error())

	var terr TimeoutError
	assert.True(t, errors.As(err, &terr))
	assert.Equal(t, "shutdown", terr.Op)
}
