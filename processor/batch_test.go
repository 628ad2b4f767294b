// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/z5labs/spanpipe/export"
	"github.com/z5labs/spanpipe/record"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchSizes(batches [][]record.Record) []int {
	sizes := make([]int, 0, len(batches))
	for _, b := range batches {
		sizes = append(sizes, len(b))
	}
	return sizes
}

func TestNewBatch(t *testing.T) {
	testCases := []struct {
		Name  string
		Opts  []BatchOption
		Field string
	}{
		{
			Name:  "batch size larger than queue",
			Opts:  []BatchOption{MaxQueueSize(10), MaxBatchSize(11)},
			Field: "MaxBatchSize",
		},
		{
			Name:  "zero queue size",
			Opts:  []BatchOption{MaxQueueSize(0)},
			Field: "MaxQueueSize",
		},
		{
			Name:  "negative batch size",
			Opts:  []BatchOption{MaxBatchSize(-1)},
			Field: "MaxBatchSize",
		},
		{
			Name:  "zero scheduled delay",
			Opts:  []BatchOption{ScheduledDelay(0)},
			Field: "ScheduledDelay",
		},
		{
			Name:  "negative export timeout",
			Opts:  []BatchOption{ExportTimeout(-time.Second)},
			Field: "ExportTimeout",
		},
		{
			Name:  "nil clock",
			Opts:  []BatchOption{Clock(nil)},
			Field: "Clock",
		},
	}

	for _, testCase := range testCases {
		t.Run("will return a ConfigError if "+testCase.Name, func(t *testing.T) {
			p, err := NewBatch(export.NewMemory(), testCase.Opts...)
			require.Nil(t, p)

			var cerr ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, testCase.Field, cerr.Field)
		})
	}

	t.Run("will return a ConfigError if the exporter is nil", func(t *testing.T) {
		_, err := NewBatch(nil)

		var cerr ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "Exporter", cerr.Field)
	})
}

func TestBatch_OnEnd(t *testing.T) {
	t.Run("will export full batches immediately and the rest after the delay", func(t *testing.T) {
		mock := clock.NewMock()
		mem := export.NewMemory()
		p, err := NewBatch(
			mem,
			MaxQueueSize(20),
			MaxBatchSize(5),
			ScheduledDelay(time.Second),
			Clock(mock),
		)
		require.Nil(t, err)

		for i := range 12 {
			p.OnEnd(newRecord(i))
		}

		require.Eventually(t, func() bool {
			return len(mem.Batches()) == 2
		}, time.Second, time.Millisecond)
		assert.Equal(t, 2, p.Stats().Queued)

		require.Eventually(t, func() bool {
			mock.Add(time.Second)
			return len(mem.Batches()) == 3
		}, time.Second, time.Millisecond)

		assert.Equal(t, []int{5, 5, 2}, batchSizes(mem.Batches()))
		assert.Equal(t, []string{
			"span-0", "span-1", "span-2", "span-3", "span-4",
			"span-5", "span-6", "span-7", "span-8", "span-9",
			"span-10", "span-11",
		}, names(mem.Records()))

		require.Nil(t, p.Shutdown(context.Background()))
		assert.Len(t, mem.Batches(), 3)
	})

	t.Run("will drop exactly the records which do not fit in the queue", func(t *testing.T) {
		exp := newGatedExporter()
		r := &reporter{}
		p, err := NewBatch(
			exp,
			MaxQueueSize(10),
			MaxBatchSize(1),
			Diagnostics(r),
			Clock(clock.NewMock()),
		)
		require.Nil(t, err)

		// park the worker inside Export so nothing drains the queue
		p.OnEnd(newRecord(0))
		<-exp.entered

		for i := range 15 {
			p.OnEnd(newRecord(i + 1))
		}

		stats := p.Stats()
		assert.Equal(t, uint64(5), stats.Dropped)
		assert.Equal(t, 10, stats.Queued)
		assert.Equal(t, int64(5), r.dropped.Load())

		exp.Open()
		require.Nil(t, p.Shutdown(context.Background()))
		assert.Equal(t, int64(11), exp.records.Load())
		assert.Equal(t, uint64(11), p.Stats().Exported)
	})

	t.Run("will preserve order across batches", func(t *testing.T) {
		mem := export.NewMemory()
		p, err := NewBatch(
			mem,
			MaxQueueSize(100),
			MaxBatchSize(7),
			ScheduledDelay(time.Millisecond),
		)
		require.Nil(t, err)

		var want []string
		for i := range 50 {
			rec := newRecord(i)
			want = append(want, rec.Name())
			p.OnEnd(rec)
		}

		require.Nil(t, p.ForceFlush(context.Background()))
		require.Nil(t, p.Shutdown(context.Background()))
		assert.Equal(t, want, names(mem.Records()))
	})

	t.Run("will never export an empty or oversized batch", func(t *testing.T) {
		mem := export.NewMemory()
		p, err := NewBatch(
			mem,
			MaxQueueSize(1000),
			MaxBatchSize(7),
			ScheduledDelay(time.Millisecond),
		)
		require.Nil(t, err)

		var wg sync.WaitGroup
		for i := range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range 100 {
					p.OnEnd(newRecord(i*100 + j))
					if j%10 == 0 {
						time.Sleep(100 * time.Microsecond)
					}
				}
			}()
		}
		wg.Wait()

		require.Nil(t, p.Shutdown(context.Background()))
		for _, batch := range mem.Batches() {
			assert.NotEmpty(t, batch)
			assert.LessOrEqual(t, len(batch), 7)
		}
		assert.Len(t, mem.Records(), 400)
	})

	t.Run("will report export timeouts", func(t *testing.T) {
		r := &reporter{}
		p, err := NewBatch(
			waitExporter{},
			MaxQueueSize(10),
			MaxBatchSize(1),
			ExportTimeout(10*time.Millisecond),
			Diagnostics(r),
			Clock(clock.NewMock()),
		)
		require.Nil(t, err)

		p.OnEnd(newRecord(0))

		require.Eventually(t, func() bool {
			return p.Stats().TimedOut == 1
		}, time.Second, time.Millisecond)
		assert.Equal(t, int64(1), r.timedOut.Load())
		require.Nil(t, p.Shutdown(context.Background()))
	})

	t.Run("will recover from a panicking exporter", func(t *testing.T) {
		r := &reporter{}
		p, err := NewBatch(
			panicExporter{},
			MaxQueueSize(10),
			MaxBatchSize(2),
			Diagnostics(r),
			Clock(clock.NewMock()),
		)
		require.Nil(t, err)

		p.OnEnd(newRecord(0))
		p.OnEnd(newRecord(1))

		require.Eventually(t, func() bool {
			return p.Stats().Failed == 2
		}, time.Second, time.Millisecond)
		assert.Equal(t, int64(2), r.failed.Load())
		require.Nil(t, p.Shutdown(context.Background()))
	})
}

func TestBatch_ForceFlush(t *testing.T) {
	t.Run("will not call the exporter", func(t *testing.T) {
		t.Run("if nothing is buffered", func(t *testing.T) {
			exp := &countingExporter{}
			p, err := NewBatch(exp, Clock(clock.NewMock()))
			require.Nil(t, err)

			require.Nil(t, p.ForceFlush(context.Background()))
			assert.Equal(t, int64(0), exp.exports.Load())
			assert.Equal(t, int64(0), exp.flushes.Load())

			require.Nil(t, p.Shutdown(context.Background()))
			assert.Equal(t, int64(0), exp.exports.Load())
		})
	})

	t.Run("will export everything buffered before returning", func(t *testing.T) {
		mem := export.NewMemory()
		p, err := NewBatch(mem, MaxBatchSize(2), Clock(clock.NewMock()))
		require.Nil(t, err)

		// stay below the batch size so only the flush exports
		p.OnEnd(newRecord(0))

		require.Nil(t, p.ForceFlush(context.Background()))
		assert.Equal(t, []string{"span-0"}, names(mem.Records()))
		assert.Equal(t, 0, p.Stats().Queued)

		require.Nil(t, p.Shutdown(context.Background()))
	})

	t.Run("will return the export error", func(t *testing.T) {
		unavailable := errors.New("unavailable")
		exp := &countingExporter{err: unavailable}
		p, err := NewBatch(exp, Clock(clock.NewMock()))
		require.Nil(t, err)

		p.OnEnd(newRecord(0))

		err = p.ForceFlush(context.Background())
		assert.ErrorIs(t, err, unavailable)
		assert.Equal(t, int64(1), exp.flushes.Load())

		require.Nil(t, p.Shutdown(context.Background()))
	})

	t.Run("will resolve concurrent callers together", func(t *testing.T) {
		exp := newGatedExporter()
		p, err := NewBatch(exp, MaxQueueSize(10), MaxBatchSize(1), Clock(clock.NewMock()))
		require.Nil(t, err)

		p.OnEnd(newRecord(0))
		<-exp.entered
		p.OnEnd(newRecord(1))
		p.OnEnd(newRecord(2))

		errs := make(chan error, 5)
		for range 5 {
			go func() {
				errs <- p.ForceFlush(context.Background())
			}()
		}

		exp.Open()
		for range 5 {
			assert.Nil(t, <-errs)
		}
		assert.Equal(t, int64(3), exp.records.Load())

		require.Nil(t, p.Shutdown(context.Background()))
	})

	t.Run("will return a TimeoutError", func(t *testing.T) {
		t.Run("if the context ends before the drain completes", func(t *testing.T) {
			exp := newGatedExporter()
			p, err := NewBatch(exp, MaxQueueSize(10), MaxBatchSize(1), Clock(clock.NewMock()))
			require.Nil(t, err)

			p.OnEnd(newRecord(0))
			<-exp.entered

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			err = p.ForceFlush(ctx)

			var terr TimeoutError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, "force flush", terr.Op)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Equal(t, Running, p.State())

			exp.Open()
			require.Nil(t, p.ForceFlush(context.Background()))
			require.Nil(t, p.Shutdown(context.Background()))
		})
	})
}

func TestBatch_Shutdown(t *testing.T) {
	t.Run("will export the remaining records and shut the exporter down", func(t *testing.T) {
		mem := export.NewMemory()
		p, err := NewBatch(mem, MaxBatchSize(2), Clock(clock.NewMock()))
		require.Nil(t, err)

		p.OnEnd(newRecord(0))

		require.Nil(t, p.Shutdown(context.Background()))
		assert.Equal(t, Stopped, p.State())
		assert.Equal(t, []string{"span-0"}, names(mem.Records()))
		assert.True(t, mem.IsShutdown())
	})

	t.Run("will not call Export", func(t *testing.T) {
		t.Run("if nothing is buffered", func(t *testing.T) {
			exp := &countingExporter{}
			p, err := NewBatch(exp, Clock(clock.NewMock()))
			require.Nil(t, err)

			require.Nil(t, p.Shutdown(context.Background()))
			assert.Equal(t, int64(0), exp.exports.Load())
			assert.Equal(t, int64(1), exp.shutdowns.Load())
		})
	})

	t.Run("will drop nothing", func(t *testing.T) {
		t.Run("if the context already ended and nothing is buffered", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			for range 20 {
				exp := &countingExporter{}
				p, err := NewBatch(exp, Clock(clock.NewMock()))
				require.Nil(t, err)

				err = p.Shutdown(ctx)
				if err != nil {
					var terr TimeoutError
					require.ErrorAs(t, err, &terr)
				}
				assert.Equal(t, Stopped, p.State())
				assert.Zero(t, p.Stats().Dropped)

				require.Eventually(t, func() bool {
					return exp.shutdowns.Load() == 1
				}, time.Second, time.Millisecond)
				assert.Zero(t, exp.exports.Load())
			}
		})
	})

	t.Run("will be idempotent", func(t *testing.T) {
		exp := &countingExporter{}
		p, err := NewBatch(exp, Clock(clock.NewMock()))
		require.Nil(t, err)

		require.Nil(t, p.Shutdown(context.Background()))
		require.Nil(t, p.Shutdown(context.Background()))
		require.Nil(t, p.ForceFlush(context.Background()))
		assert.Equal(t, int64(1), exp.shutdowns.Load())
	})

	t.Run("will reject records", func(t *testing.T) {
		t.Run("if it has been called", func(t *testing.T) {
			mem := export.NewMemory()
			r := &reporter{}
			p, err := NewBatch(mem, Diagnostics(r), Clock(clock.NewMock()))
			require.Nil(t, err)

			require.Nil(t, p.Shutdown(context.Background()))
			p.OnEnd(newRecord(0))

			assert.Empty(t, mem.Records())
			assert.Equal(t, uint64(1), p.Stats().Rejected)
			assert.Equal(t, int64(1), r.rejected.Load())
		})

		t.Run("if shutdown is still draining", func(t *testing.T) {
			exp := newGatedExporter()
			r := &reporter{}
			p, err := NewBatch(
				exp,
				MaxQueueSize(10),
				MaxBatchSize(1),
				Diagnostics(r),
				Clock(clock.NewMock()),
			)
			require.Nil(t, err)

			p.OnEnd(newRecord(0))
			<-exp.entered

			shutdownErr := make(chan error, 1)
			go func() {
				shutdownErr <- p.Shutdown(context.Background())
			}()
			require.Eventually(t, func() bool {
				return p.State() == Draining
			}, time.Second, time.Millisecond)

			p.OnEnd(newRecord(1))
			assert.Equal(t, uint64(1), p.Stats().Rejected)
			assert.Equal(t, int64(1), r.rejected.Load())

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()

			var terr TimeoutError
			require.ErrorAs(t, p.ForceFlush(ctx), &terr)
			assert.Equal(t, "force flush", terr.Op)
			assert.Equal(t, Draining, p.State())

			exp.Open()
			require.Nil(t, <-shutdownErr)
			assert.Equal(t, Stopped, p.State())
			assert.Equal(t, int64(1), exp.exports.Load())
			assert.Equal(t, int64(1), exp.records.Load())
			assert.Equal(t, int64(1), exp.shutdown.Load())
		})
	})

	t.Run("will stop within the deadline", func(t *testing.T) {
		t.Run("if the exporter is slower than the deadline", func(t *testing.T) {
			exp := newGatedExporter()
			r := &reporter{}
			p, err := NewBatch(
				exp,
				MaxQueueSize(10),
				MaxBatchSize(1),
				Diagnostics(r),
				Clock(clock.NewMock()),
			)
			require.Nil(t, err)

			p.OnEnd(newRecord(0))
			<-exp.entered
			for i := range 3 {
				p.OnEnd(newRecord(i + 1))
			}

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			start := time.Now()
			err = p.Shutdown(ctx)
			elapsed := time.Since(start)

			var terr TimeoutError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, "shutdown", terr.Op)
			assert.Less(t, elapsed, time.Second)
			assert.Equal(t, Stopped, p.State())

			stats := p.Stats()
			assert.Equal(t, uint64(3), stats.Dropped)
			assert.Equal(t, 0, stats.Queued)

			p.OnEnd(newRecord(4))
			assert.Equal(t, uint64(1), p.Stats().Rejected)
			require.Nil(t, p.Shutdown(context.Background()))

			exp.Open()
			require.Eventually(t, func() bool {
				return exp.shutdown.Load() == 1
			}, time.Second, time.Millisecond)
			assert.Equal(t, int64(1), exp.exports.Load())
		})
	})
}
