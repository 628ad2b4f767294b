// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/z5labs/spanpipe/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithCircuitBreaker(t *testing.T) {
	t.Run("will pass exports through", func(t *testing.T) {
		t.Run("if the breaker is closed", func(t *testing.T) {
			m := NewMemory()
			exp := WithCircuitBreaker(m)

			require.Nil(t, exp.Export(context.Background(), records("a")))
			assert.Len(t, m.Records(), 1)
			assert.True(t, exp.Healthy(context.Background()))
		})
	})

	t.Run("will fail fast with ErrCircuitOpen", func(t *testing.T) {
		t.Run("if the exporter failed consecutively", func(t *testing.T) {
			unavailable := errors.New("unavailable")
			calls := 0
			exp := WithCircuitBreaker(
				Func(func(ctx context.Context, batch []record.Record) error {
					calls++
					return unavailable
				}),
				TripAfter(2),
				OpenStateTimeout(time.Hour),
			)

			for range 2 {
				err := exp.Export(context.Background(), records("a"))
				require.ErrorIs(t, err, unavailable)
			}
			assert.False(t, exp.Healthy(context.Background()))

			err := exp.Export(context.Background(), records("a"))
			assert.ErrorIs(t, err, ErrCircuitOpen)
			assert.Equal(t, 2, calls)
		})
	})

	t.Run("will close again", func(t *testing.T) {
		t.Run("if the half-open trial export succeeds", func(t *testing.T) {
			fail := true
			exp := WithCircuitBreaker(
				Func(func(ctx context.Context, batch []record.Record) error {
					if fail {
						return errors.New("unavailable")
					}
					return nil
				}),
				TripAfter(1),
				OpenStateTimeout(10*time.Millisecond),
			)

			require.Error(t, exp.Export(context.Background(), records("a")))
			require.False(t, exp.Healthy(context.Background()))

			fail = false
			require.Eventually(t, func() bool {
				return exp.Export(context.Background(), records("a")) == nil
			}, time.Second, 5*time.Millisecond)
			assert.True(t, exp.Healthy(context.Background()))
		})
	})

	t.Run("will delegate flush and shutdown", func(t *testing.T) {
		m := NewMemory()
		exp := WithCircuitBreaker(m, BreakerName("collector"))

		require.Nil(t, exp.ForceFlush(context.Background()))
		require.Nil(t, exp.Shutdown(context.Background()))
		assert.True(t, m.IsShutdown())
	})
}
