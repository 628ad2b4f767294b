// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_Push(t *testing.T) {
	t.Run("will return ErrFull", func(t *testing.T) {
		t.Run("if the buffer is at capacity", func(t *testing.T) {
			b := New[int](10)

			var full int
			for i := range 15 {
				_, err := b.Push(i)
				if err != nil {
					require.ErrorIs(t, err, ErrFull)
					full++
				}
			}

			require.Equal(t, 5, full)
			require.Equal(t, 10, b.Len())
			require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, b.PopN(nil, 10))
		})
	})

	t.Run("will return ErrClosed", func(t *testing.T) {
		t.Run("if the buffer has been closed", func(t *testing.T) {
			b := New[int](2)
			_, err := b.Push(1)
			require.NoError(t, err)

			b.Close()

			_, err = b.Push(2)
			require.ErrorIs(t, err, ErrClosed)
			require.Equal(t, []int{1}, b.PopN(nil, 2))
		})
	})

	t.Run("will report the new length", func(t *testing.T) {
		b := New[string](3)

		n, err := b.Push("a")
		require.NoError(t, err)
		require.Equal(t, 1, n)

		n, err = b.Push("b")
		require.NoError(t, err)
		require.Equal(t, 2, n)
	})
}

func TestBuffer_PopN(t *testing.T) {
	t.Run("will preserve fifo order across wrap around", func(t *testing.T) {
		b := New[int](4)
		for i := range 4 {
			_, err := b.Push(i)
			require.NoError(t, err)
		}

		require.Equal(t, []int{0, 1, 2}, b.PopN(nil, 3))

		for i := 4; i < 7; i++ {
			_, err := b.Push(i)
			require.NoError(t, err)
		}

		require.Equal(t, []int{3, 4}, b.PopN(nil, 2))
		require.Equal(t, []int{5, 6}, b.PopN(nil, 10))
		require.Empty(t, b.PopN(nil, 1))
	})

	t.Run("will append to the given slice", func(t *testing.T) {
		b := New[int](2)
		_, err := b.Push(7)
		require.NoError(t, err)

		dst := make([]int, 0, 4)
		dst = append(dst, 1)

		require.Equal(t, []int{1, 7}, b.PopN(dst, 1))
	})
}

func TestBuffer_Discard(t *testing.T) {
	b := New[int](3)
	for i := range 3 {
		_, err := b.Push(i)
		require.NoError(t, err)
	}

	require.Equal(t, 3, b.Discard())
	require.Equal(t, 0, b.Len())
	require.Equal(t, 0, b.Discard())
}

func TestBuffer_Concurrency(t *testing.T) {
	const producers = 8
	const perProducer = 1000

	b := New[int](producers * perProducer)

	var wg sync.WaitGroup
	wg.Add(producers)
	for range producers {
		go func() {
			defer wg.Done()
			for i := range perProducer {
				_, err := b.Push(i)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	popped := b.PopN(nil, producers*perProducer)
	require.Len(t, popped, producers*perProducer)
	require.Equal(t, producers*perProducer, b.Cap())
}
