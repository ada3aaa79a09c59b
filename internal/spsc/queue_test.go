package spsc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePushPopOrder(t *testing.T) {
	t.Parallel()

	q := New[int](4)
	for i := 0; i < 4; i++ {
		require.True(t, q.Push(i))
	}
	for i := 0; i < 4; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v, "FIFO order")
	}
	_, ok := q.Pop()
	assert.False(t, ok, "queue should be empty")
}

func TestQueueFullPushFails(t *testing.T) {
	t.Parallel()

	q := New[string](2)
	require.True(t, q.Push("a"))
	require.True(t, q.Push("b"))
	assert.False(t, q.Push("c"), "push against a full queue must fail, not block")
	assert.Equal(t, 2, q.Len())

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", v, "dropped push must not displace queued elements")
}

func TestQueueCapacityRounding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		requested int
		want      int
	}{
		{0, 2},
		{1, 2},
		{2, 2},
		{3, 4},
		{64, 64},
		{100, 128},
		{256, 256},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, New[int](tc.requested).Cap())
	}
}

func TestQueueWrapAround(t *testing.T) {
	t.Parallel()

	q := New[int](4)
	// Drive the cursors past the buffer length several times.
	next := 0
	for round := 0; round < 10; round++ {
		for i := 0; i < 3; i++ {
			require.True(t, q.Push(next+i))
		}
		for i := 0; i < 3; i++ {
			v, ok := q.Pop()
			require.True(t, ok)
			assert.Equal(t, next+i, v)
		}
		next += 3
	}
}

// TestQueueConcurrent exercises one producer and one consumer concurrently.
// The consumer must observe a strictly increasing sequence with no
// duplicates; gaps are allowed because the producer drops on full.
func TestQueueConcurrent(t *testing.T) {
	t.Parallel()

	const n = 100000
	q := New[int](256)

	var got []int
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			v, ok := q.Pop()
			if !ok {
				select {
				case <-done:
					// Drain whatever the producer managed to queue last.
					for v, ok := q.Pop(); ok; v, ok = q.Pop() {
						got = append(got, v)
					}
					return
				default:
					continue
				}
			}
			got = append(got, v)
		}
	}()

	for i := 0; i < n; i++ {
		q.Push(i) // dropped values are fine
	}
	close(done)
	wg.Wait()

	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("sequence not strictly increasing at %d: %d after %d", i, got[i], got[i-1])
		}
	}
}
