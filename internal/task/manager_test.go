package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	var results []int
	m := NewManager(2, func(r int) { results = append(results, r) })

	run := func(v int) func(context.Context) int {
		return func(ctx context.Context) int {
			<-block
			return v
		}
	}

	require.True(t, m.HasIdleWorker())
	require.NoError(t, m.Submit(New(1, "first", run(1), nil)))
	require.True(t, m.HasIdleWorker())
	require.NoError(t, m.Submit(New(2, "second", run(2), nil)))

	// Third unit while two are in flight must be rejected.
	assert.False(t, m.HasIdleWorker())
	err := m.Submit(New(3, "third", run(3), nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoIdleWorker)

	close(block)
	for m.WaitWorker() {
	}
	assert.Len(t, results, 2)
	assert.True(t, m.HasIdleWorker())
}

func TestWaitWorkerDrainsCompletions(t *testing.T) {
	var mu sync.Mutex
	var results []int
	m := NewManager(4, func(r int) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
	})

	for i := 1; i <= 4; i++ {
		v := i
		require.NoError(t, m.Submit(New(v, "unit", func(ctx context.Context) int { return v }, nil)))
	}

	for m.WaitWorker() {
	}

	assert.False(t, m.WaitWorker(), "drained pool reports no running worker")
	assert.ElementsMatch(t, []int{1, 2, 3, 4}, results)
	assert.Equal(t, 0, m.InFlight())
}

func TestCallbackSerialized(t *testing.T) {
	var active int
	var maxActive int
	var mu sync.Mutex
	m := NewManager(8, func(r int) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	})

	for i := 0; i < 8; i++ {
		require.NoError(t, m.Submit(New(i, "unit", func(ctx context.Context) int { return 0 }, nil)))
	}
	for m.WaitWorker() {
	}
	assert.Equal(t, 1, maxActive, "completions must never interleave")
}

func TestPanicMappedToResult(t *testing.T) {
	var results []string
	m := NewManager(1, func(r string) { results = append(results, r) })

	boom := func(ctx context.Context) string { panic("exploded") }
	require.NoError(t, m.Submit(New(1, "boom", boom, func(rec any) string { return "failed" })))

	for m.WaitWorker() {
	}
	require.Len(t, results, 1)
	assert.Equal(t, "failed", results[0])
}

func TestCancellation(t *testing.T) {
	var results []bool
	m := NewManager(2, func(r bool) { results = append(results, r) })

	// The unit observes the token at its natural suspension point and
	// exits early.
	unit := func(ctx context.Context) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(5 * time.Second):
			return true
		}
	}
	require.NoError(t, m.Submit(New(1, "cancellable", unit, nil)))

	assert.False(t, m.Canceled())
	m.Cancel()
	assert.True(t, m.Canceled())

	start := time.Now()
	for m.WaitWorker() {
	}
	assert.Less(t, time.Since(start), 2*time.Second, "cancellation must not deadlock")
	require.Len(t, results, 1)
	assert.False(t, results[0], "canceled unit reports its partial result")
}

func TestWorkerFloorIsOne(t *testing.T) {
	m := NewManager(0, func(int) {})
	assert.True(t, m.HasIdleWorker())
	require.NoError(t, m.Submit(New(1, "only", func(ctx context.Context) int { return 1 }, nil)))
	assert.False(t, m.HasIdleWorker())
	for m.WaitWorker() {
	}
}
