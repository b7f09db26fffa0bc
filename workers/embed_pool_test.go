package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedPool_RunsEveryTaskAndWaits(t *testing.T) {
	pool := NewEmbedPool(4, 3)
	defer pool.Stop()

	results := make([]int, 50)
	tasks := make([]func(ctx context.Context), len(results))
	for i := range tasks {
		tasks[i] = func(context.Context) {
			time.Sleep(time.Millisecond)
			results[i] = i * i
		}
	}

	require.NoError(t, pool.Run(context.Background(), tasks))
	for i, v := range results {
		assert.Equal(t, i*i, v)
	}
}

func TestEmbedPool_BoundsConcurrency(t *testing.T) {
	pool := NewEmbedPool(16, 2)
	defer pool.Stop()

	var running, peak atomic.Int32
	tasks := make([]func(ctx context.Context), 20)
	for i := range tasks {
		tasks[i] = func(context.Context) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
		}
	}

	require.NoError(t, pool.Run(context.Background(), tasks))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestEmbedPool_ConcurrentBatches(t *testing.T) {
	pool := NewEmbedPool(2, 2)
	defer pool.Stop()

	var total atomic.Int64
	var wg sync.WaitGroup
	for b := 0; b < 5; b++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tasks := make([]func(ctx context.Context), 10)
			for i := range tasks {
				tasks[i] = func(context.Context) { total.Add(1) }
			}
			assert.NoError(t, pool.Run(context.Background(), tasks))
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 50, total.Load())
}

func TestEmbedPool_CancelledContext(t *testing.T) {
	pool := NewEmbedPool(1, 1)
	defer pool.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var ran atomic.Int32
	tasks := make([]func(ctx context.Context), 10)
	for i := range tasks {
		tasks[i] = func(context.Context) {
			if ran.Add(1) == 1 {
				cancel()
			}
		}
	}

	err := pool.Run(ctx, tasks)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, ran.Load(), int32(10))
}

func TestEmbedPool_RunAfterStop(t *testing.T) {
	pool := NewEmbedPool(1, 1)
	pool.Stop()
	pool.Stop()

	err := pool.Run(context.Background(), []func(ctx context.Context){func(context.Context) {}})
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestEmbedPool_RecoversFromPanics(t *testing.T) {
	pool := NewEmbedPool(2, 1)
	defer pool.Stop()

	var ok atomic.Bool
	err := pool.Run(context.Background(), []func(ctx context.Context){
		func(context.Context) { panic("bad model") },
		func(context.Context) { ok.Store(true) },
	})
	require.NoError(t, err)
	assert.True(t, ok.Load())
}
