package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsTasks(t *testing.T) {
	pool := NewWorkerPool(context.Background(), PoolConfig{Name: "test", Workers: 3, Queue: 10}, nil)

	var count atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(func(ctx context.Context) error {
			count.Add(1)
			return nil
		}))
	}

	require.NoError(t, pool.Shutdown(time.Second))
	assert.Equal(t, int32(20), count.Load())
	assert.Zero(t, pool.Failed())
}

func TestWorkerPool_CountsFailuresAndPanics(t *testing.T) {
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 1}, nil)

	require.NoError(t, pool.Submit(func(context.Context) error { return errors.New("boom") }))
	require.NoError(t, pool.Submit(func(context.Context) error { panic("oops") }))
	var after atomic.Bool
	require.NoError(t, pool.Submit(func(context.Context) error {
		after.Store(true)
		return nil
	}))

	require.NoError(t, pool.Shutdown(time.Second))
	assert.Equal(t, int64(2), pool.Failed())
	assert.True(t, after.Load(), "a panic must not kill the worker")
}

func TestWorkerPool_TrySubmitDropsWhenFull(t *testing.T) {
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 1, Queue: 1}, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, pool.TrySubmit(func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	assert.True(t, pool.TrySubmit(func(context.Context) error { return nil }), "one slot in the queue")
	assert.False(t, pool.TrySubmit(func(context.Context) error { return nil }))
	assert.Equal(t, int64(1), pool.Dropped())

	close(release)
	require.NoError(t, pool.Shutdown(time.Second))
}

func TestWorkerPool_TaskTimeout(t *testing.T) {
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 1, Timeout: 20 * time.Millisecond}, nil)

	var deadlineHit atomic.Bool
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		<-ctx.Done()
		deadlineHit.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	}))

	require.NoError(t, pool.Shutdown(time.Second))
	assert.True(t, deadlineHit.Load())
	assert.Equal(t, int64(1), pool.Failed())
}

func TestWorkerPool_ClosedRejects(t *testing.T) {
	pool := NewWorkerPool(context.Background(), PoolConfig{}, nil)
	require.NoError(t, pool.Shutdown(time.Second))
	require.NoError(t, pool.Shutdown(time.Second), "second shutdown is a no-op")

	assert.ErrorIs(t, pool.Submit(func(context.Context) error { return nil }), ErrPoolClosed)
	assert.False(t, pool.TrySubmit(func(context.Context) error { return nil }))
}

func TestWorkerPool_ShutdownTimeout(t *testing.T) {
	pool := NewWorkerPool(context.Background(), PoolConfig{Workers: 1}, nil)
	require.NoError(t, pool.Submit(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}))

	err := pool.Shutdown(20 * time.Millisecond)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown timed out")
}
