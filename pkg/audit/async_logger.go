package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/campusgate/pkg/async"
	"github.com/platinummonkey/campusgate/pkg/observability"
)

// ErrQueueFull is returned when the async sink cannot accept another event
var ErrQueueFull = errors.New("audit queue is full")

// AsyncLogger hands events to a bounded worker pool so slow sinks such as
// the audit table stay off the request path
type AsyncLogger struct {
	next         Logger
	pool         *async.WorkerPool
	drainTimeout time.Duration
}

// AsyncConfig sizes the queue in front of the wrapped sink
type AsyncConfig struct {
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
	DrainTimeout time.Duration
}

// NewAsyncLogger wraps next. Events are written by cfg.Workers goroutines.
func NewAsyncLogger(next Logger, cfg AsyncConfig, logger *observability.Logger) *AsyncLogger {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	return &AsyncLogger{
		next: next,
		pool: async.NewWorkerPool(context.Background(), async.PoolConfig{
			Name:    "audit",
			Workers: cfg.Workers,
			Queue:   cfg.QueueSize,
			Timeout: cfg.WriteTimeout,
		}, logger),
		drainTimeout: cfg.DrainTimeout,
	}
}

// Log queues the event. The request context is not carried over since the
// write outlives the request.
func (a *AsyncLogger) Log(_ context.Context, event *Event) error {
	if !a.pool.TrySubmit(func(ctx context.Context) error {
		return a.next.Log(ctx, event)
	}) {
		return ErrQueueFull
	}
	return nil
}

// Dropped is the number of events rejected because the queue was full
func (a *AsyncLogger) Dropped() int64 {
	return a.pool.Dropped()
}

// Close drains queued events and then closes the wrapped sink
func (a *AsyncLogger) Close() error {
	drainErr := a.pool.Shutdown(a.drainTimeout)
	if err := a.next.Close(); err != nil {
		return errors.Join(drainErr, fmt.Errorf("close audit logger: %w", err))
	}
	return drainErr
}
