package async

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/campusgate/pkg/observability"
)

// ErrPoolClosed is returned when submitting to a pool that has been shut down
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a unit of background work
type Task func(ctx context.Context) error

// PoolConfig sizes a WorkerPool
type PoolConfig struct {
	Name    string
	Workers int
	Queue   int
	// Timeout bounds a single task. Zero means no per-task timeout.
	Timeout time.Duration
}

// WorkerPool runs tasks on a fixed number of goroutines
type WorkerPool struct {
	cfg    PoolConfig
	logger *observability.Logger

	ctx    context.Context
	cancel context.CancelFunc
	tasks  chan Task
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	failed  atomic.Int64
}

// NewWorkerPool starts cfg.Workers workers. Workers and Queue default to 1
// and 64 when unset.
func NewWorkerPool(ctx context.Context, cfg PoolConfig, logger *observability.Logger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 64
	}
	if cfg.Name == "" {
		cfg.Name = "worker-pool"
	}
	if logger == nil {
		logger = observability.NewLogger(observability.ErrorLevel, io.Discard)
	}

	poolCtx, cancel := context.WithCancel(ctx)
	p := &WorkerPool{
		cfg:    cfg,
		logger: logger.WithField("pool", cfg.Name),
		ctx:    poolCtx,
		cancel: cancel,
		tasks:  make(chan Task, cfg.Queue),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Submit queues fn, blocking while the queue is full
func (p *WorkerPool) Submit(fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- fn:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// TrySubmit queues fn without blocking. It reports false when the pool is
// closed or the queue is full.
func (p *WorkerPool) TrySubmit(fn Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return false
	}
	select {
	case p.tasks <- fn:
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

// Dropped is the number of tasks rejected by TrySubmit
func (p *WorkerPool) Dropped() int64 {
	return p.dropped.Load()
}

// Failed is the number of tasks that returned an error or panicked
func (p *WorkerPool) Failed() int64 {
	return p.failed.Load()
}

// Shutdown stops accepting tasks and waits up to timeout for queued tasks to
// finish. Tasks still running after the timeout see their context cancelled.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-time.After(timeout):
		p.cancel()
		<-done
		return fmt.Errorf("%s: shutdown timed out after %s", p.cfg.Name, timeout)
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for fn := range p.tasks {
		p.run(id, fn)
	}
}

func (p *WorkerPool) run(id int, fn Task) {
	ctx := p.ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.logger.WithFields(map[string]interface{}{
				"worker": id,
				"panic":  fmt.Sprint(r),
			}).Error("Background task panicked")
		}
	}()

	if err := fn(ctx); err != nil {
		p.failed.Add(1)
		p.logger.WithError(err).WithField("worker", id).Warn("Background task failed")
	}
}
