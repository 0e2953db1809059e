// Package async provides a bounded worker pool for background work that must
// not block request handling.
//
// # Overview
//
// Tasks run on a fixed set of workers with panic recovery and a per-task
// timeout. TrySubmit never blocks: when the queue is full the task is dropped
// and counted, which suits best-effort side effects such as audit writes.
//
//	pool := async.NewWorkerPool(ctx, async.PoolConfig{
//		Name:    "audit",
//		Workers: 2,
//		Queue:   1024,
//		Timeout: 5 * time.Second,
//	}, logger)
//	defer pool.Shutdown(10 * time.Second)
//
//	if !pool.TrySubmit(func(ctx context.Context) error {
//		return sink.Log(ctx, event)
//	}) {
//		// queue full or pool closed
//	}
//
// Shutdown stops accepting tasks and waits for queued ones to drain.
package async
