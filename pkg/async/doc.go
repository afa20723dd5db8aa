// Package async provides a bounded worker pool for background tasks.
//
// # Overview
//
// WorkerPool handles goroutine lifecycle management with panic recovery, per-task
// timeouts, context cancellation and graceful draining on shutdown.
//
//	pool := async.NewWorkerPool(ctx, 4, 100, "email delivery", 30*time.Second, logger)
//	defer pool.Shutdown(10 * time.Second)
//
//	if err := pool.TrySubmit(task); errors.Is(err, async.ErrQueueFull) {
//		// drop and count
//	}
//
// Submit blocks while the queue is full; TrySubmit never blocks.
// Task errors and panics are logged, never propagated.
//
// # Related Packages
//
//   - pkg/mail: Uses WorkerPool for email delivery
package async
