package store

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// WorkerPool bounds how many blocking database calls run concurrently,
// keeping the SIP/RTP goroutines that submit work from ever touching the
// database connection directly. Per SPEC_FULL.md §5, every storage
// operation is offloaded here and the caller awaits completion.
type WorkerPool struct {
	sem *semaphore.Weighted
}

// NewWorkerPool builds a pool with room for n concurrent jobs. n <= 0 is
// treated as 1.
func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = 1
	}
	return &WorkerPool{sem: semaphore.NewWeighted(int64(n))}
}

// Do runs fn on the pool and blocks until it completes, ctx is canceled, or
// a slot never becomes available.
func (w *WorkerPool) Do(ctx context.Context, fn func() error) error {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer w.sem.Release(1)

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
