package limiter

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter is a bounded-admission gate.
// At most n tasks run at the same time, a permit is released when the task settles
type Limiter struct {
	sem *semaphore.Weighted
	n   int64
}

// New creates a limiter admitting at most n concurrent tasks
func New(n int64) *Limiter {
	if n < 1 {
		panic("limiter: n < 1")
	}
	return &Limiter{sem: semaphore.NewWeighted(n), n: n}
}

// Run waits for a permit, invokes f and releases the permit afterwards.
// Returns ctx error if canceled while waiting
func (l *Limiter) Run(ctx context.Context, f func() error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return f()
}

// Limit returns the configured bound
func (l *Limiter) Limit() int64 {
	return l.n
}
