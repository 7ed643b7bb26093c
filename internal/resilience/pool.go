package resilience

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many operations run at once. A nil *Pool or a limit
// below one imposes no bound.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a Pool that admits at most limit concurrent operations.
// A limit below one returns nil (unbounded).
func NewPool(limit int) *Pool {
	if limit < 1 {
		return nil
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit))}
}

// Run waits for a slot, runs fn and releases the slot. It returns ctx.Err()
// if ctx ends while waiting.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if p == nil {
		return fn()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
