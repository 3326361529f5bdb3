package task

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultFetchConcurrency is the default permit pool capacity.
const DefaultFetchConcurrency = 5

// PermitPool is a bounded counting permit pool shared process-wide across all
// running tasks. It protects the external data source from overload by
// capping simultaneous outbound fetches, regardless of how many tasks or
// branches are in flight. Waiters are served in FIFO order.
type PermitPool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPermitPool creates a pool with the given capacity. A non-positive size
// falls back to DefaultFetchConcurrency.
func NewPermitPool(size int) *PermitPool {
	if size <= 0 {
		size = DefaultFetchConcurrency
	}
	return &PermitPool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Acquire blocks until a permit is available or ctx is done. A caller whose
// context is cancelled while waiting stops waiting promptly and receives the
// context's error.
func (p *PermitPool) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

// Release returns a permit to the pool. It must be called exactly once per
// successful Acquire.
func (p *PermitPool) Release() {
	p.sem.Release(1)
}

// Size returns the pool capacity.
func (p *PermitPool) Size() int {
	return p.size
}
