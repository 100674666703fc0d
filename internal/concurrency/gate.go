// Package concurrency provides the per-provider Concurrency Gate:
// a bounded, FIFO-fair admission control for outbound LLM calls.
package concurrency

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Gate bounds the number of in-flight calls to a single downstream
// provider and enforces a minimum delay between successive retries
// against that provider.
type Gate struct {
	sem          *semaphore.Weighted
	minRetryWait time.Duration

	mu          sync.Mutex
	lastRetryAt time.Time
}

// NewGate creates a Gate admitting at most maxInFlight concurrent
// callers, with minRetryWait enforced between retries via Wait.
func NewGate(maxInFlight int, minRetryWait time.Duration) *Gate {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Gate{
		sem:          semaphore.NewWeighted(int64(maxInFlight)),
		minRetryWait: minRetryWait,
	}
}

// Acquire blocks, in FIFO order, until a slot is available or ctx is
// done. The returned release function must be called exactly once.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { g.sem.Release(1) }, nil
}

// TryAcquire attempts to acquire a slot without blocking.
func (g *Gate) TryAcquire() (release func(), ok bool) {
	if !g.sem.TryAcquire(1) {
		return nil, false
	}
	return func() { g.sem.Release(1) }, true
}

// WaitRetryBudget blocks until at least minRetryWait has elapsed since
// the previous call to WaitRetryBudget returned, enforcing the
// provider's minimum inter-retry spacing across all callers sharing
// this Gate. It returns early if ctx is canceled.
func (g *Gate) WaitRetryBudget(ctx context.Context) error {
	g.mu.Lock()
	wait := time.Until(g.lastRetryAt.Add(g.minRetryWait))
	if wait < 0 {
		wait = 0
	}
	g.lastRetryAt = time.Now().Add(wait)
	g.mu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Registry holds one Gate per provider name, created lazily.
type Registry struct {
	mu     sync.Mutex
	gates  map[string]*Gate
	config func(provider string) (maxInFlight int, minRetryWait time.Duration)
}

// NewRegistry creates a Registry that lazily constructs a Gate for each
// provider the first time it is requested, using config to determine
// that provider's limits.
func NewRegistry(config func(provider string) (int, time.Duration)) *Registry {
	return &Registry{
		gates:  make(map[string]*Gate),
		config: config,
	}
}

// Gate returns the Gate for the given provider, creating it on first use.
func (r *Registry) Gate(provider string) *Gate {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gates[provider]; ok {
		return g
	}
	maxInFlight, minRetryWait := r.config(provider)
	g := NewGate(maxInFlight, minRetryWait)
	r.gates[provider] = g
	return g
}
