package resilience

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// PoolConfig configures the worker pool.
type PoolConfig struct {
	// Workers is the number of operations that may run at once.
	// Default: 1
	Workers int
}

// Pool bounds the number of concurrently running operations.
type Pool struct {
	config PoolConfig
	sem    *semaphore.Weighted

	mu        sync.Mutex
	active    int
	maxActive int
	waits     int64
}

// NewPool creates a new worker pool.
func NewPool(config PoolConfig) *Pool {
	if config.Workers <= 0 {
		config.Workers = 1
	}

	return &Pool{
		config: config,
		sem:    semaphore.NewWeighted(int64(config.Workers)),
	}
}

// Acquire blocks until a worker slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	if !p.sem.TryAcquire(1) {
		p.mu.Lock()
		p.waits++
		p.mu.Unlock()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	p.mu.Unlock()
	return nil
}

// Release frees a slot taken by Acquire.
func (p *Pool) Release() {
	p.mu.Lock()
	p.active--
	p.mu.Unlock()

	p.sem.Release(1)
}

// Workers returns the configured pool size.
func (p *Pool) Workers() int {
	return p.config.Workers
}

// Metrics returns current pool metrics.
func (p *Pool) Metrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolMetrics{
		Active:    p.active,
		MaxActive: p.maxActive,
		Available: p.config.Workers - p.active,
		Workers:   p.config.Workers,
		Waits:     p.waits,
	}
}

// PoolMetrics contains pool statistics.
type PoolMetrics struct {
	Active    int
	MaxActive int
	Available int
	Workers   int
	// Waits counts acquisitions that found every slot busy.
	Waits int64
}
