// Package pool wraps panjf2000/ants worker pools with service defaults
// and panic recovery.
package pool

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Config defines the configuration for a worker pool.
type Config struct {
	// Capacity is the maximum number of concurrent workers.
	Capacity int
	// ExpiryDuration is the idle worker expiry time.
	ExpiryDuration time.Duration
	// Nonblocking makes Submit return an error when the pool is full
	// instead of blocking.
	Nonblocking bool
	// MaxBlockingTasks bounds the number of waiting tasks when blocking.
	MaxBlockingTasks int
}

// IngestPoolConfig returns the configuration used for ingestion jobs.
// Ingestion is long-running and IO-bound, so the pool is small and
// submissions are non-blocking: a full pool rejects rather than queues.
func IngestPoolConfig() *Config {
	return &Config{
		Capacity:       8,
		ExpiryDuration: 60 * time.Second,
		Nonblocking:    true,
	}
}

// EmbedPoolConfig returns the configuration used for parallel embedding
// batches inside a single ingestion job.
func EmbedPoolConfig() *Config {
	return &Config{
		Capacity:         16,
		ExpiryDuration:   30 * time.Second,
		Nonblocking:      false,
		MaxBlockingTasks: 256,
	}
}

// Pool is a named ants-backed worker pool.
type Pool struct {
	name      string
	pool      *ants.Pool
	submitted atomic.Int64
	panicked  atomic.Int64
}

// New creates a worker pool from config.
func New(name string, cfg *Config) (*Pool, error) {
	if cfg == nil {
		cfg = IngestPoolConfig()
	}

	p := &Pool{name: name}

	opts := []ants.Option{
		ants.WithExpiryDuration(cfg.ExpiryDuration),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithPanicHandler(func(v interface{}) {
			p.panicked.Add(1)
			logger.Errorw("worker panic recovered", "pool", name, "panic", fmt.Sprintf("%v", v))
		}),
	}
	if cfg.MaxBlockingTasks > 0 {
		opts = append(opts, ants.WithMaxBlockingTasks(cfg.MaxBlockingTasks))
	}

	inner, err := ants.NewPool(cfg.Capacity, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool %s: %w", name, err)
	}
	p.pool = inner
	return p, nil
}

// Submit schedules a task on the pool. Returns ants.ErrPoolOverload when a
// non-blocking pool is saturated.
func (p *Pool) Submit(task func()) error {
	if err := p.pool.Submit(task); err != nil {
		return fmt.Errorf("pool %s: %w", p.name, err)
	}
	p.submitted.Add(1)
	return nil
}

// Running returns the number of currently running workers.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Free returns the number of available worker slots.
func (p *Pool) Free() int {
	return p.pool.Free()
}

// Submitted returns the number of tasks accepted so far.
func (p *Pool) Submitted() int64 {
	return p.submitted.Load()
}

// Release shuts the pool down.
func (p *Pool) Release() {
	p.pool.Release()
}
