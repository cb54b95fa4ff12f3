// Package worker runs per-entity pipeline tasks on a bounded pool.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/prodigyranking/ratingengine/pkg/logger"
	"github.com/prodigyranking/ratingengine/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
)

// Task processes the item at index i.
type Task func(ctx context.Context, i int) error

// Pool bounds how many tasks run at once. A Pool holds no goroutines between
// calls and may be shared by sequential phases.
type Pool struct {
	size   int
	name   string
	active atomic.Int64

	logger logger.Logger
}

// NewPool creates a pool of size workers. A size below one selects a
// CPU-based default.
func NewPool(size int, opts ...Option) *Pool {
	if size < 1 {
		size = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		size:   size,
		name:   "worker-pool",
		logger: logger.Get(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named(p.name)
	return p
}

// Size returns the concurrency limit.
func (p *Pool) Size() int { return p.size }

// Run calls task for every index in [0, n). The first failing task cancels
// the context passed to the rest and its error is returned.
func (p *Pool) Run(ctx context.Context, n int, task Task) error {
	if n <= 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return p.process(gctx, i, task)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// process runs one task and records its latency.
func (p *Pool) process(ctx context.Context, i int, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	metrics.UpdateWorkerActiveCount(int(p.active.Add(1)))
	start := time.Now()
	defer func() {
		metrics.RecordWorkerTaskLatency(float64(time.Since(start).Milliseconds()))
		metrics.UpdateWorkerActiveCount(int(p.active.Add(-1)))
	}()

	if err := task(ctx, i); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "task_error")
		p.logger.Error(ctx, "task failed", logger.Int("index", i), logger.Error(err))
		return fmt.Errorf("task %d: %w", i, err)
	}
	return nil
}

// Map applies fn to every element of in on the pool and returns the results
// in input order.
func Map[T, R any](ctx context.Context, p *Pool, in []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	out := make([]R, len(in))
	err := p.Run(ctx, len(in), func(ctx context.Context, i int) error {
		r, err := fn(ctx, in[i])
		if err != nil {
			return err
		}
		out[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
