package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/andrej220/shotgun/pkg/lg"
)

const TotalMaxWorkers = 10

type JobFunc[T any] func(context.Context, T) error

type Job[T any] struct {
	Payload     T
	Fn          JobFunc[T]
	CleanupFunc func()
}

// Pool runs jobs on at most maxWorkers goroutines. A failing job does not
// cancel the others; Wait reports every failure.
type Pool[T any] struct {
	ctx           context.Context
	g             errgroup.Group
	activeWorkers int32
	maxWorkers    int

	mu   sync.Mutex
	errs []error
}

func NewPool[T any](ctx context.Context, maxWorkers int) *Pool[T] {
	if maxWorkers <= 0 {
		maxWorkers = TotalMaxWorkers
	}
	p := &Pool[T]{ctx: ctx, maxWorkers: maxWorkers}
	p.g.SetLimit(maxWorkers)
	return p
}

// Submit blocks until a worker is free. Jobs submitted after the pool
// context is done are rejected with its error.
func (p *Pool[T]) Submit(job Job[T]) {
	logger := lg.FromContext(p.ctx)
	if err := p.ctx.Err(); err != nil {
		logger.Info("worker pool is shutting down, job rejected", lg.Any("job", job.Payload))
		p.record(fmt.Errorf("job rejected: %w", err))
		return
	}
	p.g.Go(func() error {
		p.worker(job)
		return nil
	})
}

func (p *Pool[T]) worker(job Job[T]) {
	atomic.AddInt32(&p.activeWorkers, 1)
	defer atomic.AddInt32(&p.activeWorkers, -1)
	defer func() {
		if job.CleanupFunc != nil {
			job.CleanupFunc()
		}
	}()

	logger := lg.FromContext(p.ctx).With(lg.Any("job", job.Payload))
	logger.Debug("worker started", lg.Int32("workers", atomic.LoadInt32(&p.activeWorkers)))

	if err := job.Fn(p.ctx, job.Payload); err != nil {
		logger.Debug("worker finished with error", lg.Err(err))
		p.record(err)
		return
	}
	logger.Debug("worker finished")
}

func (p *Pool[T]) record(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
}

// Wait blocks until every submitted job returned.
func (p *Pool[T]) Wait() error {
	_ = p.g.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

func (p *Pool[T]) ActiveWorkers() int32 {
	return atomic.LoadInt32(&p.activeWorkers)
}

func (p *Pool[T]) MaxWorkers() int { return p.maxWorkers }
