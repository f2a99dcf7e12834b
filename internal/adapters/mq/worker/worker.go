// Package worker runs queued group tasks on a fixed pool of goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/adapters/mq/queue"
	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
	"github.com/widjis/attend-now-report-view-sub001/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2
	poolShutdownTimeout     = 30 * time.Second
)

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Task
}

// TaskQueue is the queue a Pool both feeds and drains.
type TaskQueue interface {
	Queue
	Enqueue(ctx context.Context, t queue.Task) bool
}

// Worker executes tasks until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current task.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker over a Queue.
type InMemoryWorker struct {
	queue Queue
	name  string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			w.execute(ctx, task)
		}
	}
}

// Shutdown stops the worker after its current task.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// execute runs one task and keeps a panic from killing the worker.
func (w *InMemoryWorker) execute(ctx context.Context, task queue.Task) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerTask(time.Since(start))
		if r := recover(); r != nil {
			metrics.RecordWorkerPanic()
			w.logger.Error(ctx, "task panicked", logger.Any("panic", r))
		}
	}()
	task(ctx)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   TaskQueue

	logger logger.Logger
}

// NewPool creates a worker pool. A count below 1 sizes the pool from the CPU count.
func NewPool(workerCount int, q TaskQueue, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("worker-pool")

	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(q,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
		)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Submit queues fn to run with the submitter's context. It returns false
// when the queue cannot take it, in which case the caller runs fn itself.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context)) bool {
	return p.queue.Enqueue(ctx, func(context.Context) { fn(ctx) })
}

// Shutdown closes the queue, stops the workers and runs whatever was left queued.
func (p *Pool) Shutdown(ctx context.Context) error {
	closer, closable := p.queue.(interface{ Close() error })
	if closable {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	if drainer, ok := p.queue.(interface {
		Drain(ctx context.Context) (int, error)
	}); ok && closable {
		n, err := drainer.Drain(ctx)
		if err != nil {
			return fmt.Errorf("drain queue: %w", err)
		}
		if n > 0 {
			p.logger.Info(ctx, "ran leftover tasks", logger.Int("count", n))
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
