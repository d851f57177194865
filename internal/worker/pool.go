package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mibrahim/cutout/internal/job"
)

// ErrQueueFull is returned by Dispatch when the task buffer is saturated.
// The orchestrator surfaces this as an overload rejection; no work is
// performed for the rejected task.
var ErrQueueFull = errors.New("worker queue is full")

// Runner executes one task to its terminal state. Run never returns an
// error: every outcome is recorded on the job record.
type Runner interface {
	Run(ctx context.Context, t *job.Task)
}

// PoolConfig holds worker pool configuration.
type PoolConfig struct {
	Logger      *slog.Logger
	Runner      Runner
	Concurrency int
	QueueSize   int
}

// Pool is a bounded group of goroutines draining a task queue. Dispatch is
// non-blocking: once it accepts a task, exactly one runner execution will
// eventually happen (absent process crash).
type Pool struct {
	logger      *slog.Logger
	runner      Runner
	concurrency int

	tasks    chan *job.Task
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewPool creates a pool. Start must be called before Dispatch.
func NewPool(cfg *PoolConfig) *Pool {
	return &Pool{
		logger:      cfg.Logger,
		runner:      cfg.Runner,
		concurrency: cfg.Concurrency,
		tasks:       make(chan *job.Task, cfg.QueueSize),
		stopChan:    make(chan struct{}),
	}
}

// Start spawns the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Spawning worker pool",
		slog.Int("concurrency", p.concurrency),
		slog.Int("queue_size", cap(p.tasks)),
	)

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.workerLoop(ctx, i)
	}
}

// Dispatch queues a task for execution without waiting for it. Implements
// job.Dispatcher.
func (p *Pool) Dispatch(t *job.Task) error {
	select {
	case p.tasks <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop signals the workers and waits for in-flight tasks to finish.
func (p *Pool) Stop() {
	p.logger.Info("Stopping worker pool...")
	close(p.stopChan)
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

// workerLoop is the processing loop for one worker goroutine.
func (p *Pool) workerLoop(ctx context.Context, workerNum int) {
	defer p.wg.Done()

	p.logger.Debug("Worker goroutine started",
		slog.Int("worker_num", workerNum),
	)

	for {
		select {
		case <-p.stopChan:
			p.logger.Debug("Worker goroutine stopping - pool stopped",
				slog.Int("worker_num", workerNum),
			)
			return

		case <-ctx.Done():
			p.logger.Debug("Worker goroutine stopping - context canceled",
				slog.Int("worker_num", workerNum),
			)
			return

		case t := <-p.tasks:
			p.logger.Info("Worker received job",
				slog.Int("worker_num", workerNum),
				slog.String("job_id", t.ID),
			)
			p.runner.Run(ctx, t)
		}
	}
}
