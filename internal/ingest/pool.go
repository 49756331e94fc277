package ingest

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// ErrPoolClosed is returned by Submit after the pool has been shut down.
var ErrPoolClosed = errors.New("ingest: worker pool closed")

// Job is one unit of background work.
type Job func(ctx context.Context)

// Pool runs jobs on a fixed set of workers with a bounded queue.
type Pool struct {
	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	logger *slog.Logger
}

// NewPool starts workers immediately. Close must be called to release them.
func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	p := &Pool{
		jobs:   make(chan Job, queueSize),
		ctx:    ctx,
		cancel: cancel,
		group:  group,
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		group.Go(p.work)
	}
	return p
}

func (p *Pool) work() error {
	for {
		select {
		case <-p.ctx.Done():
			return nil
		case job := <-p.jobs:
			job(p.ctx)
		}
	}
}

// Submit queues a job. It blocks while the queue is full and fails if
// either the caller's context or the pool itself is done.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case <-p.ctx.Done():
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- job:
		return nil
	}
}

// Close stops accepting work and waits for in-flight jobs to finish.
// Queued but unstarted jobs are dropped; jobs are written to be safely
// re-runnable after a restart.
func (p *Pool) Close() error {
	p.cancel()
	return p.group.Wait()
}
