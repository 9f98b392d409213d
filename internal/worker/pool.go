// Package worker runs independent jobs on a bounded set of goroutines.
package worker

import (
	"context"
	"sync"

	"github.com/paularlott/logger"

	"github.com/martinsuchenak/ipusage/internal/log"
)

// DefaultWorkers bounds concurrent inventory calls when no limit is given
const DefaultWorkers = 4

// Pool manages concurrent workers
type Pool struct {
	maxWorkers int
	jobs       chan Job
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	log        logger.Logger
}

// Job represents a unit of work
type Job struct {
	ID      string
	Handler func(context.Context) error
	Result  chan error // optional, receives the handler's error
}

// NewPool creates a pool whose jobs run under ctx
func NewPool(ctx context.Context, maxWorkers int, l logger.Logger) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultWorkers
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Pool{
		maxWorkers: maxWorkers,
		jobs:       make(chan Job, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
		log:        log.OrNull(l),
	}
}

// Start starts the workers
func (p *Pool) Start() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Debug("Worker pool started", "workers", p.maxWorkers)
}

// Stop waits for every submitted job to finish
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.cancel()
}

// Cancel cancels the context of running and queued jobs
func (p *Pool) Cancel() {
	p.cancel()
}

// Submit queues a job, blocking while every worker is busy
func (p *Pool) Submit(job Job) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.log.Trace("Worker executing job", "worker_id", id, "job_id", job.ID)

		var err error
		if err = p.ctx.Err(); err == nil {
			err = job.Handler(p.ctx)
		}
		if job.Result != nil {
			job.Result <- err
		}
	}
}
