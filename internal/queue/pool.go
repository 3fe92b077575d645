package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/eliseohh/anydownbot/internal/logger"
)

var (
	ErrQueueFull = errors.New("queue: full")
	ErrStopped   = errors.New("queue: stopped")
)

// Job is one unit of work. The context is cancelled when the pool stops.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

type Stats struct {
	Queued    int64 `json:"queued"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Pool is a fixed set of workers draining a bounded channel. Submit never
// blocks, so a chat handler can refuse work instead of stalling the poller.
type Pool struct {
	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool

	queued    atomic.Int64
	running   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

func New(ctx context.Context, workers, capacity int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if capacity < 0 {
		capacity = 0
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		jobs:   make(chan Job, capacity),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.worker(id)
		}(i)
	}
	return p
}

func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- job:
		p.queued.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new jobs and waits for queued and running ones. If ctx
// expires first, the pool context is cancelled, the remaining queued jobs
// run against it, and ctx's error is returned once every job has returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) Stats() Stats {
	return Stats{
		Queued:    p.queued.Load(),
		Running:   p.running.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

func (p *Pool) worker(id int) {
	log := logger.FromContext(p.ctx).With("worker", id)
	for job := range p.jobs {
		p.queued.Add(-1)

		// Jobs left over after a deadline stop still run, with a cancelled
		// context, so each one can report its own outcome.
		p.running.Add(1)
		err := p.runJob(job)
		p.running.Add(-1)

		if err != nil {
			p.failed.Add(1)
			log.Warn("queue.job_failed", "job", job.Name, "err", err)
			continue
		}
		p.completed.Add(1)
		log.Debug("queue.job_done", "job", job.Name)
	}
}

func (p *Pool) runJob(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("queue: job panicked")
			logger.FromContext(p.ctx).Error("queue.job_panic", "job", job.Name, "panic", r)
		}
	}()
	return job.Run(p.ctx)
}
