// Package bio runs background jobs on a fixed set of worker goroutines.
//
// Submission never blocks: jobs are queued in an unbounded FIFO and picked
// up by the first idle worker. A job runs exactly once; there is no way to
// cancel it or to wait for it.
package bio

import (
	"container/list"
	"sync"

	"go.uber.org/zap"
)

// Job is a unit of background work. It owns everything it captures.
type Job func()

type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	jobs    *list.List
	closed  bool
	workers sync.WaitGroup
	logger  *zap.Logger
}

// NewPool starts count workers.
func NewPool(count int, logger *zap.Logger) *Pool {
	if count <= 0 {
		count = 1
	}
	p := &Pool{
		jobs:   list.New(),
		logger: logger,
	}
	p.cond = sync.NewCond(&p.mu)
	p.workers.Add(count)
	for i := 0; i < count; i++ {
		go p.work()
	}
	logger.Debug("started background workers", zap.Int("worker_count", count))
	return p
}

// Submit queues job. Once the pool is closed, job runs on the caller
// goroutine instead.
func (p *Pool) Submit(job Job) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		job()
		return
	}
	p.jobs.PushBack(job)
	p.mu.Unlock()
	p.cond.Signal()
}

// Pending returns the number of queued jobs no worker has picked up yet.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobs.Len()
}

// Close stops accepting jobs, lets the workers drain the queue and returns
// once they have exited.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	remaining := p.jobs.Len()
	p.mu.Unlock()
	p.cond.Broadcast()
	p.workers.Wait()
	p.logger.Debug("stopped background workers", zap.Int("drained_job_count", remaining))
}

func (p *Pool) next() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.jobs.Len() == 0 {
		if p.closed {
			return nil, false
		}
		p.cond.Wait()
	}
	return p.jobs.Remove(p.jobs.Front()).(Job), true
}

func (p *Pool) work() {
	defer p.workers.Done()
	for {
		job, ok := p.next()
		if !ok {
			return
		}
		job()
	}
}
