package imagecount

import (
	"errors"
	"sync"
)

// ErrPoolStopped is returned by Submit after Stop.
var ErrPoolStopped = errors.New("refresh pool stopped")

// ErrQueueFull is returned by Submit when the job buffer is saturated.
var ErrQueueFull = errors.New("refresh queue full")

// Pool is a fixed-size worker pool for background refresh jobs. Jobs are
// fire-and-forget; callers never wait on a result.
type Pool struct {
	jobs    chan func()
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewPool starts the workers.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	p := &Pool{jobs: make(chan func(), 64)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// Submit queues a job without blocking; a saturated buffer rejects the job
// so callers on the request path never wait on a refresh. The lock is held
// across the send so Stop cannot close the channel under a sender.
func (p *Pool) Submit(job func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop drains the queue and waits for in-flight jobs.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()
	close(p.jobs)
	p.wg.Wait()
}
