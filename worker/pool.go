// Package worker provides a bounded goroutine pool for executing arbitrary
// jobs with controlled concurrency.
package worker

import "sync"

// Pool runs submitted jobs on a fixed set of goroutines.
//
// The workers are started once, inside New, and reused for every job, so
// submitting is cheap even under bursts.  The job queue is buffered: Submit
// only blocks once the buffer fills, which applies natural back-pressure to
// producers (in this codebase, the reaper fanning out expiry notifications).
type Pool struct {
	jobs chan func()
	wg   sync.WaitGroup
}

// New creates a Pool with n worker goroutines already running.  n values
// below 1 are treated as 1.
func New(n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{jobs: make(chan func(), n*8)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// Submit enqueues job for execution.  It blocks while the queue is full.
// Submit must not be called after Stop.
func (p *Pool) Submit(job func()) {
	p.jobs <- job
}

// Stop drains the queue, waits for in-flight jobs to finish, and releases
// the worker goroutines.  The pool cannot be restarted.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
