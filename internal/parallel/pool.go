// Package parallel schedules the work groups of a host-side kernel dispatch
// across goroutines.
package parallel

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned when work is submitted to a closed pool.
var ErrPoolClosed = errors.New("parallel: worker pool closed")

// WorkerPool is a fixed set of goroutines that execute work groups.
//
// Each worker owns a queue. Groups are dealt round-robin across the queues
// and an idle worker steals from the others, so uneven groups (the low
// indices of a sieve are cheaper than the high ones) still balance.
//
// Thread safety: RunGroups may be called from one goroutine at a time and
// must not overlap Close. Close is safe to call more than once.
type WorkerPool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewWorkerPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// 4x workers keeps a queue non-empty while its owner is busy.
	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case work := <-own:
			work()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drain(own)
				return
			case work := <-own:
				work()
			}
		}
	}
}

func (p *WorkerPool) drain(queue chan func()) {
	for {
		select {
		case work := <-queue:
			work()
		default:
			return
		}
	}
}

// steal takes one item from another worker's queue, or returns nil.
func (p *WorkerPool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case work := <-p.queues[i]:
			return work
		default:
		}
	}
	return nil
}

// RunGroups calls fn(g) for every g in [0, groups) and returns after all
// calls have completed. Calls run concurrently; fn must only write state
// owned by its group.
func (p *WorkerPool) RunGroups(groups int, fn func(group int)) error {
	if !p.running.Load() {
		return ErrPoolClosed
	}
	if groups <= 0 {
		return nil
	}

	var pending sync.WaitGroup
	pending.Add(groups)
	for g := range groups {
		work := func() {
			defer pending.Done()
			fn(g)
		}
		select {
		case p.queues[g%p.workers] <- work:
		case <-p.done:
			// Closing: every group must still run exactly once.
			work()
		}
	}
	pending.Wait()
	return nil
}

// Close stops the workers after queued groups have run.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool accepts work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
