package simulation

import "sync"

// queueDepth bounds how many inbound messages may wait for a worker before
// the agent starts shedding load.
const queueDepth = 64

// dispatchPool is a small fixed pool of workers for inbound message handling,
// closed exactly once during agent shutdown.
type dispatchPool struct {
	jobs chan func()
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func newDispatchPool(workers int) *dispatchPool {
	p := &dispatchPool{jobs: make(chan func(), queueDepth)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *dispatchPool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// Submit queues a job, reporting false once the pool has shut down or the
// queue is full. It never blocks: it runs on the transport's delivery
// goroutine, where blocking would stall acknowledgment processing.
func (p *dispatchPool) Submit(job func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Shutdown closes the queue and waits for in-flight jobs to finish. Safe to
// call more than once.
func (p *dispatchPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
