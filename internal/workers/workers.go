package workers

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Executor runs exchange handling tasks. Implementations may run the task
// on the calling goroutine.
type Executor interface {
	Execute(task func())
}

// Inline runs every task on the calling goroutine.
type Inline struct{}

func (Inline) Execute(task func()) {
	task()
}

const queueSize = 256

// Pool is a fixed set of goroutines, each owning its own queue. Tasks are
// distributed round-robin and an idle worker steals from its neighbours.
// When every queue the task is offered to is full, the task runs inline.
type Pool struct {
	queues    []chan func()
	submitted atomic.Uint64
	completed atomic.Uint64
	mu        sync.RWMutex
	closed    bool
	wg        sync.WaitGroup
}

// NewPool starts n workers. Non-positive n means one worker per CPU.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}

	p := &Pool{
		queues: make([]chan func(), n),
	}

	for i := range p.queues {
		p.queues[i] = make(chan func(), queueSize)
	}

	p.wg.Add(n)
	for i := range p.queues {
		go p.work(i)
	}

	return p
}

// Execute enqueues the task. After Close, tasks run inline.
func (p *Pool) Execute(task func()) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		p.run(task)
		return
	}

	idx := int(p.submitted.Add(1) % uint64(len(p.queues)))

	select {
	case p.queues[idx] <- task:
		p.mu.RUnlock()
		return
	default:
	}

	idx = (idx + 1) % len(p.queues)
	select {
	case p.queues[idx] <- task:
		p.mu.RUnlock()
	default:
		p.mu.RUnlock()
		p.run(task)
	}
}

// Workers returns the number of goroutines in the pool.
func (p *Pool) Workers() int {
	return len(p.queues)
}

// Completed returns how many tasks were run so far, inline ones included.
func (p *Pool) Completed() uint64 {
	return p.completed.Load()
}

// Close stops accepting new tasks into the queues. Already queued tasks are
// still run. Close blocks until every worker exits.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case task, ok := <-own:
			if !ok {
				return
			}

			p.run(task)
			continue
		default:
		}

		if p.steal(id) {
			continue
		}

		task, ok := <-own
		if !ok {
			return
		}

		p.run(task)
	}
}

func (p *Pool) steal(id int) bool {
	n := len(p.queues)
	for i := 1; i < n; i++ {
		select {
		case task, ok := <-p.queues[(id+i)%n]:
			if ok {
				p.run(task)
				return true
			}
		default:
		}
	}

	return false
}

func (p *Pool) run(task func()) {
	task()
	p.completed.Add(1)
}
