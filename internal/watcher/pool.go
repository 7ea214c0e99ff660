package watcher

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrPoolFull is returned by Submit when capacity tasks are already waiting.
	ErrPoolFull = errors.New("worker pool full")
	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("worker pool closed")
)

type task struct {
	key string
	fn  func(context.Context)
}

// Pool runs tasks on a fixed set of workers. Tasks sharing a key run one at
// a time in submission order; tasks with different keys run in parallel.
// Submit never blocks.
type Pool struct {
	workers  int
	capacity int

	mu      sync.Mutex
	cond    *sync.Cond
	ready   []task
	waiting map[string][]func(context.Context)
	pending int
	closed  bool
	wg      sync.WaitGroup
	freed   chan struct{}
}

// NewPool returns a pool with workers goroutines holding at most capacity
// unfinished tasks.
func NewPool(workers, capacity int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 1024
	}
	p := &Pool{
		workers:  workers,
		capacity: capacity,
		waiting:  make(map[string][]func(context.Context)),
		freed:    make(chan struct{}, 1),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start launches the workers. Tasks receive ctx.
func (p *Pool) Start(ctx context.Context) {
	for range p.workers {
		p.wg.Add(1)
		go p.work(ctx)
	}
}

// Submit queues fn under key.
func (p *Pool) Submit(key string, fn func(context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	if p.pending >= p.capacity {
		return ErrPoolFull
	}
	p.pending++
	if queue, active := p.waiting[key]; active {
		p.waiting[key] = append(queue, fn)
		return nil
	}
	p.waiting[key] = nil
	p.ready = append(p.ready, task{key: key, fn: fn})
	p.cond.Signal()
	return nil
}

// SubmitWait is Submit that waits for capacity instead of failing.
func (p *Pool) SubmitWait(ctx context.Context, key string, fn func(context.Context)) error {
	for {
		err := p.Submit(key, fn)
		if !errors.Is(err, ErrPoolFull) {
			return err
		}
		if err := p.waitFreed(ctx); err != nil {
			return err
		}
	}
}

// Wait blocks until no task is queued or running.
func (p *Pool) Wait(ctx context.Context) error {
	for p.Pending() > 0 {
		if err := p.waitFreed(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) waitFreed(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.freed:
	case <-time.After(50 * time.Millisecond):
	}
	return nil
}

// Pending returns the number of queued or running tasks.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Close stops accepting tasks, lets the workers drain what is queued and
// waits for them to exit.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.ready) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.ready) == 0 {
			p.mu.Unlock()
			return
		}
		next := p.ready[0]
		p.ready = p.ready[1:]
		p.mu.Unlock()

		next.fn(ctx)

		p.mu.Lock()
		p.pending--
		if queue := p.waiting[next.key]; len(queue) > 0 {
			p.waiting[next.key] = queue[1:]
			p.ready = append(p.ready, task{key: next.key, fn: queue[0]})
			p.cond.Signal()
		} else {
			delete(p.waiting, next.key)
		}
		p.mu.Unlock()

		select {
		case p.freed <- struct{}{}:
		default:
		}
	}
}

// keyLocks hands out one mutex per key and forgets it once unused.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

// lock blocks until key is free and returns the matching unlock.
func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyLock{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
