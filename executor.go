package pulse

import (
	"context"
	"sync"

	"github.com/petermattis/goid"
)

// Executor dispatches no-arg tasks. It is the sole locus of scheduling in
// this module; operators never call a handler directly when an Executor is
// in scope, they Post to one.
type Executor interface {
	Post(f func())
}

// Immediate runs posted tasks synchronously on the calling goroutine.
// Re-entrancy (a task posting to the same Immediate from inside another
// task) is the caller's responsibility.
type Immediate struct{}

// Post calls f synchronously.
func (Immediate) Post(f func()) { f() }

// NewImmediate returns the Immediate executor. It has no state, so any
// number of callers may share one value.
func NewImmediate() Immediate { return Immediate{} }

// Strand is a FIFO task queue drained explicitly by its owning goroutine.
// Post is safe from any goroutine; Drain must only ever be called by one
// goroutine at a time — a debug assertion (via goid) flags concurrent
// drains during development without imposing a hard runtime dependency on
// single-threaded use.
type Strand struct {
	mu      sync.Mutex
	queue   []func()
	drainer int64
	emit    Emitter
}

// NewStrand constructs an empty Strand using the ambient DefaultEmitter.
func NewStrand() *Strand {
	return &Strand{emit: DefaultEmitter, drainer: -1}
}

// Post enqueues f for the next Drain call.
func (s *Strand) Post(f func()) {
	s.mu.Lock()
	s.queue = append(s.queue, f)
	s.mu.Unlock()
}

// Drain runs every task currently queued, including tasks enqueued by
// earlier tasks in this same Drain call, until the queue is empty.
func (s *Strand) Drain(ctx context.Context) {
	gid := goid.Get()
	s.mu.Lock()
	if s.drainer != -1 && s.drainer != gid {
		// Concurrent Drain from two goroutines violates the Strand
		// contract; surface it as a signal rather than corrupting
		// queue order.
		s.emit.Emit(ctx, SignalExecutorStarted, KeyExecutorKind.Field("strand_concurrent_drain"))
	}
	s.drainer = gid
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.drainer = -1
		s.mu.Unlock()
	}()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		task()
	}
}

// Pool runs posted tasks across a fixed set of worker goroutines sharing a
// FIFO queue. A requested size of 0 yields a single worker. Close stops
// accepting work, wakes every worker, and waits for them to drain the
// remaining queue and exit.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool
	wg      sync.WaitGroup
	emit    Emitter
}

// NewPool starts n workers (at least 1) and returns the running Pool.
func NewPool(ctx context.Context, n int) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{emit: DefaultEmitter}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}
	p.emit.Emit(ctx, SignalExecutorStarted,
		KeyExecutorKind.Field("pool"),
		KeyWorkerCount.Field(n),
	)
	return p
}

// NewPoolFromConfig starts a Pool sized and wired per cfg: worker count
// from cfg.PoolSize() and lifecycle signals through cfg.Emitter() instead
// of the package-level DefaultEmitter. A nil cfg falls back to DefaultConfig.
func NewPoolFromConfig(ctx context.Context, cfg *Config) *Pool {
	if cfg == nil {
		cfg = DefaultConfig
	}
	n := cfg.PoolSize()
	p := &Pool{emit: cfg.Emitter()}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}
	p.emit.Emit(ctx, SignalExecutorStarted,
		KeyExecutorKind.Field("pool"),
		KeyWorkerCount.Field(n),
	)
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped {
			p.cond.Wait()
		}
		if len(p.queue) == 0 && p.stopped {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
		task()
	}
}

// Post enqueues f for any available worker. Ordering between tasks is
// unspecified beyond "each task runs to completion on one worker".
func (p *Pool) Post(f func()) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, f)
	p.mu.Unlock()
	p.cond.Signal()
}

// Close signals every worker to stop once the queue drains, wakes them,
// and joins them before returning.
func (p *Pool) Close(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
	p.emit.Emit(ctx, SignalExecutorStopped, KeyExecutorKind.Field("pool"))
}
