package pulse

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// accepter is the narrow interface for drop-class policies: a synchronous
// gate the Topic dispatcher checks before posting the handler itself.
type accepter interface {
	Accept() bool
}

// publisher is the interface for policies that own their own buffering and
// scheduling. The Topic dispatcher hands them the value, the executor, and
// the handler to invoke once flow control allows it.
type publisher[T any] interface {
	Publish(ctx context.Context, v T, ex Executor, invoke func(T))
}

// NonePolicy always accepts; it is the default backpressure for adapters
// like AsObservable that must never drop.
type NonePolicy struct{}

// Accept always returns true.
func (NonePolicy) Accept() bool { return true }

// DropPolicy accepts the first N values it sees, then rejects everything
// else for its lifetime.
type DropPolicy struct {
	mu        sync.Mutex
	remaining int
}

// NewDropPolicy accepts the first n values.
func NewDropPolicy(n int) *DropPolicy {
	return &DropPolicy{remaining: n}
}

// Accept reports whether the remaining budget allows one more value.
func (d *DropPolicy) Accept() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remaining <= 0 {
		return false
	}
	d.remaining--
	return true
}

// LatestPolicy coalesces bursts: only the most recently published value is
// delivered once the drain loop catches up.
type LatestPolicy[T any] struct {
	mu        sync.Mutex
	last      *T
	scheduled bool
	emit      Emitter
}

// NewLatestPolicy returns a LatestPolicy using the ambient DefaultEmitter.
func NewLatestPolicy[T any]() *LatestPolicy[T] {
	return &LatestPolicy[T]{emit: DefaultEmitter}
}

// Publish overwrites the pending slot and schedules exactly one drain task.
func (p *LatestPolicy[T]) Publish(ctx context.Context, v T, ex Executor, invoke func(T)) {
	p.mu.Lock()
	vv := v
	p.last = &vv
	shouldSchedule := !p.scheduled
	if shouldSchedule {
		p.scheduled = true
	}
	p.mu.Unlock()

	if !shouldSchedule {
		return
	}
	ex.Post(func() {
		for {
			p.mu.Lock()
			cur := p.last
			p.last = nil
			p.mu.Unlock()
			if cur == nil {
				break
			}
			invoke(*cur)
		}
		p.mu.Lock()
		p.scheduled = false
		p.mu.Unlock()
	})
}

// BufferPolicy buffers up to capacity values, dropping the newest arrival
// once full, and drains them one at a time through the executor.
type BufferPolicy[T any] struct {
	mu        sync.Mutex
	queue     []T
	capacity  int
	scheduled bool
	emit      Emitter
}

// NewBufferPolicy returns a BufferPolicy with the given capacity (a
// capacity of 0 or less is treated as 1).
func NewBufferPolicy[T any](capacity int) *BufferPolicy[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &BufferPolicy[T]{capacity: capacity, emit: DefaultEmitter}
}

// Publish enqueues v if there is room, or drops it (emitting a diagnostic
// signal) if the buffer is full, then ensures exactly one drain task runs.
func (p *BufferPolicy[T]) Publish(ctx context.Context, v T, ex Executor, invoke func(T)) {
	p.mu.Lock()
	shouldSchedule := false
	if len(p.queue) < p.capacity {
		p.queue = append(p.queue, v)
		if !p.scheduled {
			p.scheduled = true
			shouldSchedule = true
		}
	} else {
		p.emit.Emit(ctx, SignalBackpressureDrop, KeyExecutorKind.Field("buffer"))
	}
	p.mu.Unlock()

	if !shouldSchedule {
		return
	}
	ex.Post(func() {
		for {
			p.mu.Lock()
			if len(p.queue) == 0 {
				p.scheduled = false
				p.mu.Unlock()
				return
			}
			item := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			invoke(item)
		}
	})
}

// BatchNPolicy flushes values in groups of exactly N, invoking the handler
// once per element in the group. Fewer than N buffered values are held
// until enough arrive.
type BatchNPolicy[T any] struct {
	mu        sync.Mutex
	buf       []T
	n         int
	scheduled bool
}

// NewBatchNPolicy returns a BatchNPolicy flushing groups of n. n must be
// greater than 0.
func NewBatchNPolicy[T any](n int) *BatchNPolicy[T] {
	if n <= 0 {
		panic("pulse: BatchNPolicy n must be > 0")
	}
	return &BatchNPolicy[T]{n: n}
}

// Publish appends v and schedules a flush once the buffer reaches n.
func (p *BatchNPolicy[T]) Publish(ctx context.Context, v T, ex Executor, invoke func(T)) {
	p.mu.Lock()
	p.buf = append(p.buf, v)
	shouldFlush := len(p.buf) >= p.n && !p.scheduled
	if shouldFlush {
		p.scheduled = true
	}
	p.mu.Unlock()

	if !shouldFlush {
		return
	}
	ex.Post(func() {
		for {
			p.mu.Lock()
			if len(p.buf) < p.n {
				p.scheduled = false
				p.mu.Unlock()
				return
			}
			group := append([]T(nil), p.buf[:p.n]...)
			p.buf = p.buf[p.n:]
			p.mu.Unlock()
			for _, item := range group {
				invoke(item)
			}
		}
	})
}

// BatchNOrTimeoutPolicy flushes a group once N values accumulate, or after
// timeout elapses with fewer than N buffered, whichever comes first. The
// timer re-arms on the next publish after it fires.
type BatchNOrTimeoutPolicy[T any] struct {
	mu              sync.Mutex
	buf             []T
	n               int
	timeout         time.Duration
	clock           clockz.Clock
	timerArmed     bool
	scheduledBatch bool
}

// NewBatchNOrTimeoutPolicy returns a policy flushing groups of n, or
// whatever is buffered after timeout with no new arrivals closing the
// group first.
func NewBatchNOrTimeoutPolicy[T any](n int, timeout time.Duration, clock clockz.Clock) *BatchNOrTimeoutPolicy[T] {
	if n <= 0 {
		panic("pulse: BatchNOrTimeoutPolicy n must be > 0")
	}
	if clock == nil {
		clock = clockz.RealClock
	}
	return &BatchNOrTimeoutPolicy[T]{n: n, timeout: timeout, clock: clock}
}

// Publish appends v, flushing immediately if the group reached n, and
// arms (or leaves armed) a timeout-driven flush of the partial group.
func (p *BatchNOrTimeoutPolicy[T]) Publish(ctx context.Context, v T, ex Executor, invoke func(T)) {
	p.mu.Lock()
	p.buf = append(p.buf, v)

	shouldFlushBatch := len(p.buf) >= p.n && !p.scheduledBatch
	if shouldFlushBatch {
		p.scheduledBatch = true
	}
	shouldArm := !p.timerArmed
	if shouldArm {
		p.timerArmed = true
	}
	p.mu.Unlock()

	if shouldFlushBatch {
		ex.Post(func() { p.flushBatch(invoke) })
	}

	if shouldArm {
		timer := p.clock.NewTimer(p.timeout)
		go func() {
			<-timer.C()
			needFlush := false
			p.mu.Lock()
			if len(p.buf) > 0 && !p.scheduledBatch {
				needFlush = true
			}
			p.mu.Unlock()
			if needFlush {
				ex.Post(func() { p.flushTimeout(invoke) })
			}
			p.mu.Lock()
			p.timerArmed = false
			p.mu.Unlock()
		}()
	}
}

func (p *BatchNOrTimeoutPolicy[T]) flushBatch(invoke func(T)) {
	p.mu.Lock()
	if len(p.buf) < p.n {
		p.scheduledBatch = false
		p.mu.Unlock()
		return
	}
	group := append([]T(nil), p.buf[:p.n]...)
	p.buf = p.buf[p.n:]
	p.scheduledBatch = false
	p.mu.Unlock()
	for _, item := range group {
		invoke(item)
	}
}

func (p *BatchNOrTimeoutPolicy[T]) flushTimeout(invoke func(T)) {
	p.mu.Lock()
	group := p.buf
	p.buf = nil
	p.mu.Unlock()
	for _, item := range group {
		invoke(item)
	}
}
