package pulse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/clockz"
)

// hub is the shared multicast state behind Connectable/Share: a dynamic set
// of downstream slots fed by a single upstream subscription, with sticky
// terminal state exactly like Subject. wrapErr lets Share attach
// ErrSharedSourceErrored to late subscribers without Connectable's own
// plain pass-through having to know about it.
type hub[T any] struct {
	mu        sync.Mutex
	src       Observable[T]
	slots     map[int]Observer[T]
	nextID    int
	upstream  Subscription
	started   bool
	completed bool
	errored   bool
	err       error
	wrapErr   func(error) error
	emit      Emitter
}

func newHub[T any](src Observable[T], wrapErr func(error) error) *hub[T] {
	if wrapErr == nil {
		wrapErr = func(e error) error { return e }
	}
	return &hub[T]{src: src, slots: make(map[int]Observer[T]), wrapErr: wrapErr, emit: DefaultEmitter}
}

func (h *hub[T]) snapshotLocked() []Observer[T] {
	out := make([]Observer[T], 0, len(h.slots))
	for _, obs := range h.slots {
		out = append(out, obs)
	}
	return out
}

func (h *hub[T]) subscribe(obs Observer[T]) Subscription {
	h.mu.Lock()
	if h.errored {
		err := h.wrapErr(h.err)
		h.mu.Unlock()
		obs.err(err)
		return EmptySubscription()
	}
	if h.completed {
		h.mu.Unlock()
		obs.done()
		return EmptySubscription()
	}
	id := h.nextID
	h.nextID++
	h.slots[id] = obs
	h.mu.Unlock()

	return NewSubscription(func() {
		h.mu.Lock()
		delete(h.slots, id)
		h.mu.Unlock()
	})
}

// connect subscribes the hub to its upstream exactly once. Calling connect
// again while already started is a no-op that returns an inert
// subscription; resetting the returned subscription tears the upstream
// down and flips started back to false so a later connect re-subscribes.
func (h *hub[T]) connect() Subscription {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return EmptySubscription()
	}
	h.started = true
	h.mu.Unlock()

	upstream := h.src.Subscribe(Observer[T]{
		OnNext: func(v T) {
			h.mu.Lock()
			snap := h.snapshotLocked()
			h.mu.Unlock()
			for _, obs := range snap {
				obs.next(v)
			}
		},
		OnErr: func(e error) {
			h.mu.Lock()
			h.errored = true
			h.err = e
			snap := h.snapshotLocked()
			h.slots = make(map[int]Observer[T])
			h.emit.Emit(context.Background(), SignalHubErrored, KeyError.Field(e.Error()))
			h.mu.Unlock()
			for _, obs := range snap {
				obs.err(e)
			}
		},
		OnDone: func() {
			h.mu.Lock()
			h.completed = true
			snap := h.snapshotLocked()
			h.slots = make(map[int]Observer[T])
			h.emit.Emit(context.Background(), SignalHubCompleted)
			h.mu.Unlock()
			for _, obs := range snap {
				obs.done()
			}
		},
	})

	h.mu.Lock()
	h.upstream = upstream
	h.emit.Emit(context.Background(), SignalHubStarted)
	h.mu.Unlock()

	return NewSubscription(func() {
		h.mu.Lock()
		if !h.started {
			h.mu.Unlock()
			return
		}
		h.started = false
		up := h.upstream
		h.upstream = EmptySubscription()
		h.emit.Emit(context.Background(), SignalHubStopped)
		h.mu.Unlock()
		up.Reset()
	})
}

// Connectable binds an upstream Observable to a shared hub: subscribing to
// Observable() registers a downstream slot without starting the upstream;
// Connect() is what actually activates it.
type Connectable[T any] struct {
	h *hub[T]
}

// Publish wraps src in a Connectable: downstream subscribers share a
// single upstream subscription that only begins once Connect is called
// (or, composed with RefCount/Share, once the first subscriber arrives).
func Publish[T any](src Observable[T]) Connectable[T] {
	return Connectable[T]{h: newHub(src, nil)}
}

// Observable returns a view of the connectable that registers downstream
// slots against the shared hub without itself starting the upstream.
func (c Connectable[T]) Observable() Observable[T] {
	return Create(c.h.subscribe)
}

// Connect idempotently starts the upstream. Resetting the returned
// subscription tears the upstream down; a later Connect call starts it
// again from scratch.
func (c Connectable[T]) Connect() Subscription {
	return c.h.connect()
}

// refCounted tracks how many live downstream subscriptions a Connectable
// currently has, starting the upstream on 0->1 and (after an optional
// grace period) tearing it down on 1->0. The generation counter guards a
// deferred teardown against acting on an upstream a newer subscriber has
// since adopted.
type refCounted[T any] struct {
	mu         sync.Mutex
	c          Connectable[T]
	count      int
	generation int64
	connSub    Subscription
	grace      time.Duration
	clock      clockz.Clock
	emit       Emitter
}

func refCountObservable[T any](c Connectable[T], grace time.Duration, clock clockz.Clock) Observable[T] {
	if clock == nil {
		clock = clockz.RealClock
	}
	rc := &refCounted[T]{c: c, grace: grace, clock: clock, emit: DefaultEmitter}

	return Create(func(obs Observer[T]) Subscription {
		rc.mu.Lock()
		rc.count++
		if rc.count == 1 {
			rc.generation++
			if !rc.connSub.Valid() {
				// No live upstream to reuse: either this is the very first
				// subscriber, or the previous one's grace period already
				// tore it down. A subscriber arriving within an armed
				// grace window finds connSub still valid here and simply
				// adopts it instead of reconnecting.
				rc.connSub = c.Connect()
			}
			rc.emit.Emit(context.Background(), SignalRefCountChanged, KeyRefCount.Field(rc.count), KeyGeneration.Field(int(rc.generation)))
		}
		rc.mu.Unlock()

		inner := c.Observable().Subscribe(obs)

		return NewSubscription(func() {
			inner.Reset()
			rc.mu.Lock()
			rc.count--
			if rc.count != 0 {
				rc.mu.Unlock()
				return
			}
			myGen := rc.generation
			rc.emit.Emit(context.Background(), SignalRefCountChanged, KeyRefCount.Field(rc.count), KeyGeneration.Field(int(myGen)))

			if rc.grace <= 0 {
				connSub := rc.connSub
				rc.connSub = EmptySubscription()
				rc.mu.Unlock()
				connSub.Reset()
				return
			}

			rc.emit.Emit(context.Background(), SignalRefCountGrace, KeyGrace.Field(rc.grace))
			rc.mu.Unlock()

			timer := rc.clock.NewTimer(rc.grace)
			go func() {
				<-timer.C()
				rc.mu.Lock()
				if rc.count == 0 && rc.generation == myGen {
					connSub := rc.connSub
					rc.connSub = EmptySubscription()
					rc.mu.Unlock()
					connSub.Reset()
					return
				}
				rc.mu.Unlock()
			}()
		})
	})
}

// RefCount starts the connectable's upstream when the first subscriber
// arrives and tears it down immediately when the last one leaves.
func RefCount[T any](c Connectable[T]) Observable[T] {
	return refCountObservable(c, 0, nil)
}

// RefCountGrace is RefCount but teardown is deferred by grace after the
// last subscriber leaves; a subscriber arriving within the grace window
// reuses the still-live upstream instead of triggering a fresh Connect.
func RefCountGrace[T any](c Connectable[T], grace time.Duration, clock clockz.Clock) Observable[T] {
	return refCountObservable(c, grace, clock)
}

// Share multicasts src to any number of subscribers from a single
// upstream subscription: the first subscriber starts it, the last
// unsubscribe tears it down. Subscribers joining after the upstream has
// already errored receive ErrSharedSourceErrored wrapping the latched
// error, rather than the raw error a plain Connectable would replay.
func Share[T any](src Observable[T]) Observable[T] {
	c := Connectable[T]{h: newHub(src, func(e error) error {
		return fmt.Errorf("%w: %v", ErrSharedSourceErrored, e)
	})}
	return RefCount(c)
}

// ShareGrace is Share with a grace period before upstream teardown, the
// composition exercised directly in end-to-end tests of RefCountGrace.
func ShareGrace[T any](src Observable[T], grace time.Duration, clock clockz.Clock) Observable[T] {
	c := Connectable[T]{h: newHub(src, func(e error) error {
		return fmt.Errorf("%w: %v", ErrSharedSourceErrored, e)
	})}
	return RefCountGrace(c, grace, clock)
}
