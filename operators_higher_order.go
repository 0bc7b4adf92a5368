package pulse

import (
	"sync"
	"sync/atomic"
)

// SwitchMap subscribes to f(v) for each outer value, cancelling any
// currently active inner subscription first so at most one inner is ever
// live. Inner values are forwarded; an inner error terminates downstream.
// Outer completion or error is forwarded to downstream directly, without
// waiting for the current inner to finish (see DESIGN.md / SPEC_FULL.md
// §9 for why this policy was chosen over waiting on the inner).
func SwitchMap[T, U any](f func(T) Observable[U]) func(Observable[T]) Observable[U] {
	return func(src Observable[T]) Observable[U] {
		return Create(func(obs Observer[U]) Subscription {
			var mu sync.Mutex
			var current Subscription
			var once sync.Once
			var outer Subscription

			teardown := func() {
				once.Do(func() {
					outer.Reset()
					mu.Lock()
					current.Reset()
					mu.Unlock()
				})
			}

			outer = src.Subscribe(Observer[T]{
				OnNext: func(v T) {
					mu.Lock()
					current.Reset()
					mu.Unlock()

					inner := f(v)
					sub := inner.Subscribe(Observer[U]{
						OnNext: obs.next,
						OnErr: func(e error) {
							obs.err(e)
							teardown()
						},
						OnDone: func() {
							// Inner completion just frees the slot; the
							// stream as a whole only ends on outer
							// completion or an inner error.
						},
					})
					mu.Lock()
					current = sub
					mu.Unlock()
				},
				OnErr: func(e error) {
					obs.err(e)
					teardown()
				},
				OnDone: func() {
					obs.done()
					teardown()
				},
			})

			return NewSubscription(teardown)
		})
	}
}

// ConcatMap queues the inner observables produced by f in arrival order
// and subscribes to them serially, never overlapping two inners.
// Downstream completes once the outer has completed and every queued
// inner has completed. An inner error cancels the outer and terminates
// downstream.
func ConcatMap[T, U any](f func(T) Observable[U]) func(Observable[T]) Observable[U] {
	return func(src Observable[T]) Observable[U] {
		return Create(func(obs Observer[U]) Subscription {
			var mu sync.Mutex
			var queue []Observable[U]
			innerActive := false
			outerCompleted := false
			terminated := &atomic.Bool{}
			composite := &CompositeSubscription{}

			var drain func()
			drain = func() {
				mu.Lock()
				if innerActive {
					mu.Unlock()
					return
				}
				if len(queue) == 0 {
					finished := outerCompleted
					mu.Unlock()
					if finished && terminated.CompareAndSwap(false, true) {
						obs.done()
					}
					return
				}
				next := queue[0]
				queue = queue[1:]
				innerActive = true
				mu.Unlock()

				sub := next.Subscribe(Observer[U]{
					OnNext: obs.next,
					OnErr: func(e error) {
						if terminated.CompareAndSwap(false, true) {
							composite.Reset()
							obs.err(e)
						}
					},
					OnDone: func() {
						mu.Lock()
						innerActive = false
						mu.Unlock()
						drain()
					},
				})
				composite.Add(sub)
			}

			outer := src.Subscribe(Observer[T]{
				OnNext: func(v T) {
					mu.Lock()
					queue = append(queue, f(v))
					mu.Unlock()
					drain()
				},
				OnErr: func(e error) {
					if terminated.CompareAndSwap(false, true) {
						composite.Reset()
						obs.err(e)
					}
				},
				OnDone: func() {
					mu.Lock()
					outerCompleted = true
					mu.Unlock()
					drain()
				},
			})
			composite.Add(outer)
			return composite.AsSubscription()
		})
	}
}

// Merge subscribes to every source, forwarding values as they arrive.
// Downstream completes only once all sources have completed; the first
// error cancels the rest and terminates downstream immediately.
func Merge[T any](sources ...Observable[T]) Observable[T] {
	return Create(func(obs Observer[T]) Subscription {
		if len(sources) == 0 {
			obs.done()
			return EmptySubscription()
		}

		remaining := int64(len(sources))
		terminated := &atomic.Bool{}
		composite := &CompositeSubscription{}

		for _, s := range sources {
			sub := s.Subscribe(Observer[T]{
				OnNext: func(v T) {
					if !terminated.Load() {
						obs.next(v)
					}
				},
				OnErr: func(e error) {
					if terminated.CompareAndSwap(false, true) {
						composite.Reset()
						obs.err(e)
					}
				},
				OnDone: func() {
					if atomic.AddInt64(&remaining, -1) == 0 {
						if terminated.CompareAndSwap(false, true) {
							obs.done()
						}
					}
				},
			})
			composite.Add(sub)
		}
		return composite.AsSubscription()
	})
}

// CombineLatest holds the latest value from each of a and b; whenever
// either emits and both have a recorded value, combiner is invoked with
// the pair. Completes when both sources complete; the first error
// terminates downstream and cancels the sibling.
func CombineLatest[A, B, U any](a Observable[A], b Observable[B], combiner func(A, B) U) Observable[U] {
	return Create(func(obs Observer[U]) Subscription {
		var mu sync.Mutex
		var curA A
		var curB B
		haveA, haveB := false, false
		doneA, doneB := false, false
		terminated := &atomic.Bool{}
		composite := &CompositeSubscription{}

		tryEmit := func() {
			mu.Lock()
			ready := haveA && haveB
			va, vb := curA, curB
			mu.Unlock()
			if ready && !terminated.Load() {
				obs.next(combiner(va, vb))
			}
		}

		subA := a.Subscribe(Observer[A]{
			OnNext: func(v A) {
				mu.Lock()
				curA, haveA = v, true
				mu.Unlock()
				tryEmit()
			},
			OnErr: func(e error) {
				if terminated.CompareAndSwap(false, true) {
					composite.Reset()
					obs.err(e)
				}
			},
			OnDone: func() {
				mu.Lock()
				doneA = true
				both := doneA && doneB
				mu.Unlock()
				if both && terminated.CompareAndSwap(false, true) {
					obs.done()
				}
			},
		})
		composite.Add(subA)

		subB := b.Subscribe(Observer[B]{
			OnNext: func(v B) {
				mu.Lock()
				curB, haveB = v, true
				mu.Unlock()
				tryEmit()
			},
			OnErr: func(e error) {
				if terminated.CompareAndSwap(false, true) {
					composite.Reset()
					obs.err(e)
				}
			},
			OnDone: func() {
				mu.Lock()
				doneB = true
				both := doneA && doneB
				mu.Unlock()
				if both && terminated.CompareAndSwap(false, true) {
					obs.done()
				}
			},
		})
		composite.Add(subB)

		return composite.AsSubscription()
	})
}

// Zip pairs values positionally from a and b via per-source FIFO queues,
// emitting combiner(headA, headB) whenever both heads are available and
// consuming them. Completes once a source has completed and its queue is
// drained.
func Zip[A, B, U any](a Observable[A], b Observable[B], combiner func(A, B) U) Observable[U] {
	return Create(func(obs Observer[U]) Subscription {
		var mu sync.Mutex
		var qa []A
		var qb []B
		doneA, doneB := false, false
		terminated := &atomic.Bool{}
		composite := &CompositeSubscription{}

		var tryEmit func()
		tryEmit = func() {
			mu.Lock()
			if len(qa) > 0 && len(qb) > 0 {
				va := qa[0]
				qa = qa[1:]
				vb := qb[0]
				qb = qb[1:]
				mu.Unlock()
				if !terminated.Load() {
					obs.next(combiner(va, vb))
				}
				tryEmit()
				return
			}
			exhausted := (doneA && len(qa) == 0) || (doneB && len(qb) == 0)
			mu.Unlock()
			if exhausted && terminated.CompareAndSwap(false, true) {
				composite.Reset()
				obs.done()
			}
		}

		subA := a.Subscribe(Observer[A]{
			OnNext: func(v A) {
				mu.Lock()
				qa = append(qa, v)
				mu.Unlock()
				tryEmit()
			},
			OnErr: func(e error) {
				if terminated.CompareAndSwap(false, true) {
					composite.Reset()
					obs.err(e)
				}
			},
			OnDone: func() {
				mu.Lock()
				doneA = true
				mu.Unlock()
				tryEmit()
			},
		})
		composite.Add(subA)

		subB := b.Subscribe(Observer[B]{
			OnNext: func(v B) {
				mu.Lock()
				qb = append(qb, v)
				mu.Unlock()
				tryEmit()
			},
			OnErr: func(e error) {
				if terminated.CompareAndSwap(false, true) {
					composite.Reset()
					obs.err(e)
				}
			},
			OnDone: func() {
				mu.Lock()
				doneB = true
				mu.Unlock()
				tryEmit()
			},
		})
		composite.Add(subB)

		return composite.AsSubscription()
	})
}

// Buffer collects values into groups of exactly count, emitting each
// full group as it completes. On upstream completion, a partial tail is
// flushed before OnDone. On upstream error, the tail is discarded and the
// error is forwarded immediately. count must be greater than 0.
func Buffer[T any](count int) func(Observable[T]) Observable[[]T] {
	if count <= 0 {
		panic("pulse: Buffer count must be > 0")
	}
	return func(src Observable[T]) Observable[[]T] {
		return Create(func(obs Observer[[]T]) Subscription {
			var buf []T
			return src.Subscribe(Observer[T]{
				OnNext: func(v T) {
					buf = append(buf, v)
					if len(buf) == count {
						group := buf
						buf = nil
						obs.next(group)
					}
				},
				OnErr: obs.err,
				OnDone: func() {
					if len(buf) > 0 {
						obs.next(buf)
						buf = nil
					}
					obs.done()
				},
			})
		})
	}
}

type windowState[T any] struct {
	mu   sync.Mutex
	obs  *Observer[T]
	open bool
}

// Window groups values like Buffer, but exposes each group as its own
// inner Observable instead of a slice: the outer stream emits the inner
// observable when a group starts, the inner observable completes when
// the group reaches count (or the outer completes), and an upstream
// error closes the current inner with that error before erroring the
// outer.
func Window[T any](count int) func(Observable[T]) Observable[Observable[T]] {
	if count <= 0 {
		panic("pulse: Window count must be > 0")
	}
	return func(src Observable[T]) Observable[Observable[T]] {
		return Create(func(outerObs Observer[Observable[T]]) Subscription {
			var cur *windowState[T]
			n := 0

			openWindow := func() (Observable[T], *windowState[T]) {
				ws := &windowState[T]{open: true}
				return Create(func(obs Observer[T]) Subscription {
					ws.mu.Lock()
					ws.obs = &obs
					ws.mu.Unlock()
					return EmptySubscription()
				}), ws
			}

			emit := func(ws *windowState[T], v T) {
				ws.mu.Lock()
				o := ws.obs
				ws.mu.Unlock()
				if o != nil {
					o.next(v)
				}
			}
			closeOK := func(ws *windowState[T]) {
				ws.mu.Lock()
				o := ws.obs
				ws.open = false
				ws.mu.Unlock()
				if o != nil {
					o.done()
				}
			}
			closeErr := func(ws *windowState[T], e error) {
				ws.mu.Lock()
				o := ws.obs
				ws.open = false
				ws.mu.Unlock()
				if o != nil {
					o.err(e)
				}
			}

			return src.Subscribe(Observer[T]{
				OnNext: func(v T) {
					if cur == nil {
						inner, ws := openWindow()
						cur = ws
						outerObs.next(inner)
					}
					ws := cur
					emit(ws, v)
					n++
					if n == count {
						n = 0
						closeOK(ws)
						cur = nil
					}
				},
				OnErr: func(e error) {
					if cur != nil {
						closeErr(cur, e)
						cur = nil
					}
					outerObs.err(e)
				},
				OnDone: func() {
					if cur != nil {
						closeOK(cur)
						cur = nil
					}
					outerObs.done()
				},
			})
		})
	}
}
