package pulse

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
)

// Debounce delays each value by d; if a newer value arrives before d
// elapses, the earlier one is discarded. Errors and completion are
// forwarded through exec immediately, without waiting on the debounce
// window.
func Debounce[T any](d time.Duration, exec Executor, clock clockz.Clock) func(Observable[T]) Observable[T] {
	if clock == nil {
		clock = clockz.RealClock
	}
	return func(src Observable[T]) Observable[T] {
		return Create(func(obs Observer[T]) Subscription {
			var ticket int64
			alive := &atomic.Bool{}
			alive.Store(true)

			return src.Subscribe(Observer[T]{
				OnNext: func(v T) {
					my := atomic.AddInt64(&ticket, 1)
					go func() {
						timer := clock.NewTimer(d)
						<-timer.C()
						if !alive.Load() {
							return
						}
						if atomic.LoadInt64(&ticket) != my {
							return
						}
						exec.Post(func() {
							if alive.Load() {
								obs.next(v)
							}
						})
					}()
				},
				OnErr: func(e error) {
					alive.Store(false)
					exec.Post(func() { obs.err(e) })
				},
				OnDone: func() {
					alive.Store(false)
					exec.Post(obs.done)
				},
			})
		})
	}
}

// Throttle is a leading-edge gate: the first value in an open window
// emits immediately; later values within the same window are dropped;
// the window re-opens after w.
func Throttle[T any](w time.Duration, exec Executor, clock clockz.Clock) func(Observable[T]) Observable[T] {
	if clock == nil {
		clock = clockz.RealClock
	}
	return func(src Observable[T]) Observable[T] {
		return Create(func(obs Observer[T]) Subscription {
			var mu sync.Mutex
			closed := false
			alive := &atomic.Bool{}
			alive.Store(true)

			return src.Subscribe(Observer[T]{
				OnNext: func(v T) {
					mu.Lock()
					if closed {
						mu.Unlock()
						return
					}
					closed = true
					mu.Unlock()

					exec.Post(func() {
						if alive.Load() {
							obs.next(v)
						}
					})

					go func() {
						timer := clock.NewTimer(w)
						<-timer.C()
						mu.Lock()
						closed = false
						mu.Unlock()
					}()
				},
				OnErr: func(e error) {
					alive.Store(false)
					exec.Post(func() { obs.err(e) })
				},
				OnDone: func() {
					alive.Store(false)
					exec.Post(obs.done)
				},
			})
		})
	}
}

// ThrottleLatest is leading-edge plus trailing-latest: the first value of
// an open window emits immediately and opens a window; later values
// within the window overwrite a pending slot; at window end, a pending
// value is emitted and a new window starts, otherwise the gate reopens.
// Each burst therefore emits at most twice: the leading value and the
// final latest.
func ThrottleLatest[T any](w time.Duration, exec Executor, clock clockz.Clock) func(Observable[T]) Observable[T] {
	if clock == nil {
		clock = clockz.RealClock
	}
	return func(src Observable[T]) Observable[T] {
		return Create(func(obs Observer[T]) Subscription {
			var mu sync.Mutex
			windowOpen := false
			var pending *T
			alive := &atomic.Bool{}
			alive.Store(true)

			var armWindow func()
			armWindow = func() {
				go func() {
					timer := clock.NewTimer(w)
					<-timer.C()
					mu.Lock()
					if p := pending; p != nil {
						pending = nil
						mu.Unlock()
						exec.Post(func() {
							if alive.Load() {
								obs.next(*p)
							}
						})
						armWindow()
						return
					}
					windowOpen = false
					mu.Unlock()
				}()
			}

			return src.Subscribe(Observer[T]{
				OnNext: func(v T) {
					mu.Lock()
					if !windowOpen {
						windowOpen = true
						mu.Unlock()
						exec.Post(func() {
							if alive.Load() {
								obs.next(v)
							}
						})
						armWindow()
						return
					}
					vv := v
					pending = &vv
					mu.Unlock()
				},
				OnErr: func(e error) {
					alive.Store(false)
					exec.Post(func() { obs.err(e) })
				},
				OnDone: func() {
					alive.Store(false)
					exec.Post(obs.done)
				},
			})
		})
	}
}

// Timeout arms a watchdog on subscribe; whichever happens first, a
// genuine notification or the watchdog firing, wins atomically. If the
// watchdog wins, downstream receives OnErr(ErrTimeout).
func Timeout[T any](d time.Duration, clock clockz.Clock) func(Observable[T]) Observable[T] {
	if clock == nil {
		clock = clockz.RealClock
	}
	return func(src Observable[T]) Observable[T] {
		return Create(func(obs Observer[T]) Subscription {
			// 0: armed, 1: disarmed by a notification, 2: timed out.
			state := &atomic.Int32{}

			composite := &CompositeSubscription{}

			timer := clock.NewTimer(d)
			go func() {
				<-timer.C()
				if state.CompareAndSwap(0, 2) {
					obs.err(ErrTimeout)
					composite.Reset()
				}
			}()

			upstream := src.Subscribe(Observer[T]{
				OnNext: func(v T) {
					state.CompareAndSwap(0, 1)
					if state.Load() != 2 {
						obs.next(v)
					}
				},
				OnErr: func(e error) {
					state.CompareAndSwap(0, 1)
					if state.Load() != 2 {
						obs.err(e)
					}
				},
				OnDone: func() {
					state.CompareAndSwap(0, 1)
					if state.Load() != 2 {
						obs.done()
					}
				},
			})
			composite.Add(upstream)
			return composite.AsSubscription()
		})
	}
}

// Timer emits a single tick (0) after d, then completes.
func Timer(d time.Duration, exec Executor, clock clockz.Clock) Observable[int] {
	if clock == nil {
		clock = clockz.RealClock
	}
	return Create(func(obs Observer[int]) Subscription {
		alive := &atomic.Bool{}
		alive.Store(true)

		timer := clock.NewTimer(d)
		go func() {
			<-timer.C()
			if !alive.Load() {
				return
			}
			exec.Post(func() {
				if alive.Load() {
					obs.next(0)
					obs.done()
				}
			})
		}()

		return NewSubscription(func() { alive.Store(false) })
	})
}

// IntervalOption configures Interval.
type IntervalOption func(*intervalConfig)

type intervalConfig struct {
	initialDelay time.Duration
}

// WithInitialDelay fires the first tick after d instead of after the
// first period.
func WithInitialDelay(d time.Duration) IntervalOption {
	return func(c *intervalConfig) { c.initialDelay = d }
}

// Interval emits monotonically increasing ticks 0,1,2,... spaced by
// period, optionally after an initial delay, until cancelled.
func Interval(period time.Duration, exec Executor, clock clockz.Clock, opts ...IntervalOption) Observable[int] {
	if clock == nil {
		clock = clockz.RealClock
	}
	cfg := &intervalConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return Create(func(obs Observer[int]) Subscription {
		alive := &atomic.Bool{}
		alive.Store(true)

		first := period
		if cfg.initialDelay > 0 {
			first = cfg.initialDelay
		}
		timer := clock.NewTimer(first)
		go func() {
			tick := 0
			for {
				<-timer.C()
				if !alive.Load() {
					return
				}
				t := tick
				tick++
				exec.Post(func() {
					if alive.Load() {
						obs.next(t)
					}
				})
				timer = clock.NewTimer(period)
			}
		}()

		return NewSubscription(func() { alive.Store(false) })
	})
}
