package pulse

import (
	"context"
	"sync/atomic"
)

// Retry re-subscribes to upstream up to k additional times after an
// error — k+1 attempts total — forwarding the (k+1)-th error to
// downstream instead of retrying again. OnDone is forwarded unchanged on
// the first completion, whichever attempt it comes from. Re-subscription
// happens through a composite subscription so an in-flight cancellation
// stops a pending retry from ever subscribing.
func Retry[T any](k int) func(Observable[T]) Observable[T] {
	return func(src Observable[T]) Observable[T] {
		return Create(func(obs Observer[T]) Subscription {
			composite := &CompositeSubscription{}
			terminated := &atomic.Bool{}
			cancelled := &atomic.Bool{}
			composite.Add(NewSubscription(func() { cancelled.Store(true) }))
			var attempt func(n int)

			attempt = func(n int) {
				var current Subscription
				current = src.Subscribe(Observer[T]{
					OnNext: obs.next,
					OnErr: func(e error) {
						if terminated.Load() || cancelled.Load() {
							return
						}
						if n >= k {
							if terminated.CompareAndSwap(false, true) {
								obs.err(e)
							}
							return
						}
						DefaultEmitter.Emit(context.Background(), SignalRetryAttempt,
							KeyAttempt.Field(n+1), KeyLimit.Field(k))
						attempt(n + 1)
					},
					OnDone: func() {
						if terminated.CompareAndSwap(false, true) {
							obs.done()
						}
					},
				})
				composite.Add(current)
			}

			attempt(0)
			return composite.AsSubscription()
		})
	}
}
