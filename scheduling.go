package pulse

import "sync/atomic"

// ObserveOn forwards every callback through exec.Post instead of letting
// it run synchronously inside whatever goroutine upstream delivered it
// on. A liveness flag is checked both before posting and again inside the
// posted task, since cancellation can land in the window between the two.
func ObserveOn[T any](exec Executor) func(Observable[T]) Observable[T] {
	return func(src Observable[T]) Observable[T] {
		return Create(func(obs Observer[T]) Subscription {
			alive := &atomic.Bool{}
			alive.Store(true)

			upstream := src.Subscribe(Observer[T]{
				OnNext: func(v T) {
					if !alive.Load() {
						return
					}
					exec.Post(func() {
						if alive.Load() {
							obs.next(v)
						}
					})
				},
				OnErr: func(e error) {
					if !alive.Load() {
						return
					}
					exec.Post(func() {
						if alive.Load() {
							obs.err(e)
						}
					})
				},
				OnDone: func() {
					if !alive.Load() {
						return
					}
					exec.Post(func() {
						if alive.Load() {
							obs.done()
						}
					})
				},
			})

			return NewSubscription(func() {
				alive.Store(false)
				upstream.Reset()
			})
		})
	}
}

// SubscribeOn posts the act of subscribing to upstream onto exec, rather
// than running the subscribe function inline. Downstream cancellation
// takes effect immediately even if the posted subscribe task has not run
// yet: the cancel action that races it simply prevents the subscription
// it would have produced from ever being retained.
func SubscribeOn[T any](exec Executor) func(Observable[T]) Observable[T] {
	return func(src Observable[T]) Observable[T] {
		return Create(func(obs Observer[T]) Subscription {
			composite := &CompositeSubscription{}
			alive := &atomic.Bool{}
			alive.Store(true)
			composite.Add(NewSubscription(func() { alive.Store(false) }))
			exec.Post(func() {
				sub := src.Subscribe(Observer[T]{
					OnNext: func(v T) {
						if alive.Load() {
							obs.next(v)
						}
					},
					OnErr: func(e error) {
						if alive.Load() {
							obs.err(e)
						}
					},
					OnDone: func() {
						if alive.Load() {
							obs.done()
						}
					},
				})
				composite.Add(sub)
			})
			return composite.AsSubscription()
		})
	}
}
