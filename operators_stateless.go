package pulse

import "sync/atomic"

// Map transforms every value with f; errors and completion pass through
// untouched.
func Map[T, U any](f func(T) U) func(Observable[T]) Observable[U] {
	return func(src Observable[T]) Observable[U] {
		return Create(func(obs Observer[U]) Subscription {
			return src.Subscribe(Observer[T]{
				OnNext: func(v T) { obs.next(f(v)) },
				OnErr:  obs.err,
				OnDone: obs.done,
			})
		})
	}
}

// Filter drops values for which p returns false.
func Filter[T any](p func(T) bool) func(Observable[T]) Observable[T] {
	return func(src Observable[T]) Observable[T] {
		return Create(func(obs Observer[T]) Subscription {
			return src.Subscribe(Observer[T]{
				OnNext: func(v T) {
					if p(v) {
						obs.next(v)
					}
				},
				OnErr:  obs.err,
				OnDone: obs.done,
			})
		})
	}
}

// StartWith synchronously emits seed to the new subscriber before
// subscribing to upstream, so seed is always the first value observed.
func StartWith[T any](seed T) func(Observable[T]) Observable[T] {
	return func(src Observable[T]) Observable[T] {
		return Create(func(obs Observer[T]) Subscription {
			obs.next(seed)
			return src.Subscribe(obs)
		})
	}
}

// DistinctUntilChanged suppresses a value equal to the immediately
// preceding delivered value.
func DistinctUntilChanged[T comparable]() func(Observable[T]) Observable[T] {
	return func(src Observable[T]) Observable[T] {
		return Create(func(obs Observer[T]) Subscription {
			var (
				have bool
				prev T
			)
			return src.Subscribe(Observer[T]{
				OnNext: func(v T) {
					if have && v == prev {
						return
					}
					have = true
					prev = v
					obs.next(v)
				},
				OnErr:  obs.err,
				OnDone: obs.done,
			})
		})
	}
}

// Take forwards the first n values then completes and cancels upstream.
// n == 0 completes immediately without ever subscribing upstream.
func Take[T any](n int) func(Observable[T]) Observable[T] {
	return func(src Observable[T]) Observable[T] {
		return Create(func(obs Observer[T]) Subscription {
			if n <= 0 {
				obs.done()
				return EmptySubscription()
			}

			remaining := int64(n)
			var upstream Subscription

			upstream = src.Subscribe(Observer[T]{
				OnNext: func(v T) {
					left := atomic.AddInt64(&remaining, -1)
					if left < 0 {
						return
					}
					obs.next(v)
					if left == 0 {
						upstream.Reset()
						obs.done()
					}
				},
				OnErr: func(e error) {
					if atomic.LoadInt64(&remaining) > 0 {
						obs.err(e)
					}
				},
				OnDone: func() {
					if atomic.LoadInt64(&remaining) > 0 {
						obs.done()
					}
				},
			})
			return upstream
		})
	}
}
