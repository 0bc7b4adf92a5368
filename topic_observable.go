package pulse

import "context"

// AsObservable exposes a Topic as a subscribable Observable: each
// subscription installs a priority-0, None-backpressure node whose
// handler forwards straight to OnNext; unsubscribing removes that node.
// Topics are endless, so the returned Observable never delivers OnDone or
// OnErr — only cancellation ever ends a subscriber's stream.
func AsObservable[T any](topic *Topic[T], exec Executor) Observable[T] {
	return Create(func(obs Observer[T]) Subscription {
		return topic.Subscribe(context.Background(), exec, 0, NonePolicy{}, obs.next)
	})
}
