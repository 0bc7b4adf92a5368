package pulse

// Observer is the triple of callbacks a subscriber supplies. Any field may
// be nil; a nil callback is simply not invoked.
type Observer[T any] struct {
	OnNext func(T)
	OnErr  func(error)
	OnDone func()
}

func (o Observer[T]) next(v T) {
	if o.OnNext != nil {
		o.OnNext(v)
	}
}

func (o Observer[T]) err(e error) {
	if o.OnErr != nil {
		o.OnErr(e)
	}
}

func (o Observer[T]) done() {
	if o.OnDone != nil {
		o.OnDone()
	}
}

// Observable is a cold, subscribable push source: subscribing runs the
// wrapped subscribe function, which is expected to produce a fresh stream
// of notifications for that specific subscriber and return a Subscription
// that stops them.
type Observable[T any] struct {
	subscribe func(Observer[T]) Subscription
}

// Create builds an Observable from a subscribe function. This is the
// primitive every operator and adapter in this module is built from.
func Create[T any](subscribe func(Observer[T]) Subscription) Observable[T] {
	return Observable[T]{subscribe: subscribe}
}

// Subscribe runs the observable's subscribe function against obs.
func (o Observable[T]) Subscribe(obs Observer[T]) Subscription {
	if o.subscribe == nil {
		return EmptySubscription()
	}
	return o.subscribe(obs)
}

// Pipe applies a sequence of operators left to right: Pipe(src, A, B) is
// equivalent to B(A(src)). It is this module's stand-in for the source
// library's `source | operator` composition sugar, since Go has no
// operator overloading.
func Pipe[T any](src Observable[T], ops ...func(Observable[T]) Observable[T]) Observable[T] {
	cur := src
	for _, op := range ops {
		cur = op(cur)
	}
	return cur
}

// Pipe2 composes a single type-changing operator after Pipe has produced
// a same-typed chain — used when a pipeline changes element type partway
// through (e.g. Map to a different type, or SwitchMap into inner
// observables of a different element type).
func Pipe2[T, U any](src Observable[T], op func(Observable[T]) Observable[U]) Observable[U] {
	return op(src)
}
