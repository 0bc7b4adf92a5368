package pulse

import "sync"

// pushSource is a test-only Observable whose values are pushed explicitly
// by the test rather than produced by a fixed subscribe function, letting
// temporal/higher-order operator tests interleave pushes with fake-clock
// advances.
type pushSource[T any] struct {
	mu  sync.Mutex
	obs *Observer[T]
}

func (p *pushSource[T]) Observable() Observable[T] {
	return Create(func(obs Observer[T]) Subscription {
		p.mu.Lock()
		p.obs = &obs
		p.mu.Unlock()
		return NewSubscription(func() {
			p.mu.Lock()
			p.obs = nil
			p.mu.Unlock()
		})
	})
}

func (p *pushSource[T]) Next(v T) {
	p.mu.Lock()
	o := p.obs
	p.mu.Unlock()
	if o != nil {
		o.next(v)
	}
}

func (p *pushSource[T]) Err(e error) {
	p.mu.Lock()
	o := p.obs
	p.mu.Unlock()
	if o != nil {
		o.err(e)
	}
}

func (p *pushSource[T]) Done() {
	p.mu.Lock()
	o := p.obs
	p.mu.Unlock()
	if o != nil {
		o.done()
	}
}
