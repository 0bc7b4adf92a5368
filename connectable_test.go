package pulse

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

type probeSource struct {
	mu           sync.Mutex
	subscribes   int
	unsubscribes int
}

func (p *probeSource) Observable() Observable[int] {
	return Create(func(obs Observer[int]) Subscription {
		p.mu.Lock()
		p.subscribes++
		p.mu.Unlock()
		return NewSubscription(func() {
			p.mu.Lock()
			p.unsubscribes++
			p.mu.Unlock()
		})
	})
}

func (p *probeSource) counts() (subs, unsubs int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribes, p.unsubscribes
}

func TestConnectableDoesNotStartUntilConnect(t *testing.T) {
	probe := &probeSource{}
	c := Publish(probe.Observable())

	c.Observable().Subscribe(Observer[int]{})

	if subs, _ := probe.counts(); subs != 0 {
		t.Fatal("expected Observable() subscription alone not to start the upstream")
	}

	c.Connect()
	if subs, _ := probe.counts(); subs != 1 {
		t.Fatalf("expected Connect to start the upstream exactly once, got %d", subs)
	}
}

func TestConnectableConnectIsIdempotent(t *testing.T) {
	probe := &probeSource{}
	c := Publish(probe.Observable())

	c.Connect()
	c.Connect()
	c.Connect()

	if subs, _ := probe.counts(); subs != 1 {
		t.Fatalf("expected repeated Connect calls to be idempotent, got %d subscribes", subs)
	}
}

func TestRefCountStartsAndStopsWithSubscriberCount(t *testing.T) {
	probe := &probeSource{}
	shared := RefCount(Publish(probe.Observable()))

	sub1 := shared.Subscribe(Observer[int]{})
	sub2 := shared.Subscribe(Observer[int]{})

	if subs, _ := probe.counts(); subs != 1 {
		t.Fatalf("expected exactly one upstream subscribe while refcount >= 1, got %d", subs)
	}

	sub1.Reset()
	if _, unsubs := probe.counts(); unsubs != 0 {
		t.Fatal("expected upstream to remain subscribed while refcount is still 1")
	}

	sub2.Reset()
	if _, unsubs := probe.counts(); unsubs != 1 {
		t.Fatal("expected upstream to be torn down once refcount reaches 0")
	}
}

func TestRefCountGraceReusesUpstreamWithinWindow(t *testing.T) {
	clock := clockz.NewFakeClock()
	probe := &probeSource{}
	shared := ShareGrace(probe.Observable(), 120*time.Millisecond, clock)

	sub1 := shared.Subscribe(Observer[int]{})
	clock.Advance(40 * time.Millisecond)
	clock.BlockUntilReady()

	sub1.Reset()
	clock.Advance(60 * time.Millisecond)
	clock.BlockUntilReady()
	time.Sleep(10 * time.Millisecond)

	sub2 := shared.Subscribe(Observer[int]{})
	if subs, _ := probe.counts(); subs != 1 {
		t.Fatalf("expected the upstream to be reused within the grace window, got %d subscribes", subs)
	}

	sub2.Reset()
	clock.Advance(200 * time.Millisecond)
	clock.BlockUntilReady()
	time.Sleep(10 * time.Millisecond)

	if _, unsubs := probe.counts(); unsubs != 1 {
		t.Fatalf("expected the upstream to be torn down once the grace window elapses with no subscriber, got %d unsubscribes", unsubs)
	}
}

func TestShareLateSubscriberAfterErrorGetsWrappedError(t *testing.T) {
	boom := errors.New("boom")
	src := Create(func(obs Observer[int]) Subscription {
		obs.err(boom)
		return EmptySubscription()
	})

	shared := Share(src)
	shared.Subscribe(Observer[int]{}) // starts upstream, latches the error

	var gotErr error
	shared.Subscribe(Observer[int]{OnErr: func(e error) { gotErr = e }})

	if gotErr == nil || !errors.Is(gotErr, ErrSharedSourceErrored) {
		t.Fatalf("expected a late subscriber to receive ErrSharedSourceErrored, got %v", gotErr)
	}
}
