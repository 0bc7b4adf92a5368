package pulse

import (
	"context"
	"sort"
)

// Priority orders Topic subscribers: higher values are dispatched first.
type Priority int

type topicNode[T any] struct {
	id      int
	order   int
	prio    Priority
	exec    Executor
	handler func(T)
	accept  accepter
	publish publisher[T]
	enabled bool
}

// Topic is an ordered multicast bus. Subscribers are dispatched in
// (priority DESC, insertion-order ASC) order. Topic is not safe for
// concurrent Subscribe/Publish calls from multiple goroutines; callers
// must serialize externally, matching the upstream library's own
// contract. Per-subscriber delivery is always FIFO.
type Topic[T any] struct {
	nodes  []*topicNode[T]
	nextID int
	order  int
	emit   Emitter
}

// NewTopic constructs an empty Topic using the ambient DefaultEmitter.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{emit: DefaultEmitter}
}

// Subscribe installs handler at the given priority, gated by policy
// (either an accepter or a publisher[T]), dispatched through exec. The
// returned Subscription disables the node; disabled nodes are collected
// on the next Publish.
func (t *Topic[T]) Subscribe(ctx context.Context, exec Executor, prio Priority, policy any, handler func(T)) Subscription {
	n := &topicNode[T]{
		id:      t.nextID,
		order:   t.order,
		prio:    prio,
		exec:    exec,
		handler: handler,
		enabled: true,
	}
	t.nextID++
	t.order++

	switch p := policy.(type) {
	case publisher[T]:
		n.publish = p
	case accepter:
		n.accept = p
	default:
		n.accept = NonePolicy{}
	}

	t.nodes = append(t.nodes, n)
	sort.SliceStable(t.nodes, func(i, j int) bool {
		if t.nodes[i].prio != t.nodes[j].prio {
			return t.nodes[i].prio > t.nodes[j].prio
		}
		return t.nodes[i].order < t.nodes[j].order
	})

	t.emit.Emit(ctx, SignalTopicSubscribed, KeyPriority.Field(int(prio)), KeyNodeID.Field(n.id))

	id := n.id
	return NewSubscription(func() {
		for _, node := range t.nodes {
			if node.id == id {
				node.enabled = false
				return
			}
		}
	})
}

// Publish dispatches v to every enabled subscriber in priority order, then
// collects any nodes disabled since the previous Publish.
func (t *Topic[T]) Publish(ctx context.Context, v T) {
	for _, n := range t.nodes {
		if !n.enabled {
			continue
		}
		switch {
		case n.publish != nil:
			n.publish.Publish(ctx, v, n.exec, n.handler)
		case n.accept != nil:
			if n.accept.Accept() {
				handler := n.handler
				val := v
				n.exec.Post(func() { handler(val) })
			}
		}
	}
	t.collect(ctx)
}

func (t *Topic[T]) collect(ctx context.Context) {
	live := t.nodes[:0]
	for _, n := range t.nodes {
		if n.enabled {
			live = append(live, n)
		} else {
			t.emit.Emit(ctx, SignalTopicUnsubscribe, KeyNodeID.Field(n.id))
		}
	}
	t.nodes = live
}
