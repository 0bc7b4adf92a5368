package pulse

import (
	"context"

	"github.com/zoobzio/capitan"
)

// Structured lifecycle signals emitted across the module. Every component
// that transitions state — executors, topics, hubs, ref-counted upstreams,
// backpressure policies — reports through one of these rather than logging
// ad hoc strings, mirroring the signal/field split the dependency pack uses
// for its own capacitor lifecycle.
var (
	SignalExecutorStarted  = capitan.NewSignal("pulse.executor.started", "an executor began accepting work")
	SignalExecutorStopped  = capitan.NewSignal("pulse.executor.stopped", "an executor drained its queue and stopped")
	SignalTopicSubscribed  = capitan.NewSignal("pulse.topic.subscribed", "a node was inserted into a topic")
	SignalTopicUnsubscribe = capitan.NewSignal("pulse.topic.unsubscribed", "a node was disabled and later collected")
	SignalHubStarted       = capitan.NewSignal("pulse.hub.started", "a connectable hub subscribed its upstream")
	SignalHubStopped       = capitan.NewSignal("pulse.hub.stopped", "a connectable hub tore down its upstream")
	SignalHubErrored       = capitan.NewSignal("pulse.hub.errored", "a connectable hub latched an upstream error")
	SignalHubCompleted     = capitan.NewSignal("pulse.hub.completed", "a connectable hub latched upstream completion")
	SignalRefCountChanged  = capitan.NewSignal("pulse.refcount.changed", "a ref-counted hub's subscriber count transitioned")
	SignalRefCountGrace    = capitan.NewSignal("pulse.refcount.grace_armed", "a grace-period teardown timer was armed")
	SignalBackpressureDrop = capitan.NewSignal("pulse.backpressure.dropped", "a value was dropped by a backpressure policy")
	SignalRetryAttempt     = capitan.NewSignal("pulse.retry.attempt", "retry re-subscribed after an upstream error")
)

// Field keys used alongside the signals above.
var (
	KeyExecutorKind = capitan.NewStringKey("executor_kind")
	KeyWorkerCount  = capitan.NewIntKey("worker_count")
	KeyPriority     = capitan.NewIntKey("priority")
	KeyNodeID       = capitan.NewIntKey("node_id")
	KeyError        = capitan.NewStringKey("error")
	KeyRefCount     = capitan.NewIntKey("ref_count")
	KeyGeneration   = capitan.NewIntKey("generation")
	KeyGrace        = capitan.NewDurationKey("grace")
	KeyAttempt      = capitan.NewIntKey("attempt")
	KeyLimit        = capitan.NewIntKey("limit")
)

// Emitter is the narrow surface this module needs from capitan, kept as an
// interface so tests can install a recording fake instead of the real
// emission pipeline.
type Emitter interface {
	Emit(ctx context.Context, signal capitan.Signal, fields ...capitan.Field)
}

// capitanEmitter forwards to capitan.Emit directly.
type capitanEmitter struct{}

func (capitanEmitter) Emit(ctx context.Context, signal capitan.Signal, fields ...capitan.Field) {
	capitan.Emit(ctx, signal, fields...)
}

// noopEmitter discards everything. It is not a default anywhere: NewConfig
// and the package-level constructors use DefaultEmitter.
type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, capitan.Signal, ...capitan.Field) {}

// DefaultEmitter is shared by components constructed without an explicit
// Config (e.g. via plain package-level constructors).
var DefaultEmitter Emitter = capitanEmitter{}
