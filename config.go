package pulse

import "github.com/zoobzio/clockz"

// Config collects the cross-cutting knobs shared by the temporal operators
// and the scheduling substrate: which clock drives delays, and how many
// workers a default Pool should start with.
//
// Config is built with functional options, the same style the dependency
// pack uses for its own per-component configuration (flux.Option).
type Config struct {
	clock    clockz.Clock
	poolSize int
	emit     Emitter
}

// Option configures a Config.
type Option func(*Config)

// WithClock overrides the clock used for delays. Production code defaults
// to clockz.RealClock; tests substitute clockz.NewFakeClock() to make
// debounce/throttle/timeout/timer/interval deterministic.
func WithClock(c clockz.Clock) Option {
	return func(cfg *Config) { cfg.clock = c }
}

// WithPoolSize sets the worker count for a default Pool executor. A
// requested size of 0 still yields a single worker.
func WithPoolSize(n int) Option {
	return func(cfg *Config) { cfg.poolSize = n }
}

// WithEmitter overrides where structured lifecycle signals are sent. Tests
// that want to assert on emitted signals install their own Emitter instead
// of the default capitan-backed DefaultEmitter.
func WithEmitter(e Emitter) Option {
	return func(cfg *Config) { cfg.emit = e }
}

// NewConfig builds a Config from options, defaulting to the real clock, a
// single-worker pool, and the capitan-backed emitter.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		clock:    clockz.RealClock,
		poolSize: 1,
		emit:     DefaultEmitter,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Clock returns the configured clock, defaulting to clockz.RealClock.
func (c *Config) Clock() clockz.Clock {
	if c == nil || c.clock == nil {
		return clockz.RealClock
	}
	return c.clock
}

// PoolSize returns the configured default pool size, treating 0 as 1.
func (c *Config) PoolSize() int {
	if c == nil || c.poolSize <= 0 {
		return 1
	}
	return c.poolSize
}

// Emitter returns the configured signal emitter, defaulting to DefaultEmitter.
func (c *Config) Emitter() Emitter {
	if c == nil || c.emit == nil {
		return DefaultEmitter
	}
	return c.emit
}

// DefaultConfig is used by constructors that accept no explicit Config.
var DefaultConfig = NewConfig()
