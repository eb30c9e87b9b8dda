package coordinator

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/jonwraymond/opguard/observe"
)

type options struct {
	workers         int
	defaultDeadline time.Duration
	warnFraction    float64
	clock           clock.Clock
	recorder        *observe.Recorder
	logger          observe.Logger
	connectionLoss  func(error) bool
	onLate          func(key string, err error)
}

// Option configures a Coordinator.
type Option func(*options)

// WithWorkers sets how many operations may run at once across all keys.
// Default: 1, which serializes every operation in admission order.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithDefaultDeadline sets the deadline used when Execute is given a
// non-positive one. Default: 5s.
func WithDefaultDeadline(d time.Duration) Option {
	return func(o *options) {
		o.defaultDeadline = d
	}
}

// WithWarnFraction sets the share of the deadline above which a completed
// operation is logged as slow. Default: 0.8.
func WithWarnFraction(f float64) Option {
	return func(o *options) {
		o.warnFraction = f
	}
}

// WithClock sets the clock used for deadlines and elapsed times.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithRecorder reports every execution to r.
func WithRecorder(r *observe.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithLogger logs executions to l without tracing or metrics. It is
// ignored when WithRecorder is also given.
func WithLogger(l observe.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithConnectionLoss classifies operation errors that mean the dependency
// went away mid-flight, in addition to errors wrapping
// outcome.ErrConnectionLost.
func WithConnectionLoss(fn func(error) bool) Option {
	return func(o *options) {
		o.connectionLoss = fn
	}
}

// WithLateCompletion is called when an operation returns after its caller
// was already given a Timeout.
func WithLateCompletion(fn func(key string, err error)) Option {
	return func(o *options) {
		o.onLate = fn
	}
}
