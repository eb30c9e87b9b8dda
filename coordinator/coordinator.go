package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/jonwraymond/opguard/connguard"
	"github.com/jonwraymond/opguard/observe"
	"github.com/jonwraymond/opguard/outcome"
	"github.com/jonwraymond/opguard/resilience"
)

// Coordinator sequences guard checks, timed execution and per-key
// serialization for guarded operations.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: none are returned; every call yields exactly one Outcome.
type Coordinator struct {
	guard    *connguard.Guard
	exec     *resilience.TimedExecutor
	registry *Registry
	recorder *observe.Recorder
	clock    clock.Clock

	defaultDeadline time.Duration
	connectionLoss  func(error) bool
	onLate          func(key string, err error)
}

// New creates a Coordinator guarded by guard. A nil guard treats the
// dependency as always reachable.
func New(guard *connguard.Guard, opts ...Option) *Coordinator {
	o := options{
		workers:         1,
		defaultDeadline: 5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.recorder == nil {
		o.recorder = observe.NewRecorder(nil, nil, o.logger)
	}
	if o.defaultDeadline <= 0 {
		o.defaultDeadline = 5 * time.Second
	}
	if guard == nil {
		guard = connguard.New(connguard.AlwaysReachable(), connguard.Config{
			Clock:    o.clock,
			Recorder: o.recorder,
		})
	}

	exec := resilience.NewTimedExecutor(resilience.TimedExecutorConfig{
		Pool:            resilience.NewPool(resilience.PoolConfig{Workers: o.workers}),
		Clock:           o.clock,
		DefaultDeadline: o.defaultDeadline,
		WarnFraction:    o.warnFraction,
		Logger:          o.recorder.Logger(),
	})

	return &Coordinator{
		guard:           guard,
		exec:            exec,
		registry:        NewRegistry(),
		recorder:        o.recorder,
		clock:           o.clock,
		defaultDeadline: o.defaultDeadline,
		connectionLoss:  o.connectionLoss,
		onLate:          o.onLate,
	}
}

// Guard returns the coordinator's connection guard.
func (c *Coordinator) Guard() *connguard.Guard {
	return c.guard
}

// InFlight returns the number of resource keys with a running or waiting
// operation.
func (c *Coordinator) InFlight() int {
	return c.registry.Len()
}

// Pool returns worker pool statistics.
func (c *Coordinator) Pool() resilience.PoolMetrics {
	return c.exec.Pool().Metrics()
}

// DefaultDeadline returns the deadline applied to calls without one.
func (c *Coordinator) DefaultDeadline() time.Duration {
	return c.defaultDeadline
}

type operationKey struct{}

// WithOperation names the operation carried out under ctx. The name appears
// on spans, metrics and log lines.
func WithOperation(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationKey{}, name)
}

func operationFrom(ctx context.Context) string {
	name, _ := ctx.Value(operationKey{}).(string)
	return name
}

// Execute runs op on key under deadline and returns its outcome. The whole
// call, including waiting for earlier operations on key and for a free
// worker, counts against deadline. A non-positive deadline uses the
// coordinator's default.
func Execute[T any](ctx context.Context, c *Coordinator, key string, deadline time.Duration, op func(context.Context) (T, error)) outcome.Outcome[T] {
	start := c.clock.Now()
	if deadline <= 0 {
		deadline = c.defaultDeadline
	}

	meta := observe.OpMeta{
		Key:         key,
		ExecutionID: uuid.NewString(),
		Operation:   operationFrom(ctx),
	}
	ctx, span := c.recorder.Start(ctx, meta)

	out := execute(ctx, c, meta, start, deadline, op).WithElapsed(c.clock.Since(start))

	c.recorder.Finish(ctx, span, meta, out.Kind().String(), out.Elapsed(), out.Err())
	return out
}

func execute[T any](ctx context.Context, c *Coordinator, meta observe.OpMeta, start time.Time, deadline time.Duration, op func(context.Context) (T, error)) outcome.Outcome[T] {
	if meta.Key == "" {
		return outcome.Failure[T](ErrInvalidKey)
	}
	if op == nil {
		return outcome.Failure[T](resilience.ErrNilOperation)
	}

	callCtx, cancel := c.clock.WithDeadline(ctx, start.Add(deadline))
	defer cancel()

	// Idle -> KeyReserved
	ticket, err := c.registry.Acquire(callCtx, meta.Key)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return outcome.Timeout[T]()
		}
		return outcome.Failure[T](err)
	}

	// KeyReserved -> ConnectionChecked
	if c.guard.Probe(callCtx, deadline) != connguard.StateConnected {
		ticket.Release()
		switch err := callCtx.Err(); {
		case errors.Is(err, context.DeadlineExceeded):
			return outcome.Timeout[T]()
		case err != nil:
			return outcome.Failure[T](err)
		}
		return outcome.ConnectionLost[T](connguard.ErrNotConnected)
	}

	// ConnectionChecked -> Executing
	out, done := resilience.Execute(ctx, c.exec, resilience.Call[T]{
		Op:       op,
		Deadline: deadline,
		Start:    start,
		OnLate: func(err error) {
			c.lateCompletion(ctx, meta, err)
		},
	})

	// Executing -> KeyReleased. A timed-out operation that is still running
	// keeps the key until it returns.
	select {
	case <-done:
		ticket.Release()
	default:
		go func() {
			<-done
			ticket.Release()
		}()
	}

	if c.lostConnection(out.Kind(), out.Err()) {
		c.guard.MarkDisconnected(ctx, out.Err())
		reconnected := c.guard.Reconnect(callCtx)
		c.recorder.Logger().Warn(ctx, "connection lost mid-flight",
			append(meta.Fields(), observe.Bool("reconnected", reconnected))...)
		if out.Kind() != outcome.KindConnectionLost {
			out = outcome.ConnectionLost[T](out.Err()).WithStarted(true)
		}
	}

	return out
}

// lostConnection reports whether the operation itself discovered that the
// dependency went away.
func (c *Coordinator) lostConnection(kind outcome.Kind, err error) bool {
	switch kind {
	case outcome.KindConnectionLost:
		return true
	case outcome.KindFailure:
		return c.connectionLoss != nil && c.connectionLoss(err)
	default:
		return false
	}
}

func (c *Coordinator) lateCompletion(ctx context.Context, meta observe.OpMeta, err error) {
	c.recorder.LateCompletion(context.WithoutCancel(ctx), meta, err)
	if c.onLate != nil {
		c.onLate(meta.Key, err)
	}
}
