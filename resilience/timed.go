package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/jonwraymond/opguard/observe"
	"github.com/jonwraymond/opguard/outcome"
)

// TimedExecutorConfig configures the timed executor.
type TimedExecutorConfig struct {
	// Pool supplies worker slots.
	// Default: a single-worker pool
	Pool *Pool

	// Clock measures elapsed time and derives deadlines.
	// Default: the wall clock
	Clock clock.Clock

	// DefaultDeadline applies when a call passes a non-positive deadline.
	// Default: 30 seconds
	DefaultDeadline time.Duration

	// WarnFraction is the share of the deadline above which a completed run
	// is logged as slow.
	// Default: 0.8
	WarnFraction float64

	// Logger receives slow-run and late-completion warnings.
	// Default: discard
	Logger observe.Logger
}

// TimedExecutor runs operations with a hard response-time budget.
type TimedExecutor struct {
	config TimedExecutorConfig
}

// NewTimedExecutor creates a new timed executor.
func NewTimedExecutor(config TimedExecutorConfig) *TimedExecutor {
	if config.Pool == nil {
		config.Pool = NewPool(PoolConfig{})
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.DefaultDeadline <= 0 {
		config.DefaultDeadline = 30 * time.Second
	}
	if config.WarnFraction <= 0 || config.WarnFraction > 1 {
		config.WarnFraction = 0.8
	}
	if config.Logger == nil {
		config.Logger = observe.NopRecorder().Logger()
	}

	return &TimedExecutor{config: config}
}

// Config returns the executor configuration.
func (e *TimedExecutor) Config() TimedExecutorConfig {
	return e.config
}

// Pool returns the executor's worker pool.
func (e *TimedExecutor) Pool() *Pool {
	return e.config.Pool
}

// Clock returns the executor's clock.
func (e *TimedExecutor) Clock() clock.Clock {
	return e.config.Clock
}

// Call describes one timed run.
type Call[T any] struct {
	// Op is the guarded operation. Its context is cancelled when the
	// deadline elapses.
	Op func(context.Context) (T, error)

	// Deadline is the budget measured from Start.
	Deadline time.Duration

	// Start is the instant the budget counts from. Zero means now; callers
	// that already spent part of the budget (waiting for admission) pass
	// their own start so the bound covers the whole call.
	Start time.Time

	// OnLate is invoked with the operation's error when it returns after the
	// caller was already given a Timeout.
	OnLate func(err error)
}

type result[T any] struct {
	value T
	err   error
}

// Run executes op under deadline and returns its outcome.
func Run[T any](ctx context.Context, e *TimedExecutor, deadline time.Duration, op func(context.Context) (T, error)) outcome.Outcome[T] {
	out, _ := Execute(ctx, e, Call[T]{Op: op, Deadline: deadline})
	return out
}

// Execute runs the call and returns its outcome together with a channel that
// is closed once the operation has actually returned. After a Timeout the
// channel closes later, when the abandoned operation finally exits; if the
// operation never started it is already closed.
func Execute[T any](ctx context.Context, e *TimedExecutor, call Call[T]) (outcome.Outcome[T], <-chan struct{}) {
	clk := e.config.Clock
	start := call.Start
	if start.IsZero() {
		start = clk.Now()
	}
	deadline := call.Deadline
	if deadline <= 0 {
		deadline = e.config.DefaultDeadline
	}

	done := make(chan struct{})
	stamp := func(out outcome.Outcome[T]) outcome.Outcome[T] {
		return out.WithElapsed(clk.Since(start))
	}

	if call.Op == nil {
		close(done)
		return stamp(outcome.Failure[T](ErrNilOperation)), done
	}

	runCtx, cancel := clk.WithDeadline(ctx, start.Add(deadline))

	if err := e.config.Pool.Acquire(runCtx); err != nil {
		cancel()
		close(done)
		return stamp(interrupted[T](runCtx, false)), done
	}

	var (
		mu        sync.Mutex
		abandoned bool
	)
	resultCh := make(chan result[T], 1)

	go func() {
		defer close(done)
		defer e.config.Pool.Release()
		defer cancel()

		v, err := invoke(runCtx, call.Op)

		mu.Lock()
		late := abandoned
		if !late {
			resultCh <- result[T]{value: v, err: err}
		}
		mu.Unlock()

		if late && call.OnLate != nil {
			call.OnLate(err)
		}
	}()

	select {
	case res := <-resultCh:
		out := stamp(completed(runCtx, res))
		e.warnIfSlow(ctx, out.Elapsed(), deadline)
		return out, done
	case <-runCtx.Done():
	}

	mu.Lock()
	select {
	case res := <-resultCh:
		// finished in the same instant the deadline fired
		mu.Unlock()
		return stamp(completed(runCtx, res)), done
	default:
		abandoned = true
	}
	mu.Unlock()

	// Cooperative only: the operation sees ctx.Done but may keep running.
	cancel()
	return stamp(interrupted[T](runCtx, true)), done
}

// completed classifies a returned operation. An operation that gave up
// because its own deadline fired is a Timeout, whichever side of the race
// was observed first.
func completed[T any](runCtx context.Context, res result[T]) outcome.Outcome[T] {
	if errors.Is(res.err, context.DeadlineExceeded) && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return outcome.Timeout[T]().WithStarted(true)
	}
	return outcome.FromResult(res.value, res.err)
}

// interrupted maps a finished context to an outcome: a deadline becomes
// Timeout, a caller cancellation becomes Failure.
func interrupted[T any](ctx context.Context, started bool) outcome.Outcome[T] {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return outcome.Timeout[T]().WithStarted(started)
	}
	return outcome.Failure[T](ctx.Err()).WithStarted(started)
}

func invoke[T any](ctx context.Context, op func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", outcome.ErrPanic, r)
		}
	}()
	return op(ctx)
}

func (e *TimedExecutor) warnIfSlow(ctx context.Context, elapsed, deadline time.Duration) {
	budget := time.Duration(float64(deadline) * e.config.WarnFraction)
	if elapsed <= budget {
		return
	}
	e.config.Logger.Warn(ctx, "operation close to its deadline",
		observe.Duration("elapsed", elapsed),
		observe.Duration("deadline", deadline),
	)
}
