package resilience

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/opguard/observe"
	"github.com/jonwraymond/opguard/outcome"
)

// overhead is the scheduling margin allowed past a deadline in tests. It is
// generous so that loaded CI machines do not flake.
const overhead = 100 * time.Millisecond

func sleepOp[T any](d time.Duration, v T) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		time.Sleep(d)
		return v, nil
	}
}

func TestNewTimedExecutor_Defaults(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{})

	cfg := e.Config()
	if cfg.DefaultDeadline != 30*time.Second {
		t.Errorf("DefaultDeadline = %v, want 30s", cfg.DefaultDeadline)
	}
	if cfg.WarnFraction != 0.8 {
		t.Errorf("WarnFraction = %v, want 0.8", cfg.WarnFraction)
	}
	if e.Pool().Workers() != 1 {
		t.Errorf("Pool().Workers() = %d, want 1", e.Pool().Workers())
	}
	if e.Clock() == nil {
		t.Error("Clock() is nil")
	}
}

func TestRun_Success(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{})

	out := Run(context.Background(), e, time.Second, sleepOp(10*time.Millisecond, true))

	if out.Kind() != outcome.KindSuccess {
		t.Fatalf("Kind() = %v, want success", out.Kind())
	}
	if v, _ := out.Value(); !v {
		t.Errorf("Value() = %v, want true", v)
	}
	if !out.Started() {
		t.Error("Started() = false, want true")
	}
	if out.Elapsed() < 10*time.Millisecond {
		t.Errorf("Elapsed() = %v, want >= 10ms", out.Elapsed())
	}
}

func TestRun_Failure(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{})
	notFound := errors.New("NotFound")

	out := Run(context.Background(), e, time.Second, func(ctx context.Context) (bool, error) {
		return false, notFound
	})

	if out.Kind() != outcome.KindFailure {
		t.Fatalf("Kind() = %v, want failure", out.Kind())
	}
	if !errors.Is(out.Err(), notFound) {
		t.Errorf("Err() = %v, want %v", out.Err(), notFound)
	}
}

func TestRun_ConnectionLostFromOperation(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{})

	out := Run(context.Background(), e, time.Second, func(ctx context.Context) (int, error) {
		return 0, fmt.Errorf("fetch position: %w", outcome.ErrConnectionLost)
	})

	if out.Kind() != outcome.KindConnectionLost {
		t.Errorf("Kind() = %v, want connection_lost", out.Kind())
	}
}

func TestRun_TimeoutWithinBound(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{})
	deadline := 50 * time.Millisecond

	start := time.Now()
	out := Run(context.Background(), e, deadline, sleepOp(500*time.Millisecond, true))
	elapsed := time.Since(start)

	if out.Kind() != outcome.KindTimeout {
		t.Fatalf("Kind() = %v, want timeout", out.Kind())
	}
	if !out.Started() {
		t.Error("Started() = false, want true")
	}
	if elapsed > deadline+overhead {
		t.Errorf("elapsed = %v, want <= %v", elapsed, deadline+overhead)
	}
	if elapsed < deadline {
		t.Errorf("elapsed = %v, returned before the deadline", elapsed)
	}
}

func TestRun_CooperativeCancellation(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{})
	observed := make(chan error, 1)

	out := Run(context.Background(), e, 20*time.Millisecond, func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		observed <- ctx.Err()
		return false, ctx.Err()
	})

	if out.Kind() != outcome.KindTimeout {
		t.Fatalf("Kind() = %v, want timeout", out.Kind())
	}

	select {
	case err := <-observed:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("operation saw %v, want DeadlineExceeded", err)
		}
	case <-time.After(time.Second):
		t.Error("operation never observed cancellation")
	}
}

func TestRun_CooperativeReturnIsAlwaysTimeout(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{})
	op := func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	kinds := make(map[outcome.Kind]int)
	for i := 0; i < 2000; i++ {
		out := Run(context.Background(), e, 100*time.Microsecond, op)
		kinds[out.Kind()]++
		if out.Kind() == outcome.KindTimeout && !out.Started() {
			t.Fatalf("run %d: Started() = false, want true", i)
		}
	}

	if kinds[outcome.KindTimeout] != 2000 {
		t.Errorf("kinds = %v, want 2000 timeouts", kinds)
	}
}

func TestRun_ForeignDeadlineIsFailure(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{})

	out := Run(context.Background(), e, time.Second, func(ctx context.Context) (int, error) {
		return 0, fmt.Errorf("downstream: %w", context.DeadlineExceeded)
	})

	if out.Kind() != outcome.KindFailure {
		t.Errorf("Kind() = %v, want failure", out.Kind())
	}
}

func TestExecute_LateCompletion(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{Pool: NewPool(PoolConfig{Workers: 1})})

	var sideEffects int32
	late := make(chan error, 1)

	out, done := Execute(context.Background(), e, Call[bool]{
		Deadline: 20 * time.Millisecond,
		Op: func(ctx context.Context) (bool, error) {
			time.Sleep(80 * time.Millisecond)
			atomic.AddInt32(&sideEffects, 1)
			return true, nil
		},
		OnLate: func(err error) { late <- err },
	})

	if out.Kind() != outcome.KindTimeout {
		t.Fatalf("Kind() = %v, want timeout", out.Kind())
	}

	select {
	case <-done:
		t.Fatal("done closed before the abandoned operation returned")
	default:
	}
	if m := e.Pool().Metrics(); m.Active != 1 {
		t.Errorf("Active = %d, want the abandoned worker to keep its slot", m.Active)
	}

	select {
	case err := <-late:
		if err != nil {
			t.Errorf("late error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnLate was not called")
	}
	<-done

	if atomic.LoadInt32(&sideEffects) != 1 {
		t.Errorf("side effects = %d, want 1 (timeout does not undo work)", sideEffects)
	}
}

func TestExecute_DoneClosedOnSuccess(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{})

	out, done := Execute(context.Background(), e, Call[int]{
		Deadline: time.Second,
		Op:       sleepOp(0, 1),
	})
	if !out.IsSuccess() {
		t.Fatalf("Kind() = %v, want success", out.Kind())
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("done not closed after success")
	}
}

func TestExecute_StartCountsAgainstBudget(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{})
	start := time.Now().Add(-80 * time.Millisecond)

	out, _ := Execute(context.Background(), e, Call[int]{
		Deadline: 100 * time.Millisecond,
		Start:    start,
		Op:       sleepOp(60*time.Millisecond, 1),
	})

	if out.Kind() != outcome.KindTimeout {
		t.Errorf("Kind() = %v, want timeout when earlier waiting used the budget", out.Kind())
	}
}

func TestExecute_PoolWaitTimesOutWithoutStarting(t *testing.T) {
	pool := NewPool(PoolConfig{Workers: 1})
	e := NewTimedExecutor(TimedExecutorConfig{Pool: pool})

	if err := pool.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer pool.Release()

	var invoked int32
	out, done := Execute(context.Background(), e, Call[int]{
		Deadline: 30 * time.Millisecond,
		Op: func(ctx context.Context) (int, error) {
			atomic.AddInt32(&invoked, 1)
			return 1, nil
		},
	})

	if out.Kind() != outcome.KindTimeout {
		t.Fatalf("Kind() = %v, want timeout", out.Kind())
	}
	if out.Started() {
		t.Error("Started() = true, want false")
	}
	if atomic.LoadInt32(&invoked) != 0 {
		t.Error("operation ran although no worker was free")
	}
	select {
	case <-done:
	default:
		t.Error("done must be closed when the operation never started")
	}
}

func TestRun_CallerCancellation(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{})
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	out := Run(ctx, e, time.Second, sleepOp(200*time.Millisecond, 0))

	if out.Kind() != outcome.KindFailure {
		t.Fatalf("Kind() = %v, want failure", out.Kind())
	}
	if !errors.Is(out.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled", out.Err())
	}
}

func TestRun_Panic(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{})

	out, done := Execute(context.Background(), e, Call[int]{
		Deadline: time.Second,
		Op: func(ctx context.Context) (int, error) {
			panic("boom")
		},
	})
	<-done

	if out.Kind() != outcome.KindFailure {
		t.Fatalf("Kind() = %v, want failure", out.Kind())
	}
	if !errors.Is(out.Err(), outcome.ErrPanic) {
		t.Errorf("Err() = %v, want ErrPanic", out.Err())
	}
	if e.Pool().Metrics().Active != 0 {
		t.Error("worker slot leaked after panic")
	}
}

func TestRun_NilOperation(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{})

	out := Run[int](context.Background(), e, time.Second, nil)

	if !errors.Is(out.Err(), ErrNilOperation) {
		t.Errorf("Err() = %v, want ErrNilOperation", out.Err())
	}
}

func TestRun_DefaultDeadline(t *testing.T) {
	e := NewTimedExecutor(TimedExecutorConfig{DefaultDeadline: 20 * time.Millisecond})

	out := Run(context.Background(), e, 0, sleepOp(200*time.Millisecond, 0))

	if out.Kind() != outcome.KindTimeout {
		t.Errorf("Kind() = %v, want timeout from default deadline", out.Kind())
	}
}

func TestRun_WarnsWhenCloseToDeadline(t *testing.T) {
	var buf bytes.Buffer
	e := NewTimedExecutor(TimedExecutorConfig{
		WarnFraction: 0.5,
		Logger:       observe.NewLoggerWithWriter("warn", &buf),
	})

	out := Run(context.Background(), e, 100*time.Millisecond, sleepOp(70*time.Millisecond, 0))
	if !out.IsSuccess() {
		t.Fatalf("Kind() = %v, want success", out.Kind())
	}
	if !strings.Contains(buf.String(), "close to its deadline") {
		t.Errorf("expected slow-run warning, got %q", buf.String())
	}
}
