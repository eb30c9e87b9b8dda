package connguard

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/opguard/observe"
)

// Config configures a Guard.
type Config struct {
	// ProbeTimeout caps a single reachability check.
	// Default: 250ms
	ProbeTimeout time.Duration

	// ProbeBudget is the largest share of a caller's deadline a probe may use.
	// A caller over budget sees StateDisconnected without changing State.
	// Default: 0.1
	ProbeBudget float64

	// ReconnectTimeout caps a single reconnect attempt.
	// Default: 2s
	ReconnectTimeout time.Duration

	// Clock derives probe and reconnect deadlines.
	// Default: the wall clock
	Clock clock.Clock

	// Recorder receives state transitions.
	// Default: discard
	Recorder *observe.Recorder

	// OnStateChange is called after every state transition.
	OnStateChange func(from, to State)
}

// Guard owns the connection state of one dependency.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: none; Probe and Reconnect report through State and bool.
type Guard struct {
	probe  Probe
	config Config
	group  singleflight.Group

	mu         sync.Mutex
	state      State
	lastChange time.Time
}

// New creates a Guard for probe.
func New(probe Probe, config Config) *Guard {
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 250 * time.Millisecond
	}
	if config.ProbeBudget <= 0 || config.ProbeBudget > 1 {
		config.ProbeBudget = 0.1
	}
	if config.ReconnectTimeout <= 0 {
		config.ReconnectTimeout = 2 * time.Second
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Recorder == nil {
		config.Recorder = observe.NopRecorder()
	}
	if probe == nil {
		probe = ProbeFuncs{}
	}

	return &Guard{
		probe:      probe,
		config:     config,
		lastChange: config.Clock.Now(),
	}
}

// Config returns the guard configuration.
func (g *Guard) Config() Config {
	return g.config
}

// State returns the cached connection state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// LastChange returns when the state last changed.
func (g *Guard) LastChange() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastChange
}

// Budget returns how long a probe may take for a caller with deadline.
func (g *Guard) Budget(deadline time.Duration) time.Duration {
	budget := time.Duration(float64(deadline) * g.config.ProbeBudget)
	if deadline <= 0 || budget > g.config.ProbeTimeout {
		budget = g.config.ProbeTimeout
	}
	return budget
}

// Probe checks reachability within the caller's probe budget and returns
// the resulting state. A check that does not answer in time reports
// StateDisconnected to that caller only; the cached state is written by the
// shared check when it finishes.
func (g *Guard) Probe(ctx context.Context, deadline time.Duration) State {
	ctx, cancel := g.config.Clock.WithTimeout(ctx, g.Budget(deadline))
	defer cancel()

	// The shared check outlives any single caller's budget, bounded by
	// ProbeTimeout, so that a short-budget caller does not cancel it for
	// everyone else.
	ch := g.group.DoChan("probe", func() (any, error) {
		pctx, pcancel := g.config.Clock.WithTimeout(context.WithoutCancel(ctx), g.config.ProbeTimeout)
		defer pcancel()

		reachable := safely(func() bool { return g.probe.IsReachable(pctx) })
		if pctx.Err() != nil {
			reachable = false
		}
		g.set(pctx, stateOf(reachable))
		return reachable, nil
	})

	select {
	case res := <-ch:
		return stateOf(res.Val.(bool))
	case <-ctx.Done():
		g.config.Recorder.Logger().Debug(ctx, "probe exceeded its budget",
			observe.Duration("budget", g.Budget(deadline)))
		return StateDisconnected
	}
}

// Reconnect makes one attempt to restore connectivity and reports success.
// Concurrent callers share the same attempt. The attempt runs for at most
// ReconnectTimeout; a caller whose ctx ends first gets false.
func (g *Guard) Reconnect(ctx context.Context) bool {
	ch := g.group.DoChan("reconnect", func() (any, error) {
		rctx, cancel := g.config.Clock.WithTimeout(context.WithoutCancel(ctx), g.config.ReconnectTimeout)
		defer cancel()

		ok := safely(func() bool { return g.probe.Reconnect(rctx) })
		if rctx.Err() != nil {
			ok = false
		}
		g.set(rctx, stateOf(ok))
		return ok, nil
	})

	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		return false
	}
}

// MarkDisconnected records a failed attempt against the dependency.
func (g *Guard) MarkDisconnected(ctx context.Context, cause error) {
	if cause != nil {
		g.config.Recorder.Logger().Warn(ctx, "dependency reported unreachable", observe.Err(cause))
	}
	g.set(ctx, StateDisconnected)
}

func (g *Guard) set(ctx context.Context, next State) {
	g.mu.Lock()
	prev := g.state
	if prev == next {
		g.mu.Unlock()
		return
	}
	g.state = next
	g.lastChange = g.config.Clock.Now()
	g.mu.Unlock()

	g.config.Recorder.Transition(ctx, prev.String(), next.String())
	if g.config.OnStateChange != nil {
		g.config.OnStateChange(prev, next)
	}
}

// safely runs a probe call, treating a panic as unreachable.
func safely(fn func() bool) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return fn()
}
