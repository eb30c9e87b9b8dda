package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/jonwraymond/opguard/outcome"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential doubles the delay each attempt with jitter.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// RetryConfig configures a caller-side retry policy over outcomes. Zero
// fields take the defaults noted below.
type RetryConfig struct {
	MaxAttempts  int           // including the first; default 3
	InitialDelay time.Duration // default 100ms
	MaxDelay     time.Duration // default 30s
	Multiplier   float64       // exponential growth; default 2
	Strategy     BackoffStrategy
	Jitter       bool // adds up to 25% to each delay

	// RetryTimeouts allows Timeout outcomes to be retried. Only set it when
	// the operation is idempotent: a timed-out operation may have completed.
	RetryTimeouts bool

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, kind outcome.Kind, delay time.Duration)

	// Clock drives the backoff sleeps. Default: the wall clock
	Clock clock.Clock
}

// Retry re-runs guarded calls whose outcome is retryable. ConnectionLost is
// always retryable, Timeout only when RetryTimeouts is set, Failure never.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry policy.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}

	return &Retry{config: config}
}

// Retryable reports whether an outcome of kind k may be retried.
func (r *Retry) Retryable(k outcome.Kind) bool {
	switch k {
	case outcome.KindConnectionLost:
		return true
	case outcome.KindTimeout:
		return r.config.RetryTimeouts
	default:
		return false
	}
}

// Do runs fn until it produces a non-retryable outcome, attempts are
// exhausted, or ctx is done. The last outcome is returned.
func Do[T any](ctx context.Context, r *Retry, fn func(context.Context) outcome.Outcome[T]) outcome.Outcome[T] {
	var last outcome.Outcome[T]

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		last = fn(ctx)

		if !r.Retryable(last.Kind()) || attempt >= r.config.MaxAttempts {
			return last
		}

		delay := r.calculateDelay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, last.Kind(), delay)
		}

		timer := r.config.Clock.Timer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last
		case <-timer.C:
		}
	}

	return last
}

func (r *Retry) calculateDelay(attempt int) time.Duration {
	delay := r.config.InitialDelay
	switch r.config.Strategy {
	case BackoffLinear:
		delay *= time.Duration(attempt)
	case BackoffExponential:
		delay = time.Duration(float64(delay) * math.Pow(r.config.Multiplier, float64(attempt-1)))
	}
	delay = min(delay, r.config.MaxDelay)

	if r.config.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
