package outcome

import (
	"errors"
	"fmt"
	"time"
)

// Kind identifies which variant an Outcome holds.
type Kind int

const (
	// KindSuccess means the operation returned a value.
	KindSuccess Kind = iota
	// KindTimeout means the deadline elapsed before the operation finished.
	KindTimeout
	// KindConnectionLost means the external dependency was unavailable.
	KindConnectionLost
	// KindFailure means the operation returned a domain error.
	KindFailure
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTimeout:
		return "timeout"
	case KindConnectionLost:
		return "connection_lost"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is the immutable result of one guarded execution.
//
// The zero value is not a valid outcome; use the constructors.
type Outcome[T any] struct {
	kind    Kind
	value   T
	err     error
	elapsed time.Duration
	started bool
}

// Success creates a successful outcome holding v.
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{kind: KindSuccess, value: v, started: true}
}

// Timeout creates a timeout outcome.
func Timeout[T any]() Outcome[T] {
	return Outcome[T]{kind: KindTimeout}
}

// ConnectionLost creates a connection-lost outcome. cause may be nil.
func ConnectionLost[T any](cause error) Outcome[T] {
	return Outcome[T]{kind: KindConnectionLost, err: cause}
}

// Failure creates a failure outcome for err.
func Failure[T any](err error) Outcome[T] {
	if err == nil {
		err = errors.New("outcome: failure without error")
	}
	return Outcome[T]{kind: KindFailure, err: err}
}

// FromResult classifies the return values of an operation that completed.
// Errors wrapping ErrConnectionLost become ConnectionLost, any other error
// becomes Failure.
func FromResult[T any](v T, err error) Outcome[T] {
	switch {
	case err == nil:
		return Success(v)
	case errors.Is(err, ErrConnectionLost):
		return ConnectionLost[T](err).WithStarted(true)
	default:
		return Failure[T](err).WithStarted(true)
	}
}

// Kind returns the variant of the outcome.
func (o Outcome[T]) Kind() Kind {
	return o.kind
}

// Value returns the result value and true for Success outcomes.
func (o Outcome[T]) Value() (T, bool) {
	if o.kind != KindSuccess {
		var zero T
		return zero, false
	}
	return o.value, true
}

// Err returns the error view of the outcome: nil for Success, ErrTimeout for
// Timeout, an error wrapping ErrConnectionLost for ConnectionLost, and the
// operation's error for Failure.
func (o Outcome[T]) Err() error {
	switch o.kind {
	case KindSuccess:
		return nil
	case KindTimeout:
		return ErrTimeout
	case KindConnectionLost:
		switch {
		case o.err == nil:
			return ErrConnectionLost
		case errors.Is(o.err, ErrConnectionLost):
			return o.err
		default:
			return fmt.Errorf("%w: %w", ErrConnectionLost, o.err)
		}
	default:
		return o.err
	}
}

// Result returns the value and error views together.
func (o Outcome[T]) Result() (T, error) {
	v, _ := o.Value()
	return v, o.Err()
}

// Elapsed is the wall-clock time between the start of the guarded call and
// the moment the outcome was produced.
func (o Outcome[T]) Elapsed() time.Duration {
	return o.elapsed
}

// Started reports whether the wrapped operation was invoked. A Timeout with
// Started false means the deadline elapsed while waiting for admission and
// the operation had no side effects.
func (o Outcome[T]) Started() bool {
	return o.started
}

// IsSuccess reports whether the outcome is a Success.
func (o Outcome[T]) IsSuccess() bool {
	return o.kind == KindSuccess
}

// WithElapsed returns a copy of the outcome with the elapsed time set.
func (o Outcome[T]) WithElapsed(d time.Duration) Outcome[T] {
	o.elapsed = d
	return o
}

// WithStarted returns a copy of the outcome with the started flag set.
func (o Outcome[T]) WithStarted(started bool) Outcome[T] {
	o.started = started
	return o
}

// String returns a short description, e.g. "success" or "failure: not found".
func (o Outcome[T]) String() string {
	if o.kind == KindSuccess || o.kind == KindTimeout || o.err == nil {
		return o.kind.String()
	}
	return o.kind.String() + ": " + o.err.Error()
}
