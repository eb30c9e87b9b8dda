package outcome

import "errors"

// Sentinel errors reported through Outcome.Err.
var (
	// ErrTimeout is returned by Err for Timeout outcomes.
	ErrTimeout = errors.New("outcome: operation timed out")

	// ErrConnectionLost is wrapped by Err for ConnectionLost outcomes.
	// Operations return an error wrapping it to report that the external
	// dependency vanished while they were running.
	ErrConnectionLost = errors.New("outcome: connection lost")

	// ErrPanic is wrapped by Err when the operation panicked.
	ErrPanic = errors.New("outcome: operation panicked")
)
