package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrNilOperation is reported as a Failure when no operation is supplied.
	ErrNilOperation = errors.New("resilience: operation is nil")
)
