package coordinator

import "errors"

// Sentinel errors for coordinated execution.
var (
	// ErrInvalidKey is reported as a Failure when the resource key is empty.
	ErrInvalidKey = errors.New("coordinator: invalid resource key")
)
