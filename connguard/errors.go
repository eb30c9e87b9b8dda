package connguard

import "errors"

// Sentinel errors for connection guarding.
var (
	// ErrNotConnected is reported when the dependency is unreachable at the
	// time an operation would start.
	ErrNotConnected = errors.New("connguard: not connected")

	// ErrNilProbe is returned by Validate when a guard has no probe.
	ErrNilProbe = errors.New("connguard: probe is nil")

	// ErrNoRenewer is returned when a session cannot be renewed.
	ErrNoRenewer = errors.New("connguard: no session renewer")

	// ErrSessionInvalid is returned when a session token does not verify.
	ErrSessionInvalid = errors.New("connguard: session invalid")
)
