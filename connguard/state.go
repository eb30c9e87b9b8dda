package connguard

// State is the cached reachability of a dependency.
type State int

const (
	// StateUnknown means no probe has completed yet.
	StateUnknown State = iota
	// StateConnected means the last probe or reconnect succeeded.
	StateConnected
	// StateDisconnected means the last probe, reconnect or attempt failed.
	StateDisconnected
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "invalid"
	}
}

func stateOf(reachable bool) State {
	if reachable {
		return StateConnected
	}
	return StateDisconnected
}
