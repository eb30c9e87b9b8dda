// Package coordinator is the entry point for guarded operations.
//
// Execute runs a state-changing operation against an external dependency so
// that it:
//
//   - only starts while the dependency is reachable
//   - returns within its deadline plus a small scheduling overhead
//   - reports exactly one outcome.Outcome
//   - never overlaps another operation on the same resource key
//
// Per call the coordinator moves through
//
//	Idle -> KeyReserved -> ConnectionChecked -> Executing
//	     -> {Completed | TimedOut | ConnectionLost} -> KeyReleased
//
// Operations on one key are admitted in arrival order. Operations on
// different keys are unordered, bounded only by the worker pool.
//
// # Timeouts
//
// A Timeout is a reporting decision. The operation's context is cancelled,
// but an operation that ignores it may still finish and change state later.
// Until it does, its key stays reserved, so no later operation on the same
// key can overlap it. Such late completions are reported through the
// recorder and WithLateCompletion; they are never reconciled with the
// caller that was told Timeout.
//
// # Connection loss
//
// If the dependency is unreachable before the operation starts, the call
// returns ConnectionLost without invoking it. If the operation itself
// reports connection loss, the coordinator makes one reconnect attempt and
// still returns ConnectionLost; it never replays the operation.
//
// # Usage
//
//	c := coordinator.New(guard, coordinator.WithWorkers(4))
//
//	out := coordinator.Execute(ctx, c, "B1", 2*time.Second, func(ctx context.Context) (bool, error) {
//	    return repo.RemoveBookmark(ctx, "B1")
//	})
//	switch out.Kind() {
//	case outcome.KindTimeout:
//	    // final state unknown, do not retry blindly
//	case outcome.KindConnectionLost:
//	    // reconnect or re-authenticate, then retry
//	}
package coordinator
