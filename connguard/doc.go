// Package connguard tracks whether an external dependency is reachable and
// decides whether a guarded operation may start.
//
// A Guard owns the single cached connection State for a dependency. It is
// updated by bounded probes, by reconnect attempts and by callers reporting
// a failed attempt with MarkDisconnected.
//
// # Probes
//
// A Probe answers two questions: is the dependency reachable, and can the
// connection be re-established. Probes never return errors; an unreachable
// dependency is simply not reachable. The package ships:
//
//   - HTTPProbe: HEAD request against a URL, any status below 500 counts
//   - DialProbe: TCP (or any net) dial
//   - SessionProbe: a signed JWT session that is alive while it verifies
//   - ProbeFuncs and AlwaysReachable for tests and embedding
//
// # Budgets
//
// Probe never blocks longer than min(ProbeTimeout, deadline*ProbeBudget) for
// the caller's deadline. Concurrent probes share one in-flight check, and
// concurrent reconnects share one attempt.
//
// # Usage
//
//	guard := connguard.New(connguard.NewHTTPProbe("http://db:8080/ping", nil), connguard.Config{})
//	if guard.Probe(ctx, 2*time.Second) != connguard.StateConnected {
//	    return connguard.ErrNotConnected
//	}
package connguard
