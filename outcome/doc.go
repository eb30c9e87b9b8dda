// Package outcome defines the tagged result of a guarded execution.
//
// Every guarded call produces exactly one Outcome. The four kinds are
// mutually exclusive and callers are expected to branch on Kind rather than
// inspect error types:
//
//   - Success: the operation returned a value within its deadline.
//   - Timeout: the deadline elapsed first. The final state of the operation
//     is unknown; it may still complete after the caller has moved on.
//   - ConnectionLost: the external dependency was unreachable before the
//     operation started, or the operation reported losing it mid-flight.
//   - Failure: the operation itself reported a domain error.
//
// # Usage
//
//	out := coordinator.Execute(ctx, c, "record:42", 2*time.Second, deleteRecord)
//	switch out.Kind() {
//	case outcome.KindSuccess:
//	    v, _ := out.Value()
//	    render(v)
//	case outcome.KindTimeout, outcome.KindConnectionLost:
//	    http.Error(w, outcome.Message(out.Kind()), outcome.HTTPStatus(out.Kind()))
//	default:
//	    log.Printf("failed: %v", out.Err())
//	}
//
// Operations signal a mid-flight connection loss by returning an error that
// wraps ErrConnectionLost.
package outcome
