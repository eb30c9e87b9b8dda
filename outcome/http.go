package outcome

import "net/http"

// HTTPStatus maps an outcome kind to the status code embedding HTTP services
// should respond with.
func HTTPStatus(k Kind) int {
	switch k {
	case KindSuccess:
		return http.StatusOK
	case KindTimeout:
		return http.StatusRequestTimeout
	case KindConnectionLost:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns a user-facing message for the kind. Timeout and
// ConnectionLost get distinct messages because their recovery differs: a
// timeout may be retried, a lost connection needs the session restored.
func Message(k Kind) string {
	switch k {
	case KindSuccess:
		return "operation completed"
	case KindTimeout:
		return "the operation did not finish in time; its result is unknown, check before retrying"
	case KindConnectionLost:
		return "the connection to the server was lost; reconnect and try again"
	default:
		return "the operation failed"
	}
}
