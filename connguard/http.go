package connguard

import (
	"encoding/json"
	"net/http"
	"time"
)

// readinessDeadline is the nominal deadline readiness probes are budgeted
// against.
const readinessDeadline = 5 * time.Second

// LivenessHandler returns an HTTP handler for liveness probes.
// This is a simple check that the service is running.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// StateResponse is the JSON response for the readiness endpoint.
type StateResponse struct {
	Status    string `json:"status"`
	Since     string `json:"since"`
	Timestamp string `json:"timestamp"`
}

// ReadinessHandler returns an HTTP handler that probes the guard's
// dependency. It answers 200 when connected and 503 otherwise.
func ReadinessHandler(g *Guard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := g.Probe(r.Context(), readinessDeadline)

		response := StateResponse{
			Status:    state.String(),
			Since:     g.LastChange().UTC().Format(time.RFC3339),
			Timestamp: g.config.Clock.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		if state == StateConnected {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		_ = json.NewEncoder(w).Encode(response)
	}
}

// RegisterHandlers registers the liveness and readiness handlers on mux.
func RegisterHandlers(mux *http.ServeMux, g *Guard) {
	mux.HandleFunc("/healthz", LivenessHandler())
	mux.HandleFunc("/readyz", ReadinessHandler(g))
}
