// Package server exposes a guarded record store over HTTP.
//
// Every mutating and reading request runs through the coordinator with a
// per-route deadline, keyed by the record id, and its outcome is mapped to
// an HTTP status: 200 success, 404 missing record, 408 timeout, 503 lost
// connection, 500 other failures.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jonwraymond/opguard/connguard"
	"github.com/jonwraymond/opguard/coordinator"
	"github.com/jonwraymond/opguard/observe"
	"github.com/jonwraymond/opguard/outcome"
)

// Deadlines are the per-route response-time budgets.
type Deadlines struct {
	Get    time.Duration
	Put    time.Duration
	Delete time.Duration
}

// DefaultDeadlines returns the default route budgets.
func DefaultDeadlines() Deadlines {
	return Deadlines{
		Get:    3 * time.Second,
		Put:    5 * time.Second,
		Delete: 2 * time.Second,
	}
}

// Option configures a Server.
type Option func(*Server)

// WithDeadlines overrides the route budgets. Zero fields keep defaults.
func WithDeadlines(d Deadlines) Option {
	return func(s *Server) {
		if d.Get > 0 {
			s.deadlines.Get = d.Get
		}
		if d.Put > 0 {
			s.deadlines.Put = d.Put
		}
		if d.Delete > 0 {
			s.deadlines.Delete = d.Delete
		}
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(l observe.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// Server serves the records API.
type Server struct {
	coord     *coordinator.Coordinator
	store     Store
	deadlines Deadlines
	metrics   http.Handler
	logger    observe.Logger
}

// New creates a Server that runs store calls through coord.
func New(coord *coordinator.Coordinator, store Store, opts ...Option) *Server {
	s := &Server{
		coord:     coord,
		store:     store,
		deadlines: DefaultDeadlines(),
		logger:    observe.NopRecorder().Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deadlines returns the route budgets in use.
func (s *Server) Deadlines() Deadlines {
	return s.deadlines
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /records/{id}", s.handleGet)
	mux.HandleFunc("PUT /records/{id}", s.handlePut)
	mux.HandleFunc("DELETE /records/{id}", s.handleDelete)
	connguard.RegisterHandlers(mux, s.coord.Guard())
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := coordinator.WithOperation(r.Context(), "get_record")

	out := coordinator.Execute(ctx, s.coord, id, s.deadlines.Get, func(ctx context.Context) (Record, error) {
		return s.store.Get(ctx, id)
	})
	s.writeOutcome(ctx, w, out.Kind(), out.Err(), func() any {
		v, _ := out.Value()
		return v
	})
}

// putRequest is the body of PUT /records/{id}.
type putRequest struct {
	Data map[string]any `json:"data"`
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := coordinator.WithOperation(r.Context(), "put_record")

	var req putRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Outcome: "rejected", Error: "invalid JSON body"})
		return
	}

	out := coordinator.Execute(ctx, s.coord, id, s.deadlines.Put, func(ctx context.Context) (Record, error) {
		return s.store.Put(ctx, id, req.Data)
	})
	s.writeOutcome(ctx, w, out.Kind(), out.Err(), func() any {
		v, _ := out.Value()
		return v
	})
}

// DeleteResponse is the body of a successful DELETE.
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := coordinator.WithOperation(r.Context(), "delete_record")

	out := coordinator.Execute(ctx, s.coord, id, s.deadlines.Delete, func(ctx context.Context) (bool, error) {
		if err := s.store.Delete(ctx, id); err != nil {
			return false, err
		}
		return true, nil
	})
	s.writeOutcome(ctx, w, out.Kind(), out.Err(), func() any {
		return DeleteResponse{ID: id, Deleted: true}
	})
}

// ErrorResponse is the JSON body for every non-success response.
type ErrorResponse struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error"`
}

// StatusFor maps an outcome to an HTTP status. Failures caused by a missing
// record are 404.
func StatusFor(kind outcome.Kind, err error) int {
	if kind == outcome.KindFailure && errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return outcome.HTTPStatus(kind)
}

func (s *Server) writeOutcome(ctx context.Context, w http.ResponseWriter, kind outcome.Kind, err error, body func() any) {
	status := StatusFor(kind, err)
	if kind == outcome.KindSuccess {
		writeJSON(w, status, body())
		return
	}

	resp := ErrorResponse{Outcome: kind.String(), Error: outcome.Message(kind)}
	switch {
	case status == http.StatusNotFound:
		resp.Error = "record not found"
	case kind == outcome.KindFailure && errors.Is(err, coordinator.ErrInvalidKey):
		status = http.StatusBadRequest
		resp.Error = "record id is required"
	case kind == outcome.KindFailure:
		s.logger.Error(ctx, "request failed", observe.Err(err))
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
