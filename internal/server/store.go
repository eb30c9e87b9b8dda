package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/jonwraymond/opguard/outcome"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("server: record not found")

// Record is one stored document.
type Record struct {
	ID        string         `json:"id"`
	Data      map[string]any `json:"data"`
	Version   int            `json:"version"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store is the remote repository the server guards.
type Store interface {
	Get(ctx context.Context, id string) (Record, error)
	Put(ctx context.Context, id string, data map[string]any) (Record, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-memory Store that behaves like a remote one: calls
// can be slowed down, and the store can be taken offline.
type MemoryStore struct {
	clock   clock.Clock
	latency atomic.Int64
	offline atomic.Bool

	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryStore{
		clock:   clk,
		records: make(map[string]Record),
	}
}

// SetLatency makes every call take at least d, unless its context ends.
func (s *MemoryStore) SetLatency(d time.Duration) {
	s.latency.Store(int64(d))
}

// SetOffline makes calls fail with a connection loss.
func (s *MemoryStore) SetOffline(offline bool) {
	s.offline.Store(offline)
}

// Online reports whether the store accepts calls. It matches the shape of
// a reachability probe.
func (s *MemoryStore) Online(context.Context) bool {
	return !s.offline.Load()
}

// Get returns the record with id.
func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	if err := s.roundTrip(ctx); err != nil {
		return Record{}, err
	}

	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()

	if !ok {
		return Record{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return rec, nil
}

// Put creates or replaces the record with id.
func (s *MemoryStore) Put(ctx context.Context, id string, data map[string]any) (Record, error) {
	if err := s.roundTrip(ctx); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{
		ID:        id,
		Data:      data,
		Version:   s.records[id].Version + 1,
		UpdatedAt: s.clock.Now().UTC(),
	}
	s.records[id] = rec
	return rec, nil
}

// Delete removes the record with id.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := s.roundTrip(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	delete(s.records, id)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// roundTrip simulates the network leg of a call.
func (s *MemoryStore) roundTrip(ctx context.Context) error {
	if s.offline.Load() {
		return fmt.Errorf("store: %w", outcome.ErrConnectionLost)
	}

	if d := time.Duration(s.latency.Load()); d > 0 {
		timer := s.clock.Timer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if s.offline.Load() {
		return fmt.Errorf("store: %w", outcome.ErrConnectionLost)
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
