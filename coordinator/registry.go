package coordinator

import (
	"context"
	"sync"
)

// Registry admits at most one holder per resource key at a time, in
// arrival order.
//
// Each key maps to a chain of tickets. A ticket is admitted once its
// predecessor is released, so waiting is a channel receive rather than a
// poll. There is at most one map entry per key, removed when the last
// ticket for the key is released.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	tail    chan struct{} // closed when the newest ticket is released
	tickets int           // admitted and waiting tickets
}

// Ticket is the right to run on one key. Release it exactly once; extra
// calls are ignored.
type Ticket struct {
	reg  *Registry
	key  string
	done chan struct{}
	once sync.Once
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Acquire waits until every earlier ticket for key has been released and
// returns a ticket for the caller. If ctx ends first, it returns ctx's
// error; the abandoned place in line is passed on to the next waiter once
// the predecessor finishes, so later callers keep their order.
func (r *Registry) Acquire(ctx context.Context, key string) (*Ticket, error) {
	t := &Ticket{reg: r, key: key, done: make(chan struct{})}

	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	prev := e.tail
	e.tail = t.done
	e.tickets++
	r.mu.Unlock()

	if prev == nil {
		return t, nil
	}

	select {
	case <-prev:
		return t, nil
	default:
	}

	select {
	case <-prev:
		return t, nil
	case <-ctx.Done():
		go func() {
			<-prev
			t.Release()
		}()
		return nil, ctx.Err()
	}
}

// Release frees the ticket's key for the next waiter.
func (t *Ticket) Release() {
	t.once.Do(func() {
		close(t.done)

		r := t.reg
		r.mu.Lock()
		defer r.mu.Unlock()

		e := r.entries[t.key]
		e.tickets--
		if e.tickets == 0 {
			delete(r.entries, t.key)
		}
	})
}

// Key returns the resource key the ticket holds.
func (t *Ticket) Key() string {
	return t.key
}

// Len returns the number of keys with an admitted or waiting ticket.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Pending returns the number of admitted and waiting tickets for key.
func (r *Registry) Pending(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return e.tickets
	}
	return 0
}
