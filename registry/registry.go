// Package registry implements mudpuppy's session registry: it assigns
// monotonic SessionIDs, owns the map of live sessions, and tracks
// which one is focused for timer/GMCP/matcher hints. Scripts never
// hold a session, only its ids.SessionID, so a reload can't leave a
// dangling reference.
//
// It generalizes a single-Session Session.New/Run, which assumed
// exactly one session per process, into a table keyed by ids.SessionID.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mudpuppy/mudpuppy/ids"
)

// Session is the subset of *session.Session the registry needs to know
// about. Defined here (rather than imported from package session) to
// avoid a registry<->session import cycle: *session.Session satisfies
// it structurally, and neither package imports the other.
type Session interface {
	ID() ids.SessionID
	Close() error
}

// NotFoundError reports a lookup against a SessionID the registry
// doesn't (or no longer) know about.
type NotFoundError struct {
	ID ids.SessionID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %d: not found", e.ID)
}

// Registry is the process-wide session table (shared mutable state
// alongside the bus). Only ever touched from the executor
// goroutine in normal operation; the mutex exists so a debug monitor or
// the TUI can enumerate sessions from elsewhere.
type Registry struct {
	mu      sync.Mutex
	nextID  ids.SessionID
	entries map[ids.SessionID]Session
	order   []ids.SessionID // preserves creation order for Sessions()
	focused ids.SessionID
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[ids.SessionID]Session)}
}

// NextID reserves and returns the next monotonic SessionID without
// registering anything. Callers construct their Session with this ID
// before calling Add, since the session itself usually needs to know
// its own ID during construction (e.g. to tag bus events).
func (r *Registry) NextID() ids.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}

// Add registers s under s.ID(). If this is the first session added, it
// becomes focused automatically.
func (r *Registry) Add(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := s.ID()
	r.entries[id] = s
	r.order = append(r.order, id)
	if r.focused == ids.NoSession {
		r.focused = id
	}
}

// Get returns the session for id, or a *NotFoundError.
func (r *Registry) Get(id ids.SessionID) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.entries[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return s, nil
}

// Sessions returns every live session in creation order.
func (r *Registry) Sessions() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Session, 0, len(r.order))
	for _, id := range r.order {
		if s, ok := r.entries[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// IDs returns every live SessionID, sorted ascending.
func (r *Registry) IDs() []ids.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ids.SessionID, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close closes the session (disconnect-then-teardown), removes
// it from the registry, and reassigns focus if it was the focused one.
func (r *Registry) Close(id ids.SessionID) error {
	r.mu.Lock()
	s, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return &NotFoundError{ID: id}
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	wasFocused := r.focused == id
	if wasFocused {
		if len(r.order) > 0 {
			r.focused = r.order[len(r.order)-1]
		} else {
			r.focused = ids.NoSession
		}
	}
	r.mu.Unlock()
	return s.Close()
}

// Active returns the currently focused SessionID, or ids.NoSession if
// there are no live sessions.
func (r *Registry) Active() ids.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focused
}

// SetActive changes the focused session. Returns *NotFoundError if id
// isn't registered.
func (r *Registry) SetActive(id ids.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return &NotFoundError{ID: id}
	}
	r.focused = id
	return nil
}

// Len returns the number of live sessions (debug/stats use).
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
