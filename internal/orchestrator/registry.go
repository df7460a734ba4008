package orchestrator

import (
	"sync"
	"time"
)

// ActiveValidation is the read-only view of one in-flight request.
type ActiveValidation struct {
	RequestID          string
	RequiredValidators int
	ExpiresAt          time.Time
}

type entry struct {
	required  int
	expiresAt time.Time
	timer     *time.Timer
}

// Registry is the orchestrator-owned index of in-flight validations and
// their expiry timers. All mutation goes through these guarded methods;
// external readers only get snapshots. Cancelling a timer is advisory:
// a fired timer still funnels through the store's guarded transition, so
// a lost race is a no-op, never a double resolution.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Schedule tracks a pending request and arms its one-shot expiry. An
// existing entry for the same id is replaced and its timer stopped.
func (r *Registry) Schedule(requestID string, required int, expiresAt time.Time, fire func()) {
	d := time.Until(expiresAt)
	if d < 0 {
		d = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.entries[requestID]; ok && old.timer != nil {
		old.timer.Stop()
	}
	r.entries[requestID] = &entry{
		required:  required,
		expiresAt: expiresAt,
		timer:     time.AfterFunc(d, fire),
	}
}

// Remove drops a request from the active set and stops its timer.
// Returns false when the id was not tracked.
func (r *Registry) Remove(requestID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[requestID]
	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(r.entries, requestID)
	return true
}

// Get returns the active view of one request.
func (r *Registry) Get(requestID string) (ActiveValidation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[requestID]
	if !ok {
		return ActiveValidation{}, false
	}
	return ActiveValidation{
		RequestID:          requestID,
		RequiredValidators: e.required,
		ExpiresAt:          e.expiresAt,
	}, true
}

// Len returns how many requests are in flight.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns a copy of the whole active set.
func (r *Registry) Snapshot() []ActiveValidation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActiveValidation, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, ActiveValidation{
			RequestID:          id,
			RequiredValidators: e.required,
			ExpiresAt:          e.expiresAt,
		})
	}
	return out
}

// Close stops every timer and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(r.entries, id)
	}
}
