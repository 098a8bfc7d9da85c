package bridge

import (
	"sort"

	"github.com/google/uuid"
)

// registry maps device identifiers to their current session. It is owned
// by the control goroutine and never shared with workers.
type registry struct {
	entries map[string]*Session
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*Session)}
}

func (r *registry) get(id string) (*Session, bool) {
	s, ok := r.entries[id]
	return s, ok
}

// put stores s under its device identifier and returns the entry it replaced.
func (r *registry) put(s *Session) *Session {
	prev := r.entries[s.DeviceID]
	r.entries[s.DeviceID] = s
	return prev
}

// remove deletes the entry for s.DeviceID only if it still refers to s.
func (r *registry) remove(s *Session) bool {
	if cur, ok := r.entries[s.DeviceID]; ok && cur == s {
		delete(r.entries, s.DeviceID)
		return true
	}
	return false
}

func (r *registry) len() int {
	return len(r.entries)
}

// ids returns all identifiers in sorted order.
func (r *registry) ids() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// running returns the identifiers whose session is still running, sorted.
func (r *registry) running() []string {
	var ids []string
	for _, id := range r.ids() {
		if r.entries[id].State() == StateRunning {
			ids = append(ids, id)
		}
	}
	return ids
}

// contains reports whether the registry currently points at session id.
func (r *registry) contains(id uuid.UUID) bool {
	for _, s := range r.entries {
		if s.ID == id {
			return true
		}
	}
	return false
}
