package dailyclose

import (
	"sync"

	"github.com/nick-dorsch/agenda/pkg/models"
)

// Registry provides thread-safe storage of sessions keyed by a session id,
// for adapters that serve several users or clients at once.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for sessionID, creating it on date. An existing
// session is switched to date when date is set and differs.
func (r *Registry) Open(sessionID string, date models.Date) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		s = NewSession(date)
		r.sessions[sessionID] = s
		return s
	}
	if !date.IsZero() {
		s.SetDate(date)
	}
	return s
}

func (r *Registry) Peek(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	return s, ok
}

// End discards the session.
func (r *Registry) End(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}
