// Package session tracks the live canvas sessions: one board per connected
// browser tab.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moodboard/backend/internal/canvas"
	"github.com/moodboard/backend/internal/logging"
)

// MaxSessions limits concurrent canvas sessions.
const MaxSessions = 64

// ErrTooManySessions is returned by Create when MaxSessions are live.
var ErrTooManySessions = errors.New("too many canvas sessions")

// Notifier pushes a server event to the session's client.
type Notifier func(event string, payload interface{})

// Session is one live canvas connection.
type Session struct {
	ID        string
	WeekID    string
	Board     *canvas.Board
	CreatedAt time.Time

	mu           sync.Mutex
	lastActivity time.Time
	notify       Notifier
	closer       func()
}

// LastActivity returns when the client last sent something.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// SetNotifier installs the function used by Send.
func (s *Session) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = n
}

// SetCloser installs the function that tears the connection down on eviction.
func (s *Session) SetCloser(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closer = fn
}

// Send pushes an event to the client if a notifier is installed.
func (s *Session) Send(event string, payload interface{}) {
	s.mu.Lock()
	n := s.notify
	s.mu.Unlock()
	if n != nil {
		n(event, payload)
	}
}

func (s *Session) close() {
	s.mu.Lock()
	fn := s.closer
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Manager handles live canvas sessions.
type Manager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewManager creates a new session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create registers a board for a week.
func (m *Manager) Create(weekID string, board *canvas.Board) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= MaxSessions {
		return nil, ErrTooManySessions
	}
	now := time.Now()
	s := &Session{
		ID:           uuid.New().String(),
		WeekID:       weekID,
		Board:        board,
		CreatedAt:    now,
		lastActivity: now,
	}
	m.sessions[s.ID] = s
	return s, nil
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Touch updates the last activity timestamp of a session.
func (m *Manager) Touch(id string) bool {
	s, ok := m.Get(id)
	if !ok {
		return false
	}
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
	return true
}

// Remove forgets a session. It does not close the connection.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// ForWeek returns every session showing weekID.
func (m *Manager) ForWeek(weekID string) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.WeekID == weekID {
			out = append(out, s)
		}
	}
	return out
}

// Broadcast sends an event to every session on weekID except skipID.
func (m *Manager) Broadcast(weekID, skipID, event string, payload interface{}) {
	for _, s := range m.ForWeek(weekID) {
		if s.ID != skipID {
			s.Send(event, payload)
		}
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupOldSessions evicts sessions idle for longer than maxAge and closes
// their connections. It returns how many were evicted.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.close()
		logging.Info().Str("session", s.ID).Str("week", s.WeekID).Msg("evicted idle canvas session")
	}
	return len(stale)
}
