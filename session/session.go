// session/session.go
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/wfunc/musicalchairs/network"
)

// ErrClosed is returned by Send after the session was closed.
var ErrClosed = errors.New("session closed")

// Session is one spectator connection watching at most one room.
type Session struct {
	ID        string
	Conn      network.Connection
	CreatedAt time.Time

	mutex      sync.RWMutex
	roomID     string
	lastActive time.Time
	closed     bool
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
	}
}

// Send writes one framed message and counts as activity.
func (s *Session) Send(msgID uint16, data []byte) error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return ErrClosed
	}
	s.lastActive = time.Now()
	s.mutex.Unlock()
	return s.Conn.Send(msgID, data)
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.mutex.Lock()
	s.lastActive = time.Now()
	s.mutex.Unlock()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

// Watch attaches the session to roomID; an empty id detaches it.
func (s *Session) Watch(roomID string) {
	s.mutex.Lock()
	s.roomID = roomID
	s.mutex.Unlock()
}

// RoomID is the room the session watches, or "".
func (s *Session) RoomID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomID
}

func (s *Session) GetID() string {
	return s.ID
}

// Close closes the connection once. Later calls return nil.
func (s *Session) Close() error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	s.mutex.Unlock()
	return s.Conn.Close()
}

func (s *Session) Closed() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.closed
}

// Manager indexes the live spectator sessions.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

// GetByRoomID returns every session watching roomID.
func (m *Manager) GetByRoomID(roomID string) []*Session {
	var result []*Session
	for _, session := range m.All() {
		if session.RoomID() == roomID {
			result = append(result, session)
		}
	}
	return result
}

// All returns every session.
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// CloseIdle closes and removes the sessions that have been silent since
// before now-maxIdle, and returns them.
func (m *Manager) CloseIdle(now time.Time, maxIdle time.Duration) []*Session {
	cutoff := now.Add(-maxIdle)

	m.mutex.Lock()
	var idle []*Session
	for id, session := range m.sessions {
		if session.LastActive().Before(cutoff) {
			idle = append(idle, session)
			delete(m.sessions, id)
		}
	}
	m.mutex.Unlock()

	for _, session := range idle {
		session.Close()
	}
	return idle
}
