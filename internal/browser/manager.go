package browser

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/domain"
)

// Manager owns at most one Session per room plus that room's controller
// record. The existence check and registration happen under one lock,
// so concurrent creates for a room always converge on a single session.
type Manager struct {
	driver Driver
	width  int
	height int

	mu          sync.Mutex
	sessions    map[domain.RoomCode]*Session
	controllers map[domain.RoomCode]domain.User
}

func NewManager(driver Driver, width, height int) *Manager {
	return &Manager{
		driver:      driver,
		width:       width,
		height:      height,
		sessions:    make(map[domain.RoomCode]*Session),
		controllers: make(map[domain.RoomCode]domain.User),
	}
}

func (m *Manager) GetSession(room domain.RoomCode) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[room]
	return s, ok
}

// CreateSession returns the room's live session, creating and starting
// one when absent; the second return reports whether this call created
// it. Start itself is serialized on the session worker, so two racing
// creators both end up with the same started session.
func (m *Manager) CreateSession(room domain.RoomCode) (*Session, bool, error) {
	m.mu.Lock()
	s, ok := m.sessions[room]
	if !ok {
		s = NewSession(room, m.driver)
		m.sessions[room] = s
	}
	m.mu.Unlock()

	if err := s.Start(m.width, m.height); err != nil {
		m.mu.Lock()
		if m.sessions[room] == s {
			delete(m.sessions, room)
		}
		m.mu.Unlock()
		// Shut the worker down; a failed session is never retried.
		s.closeOps()
		return nil, false, err
	}
	if !ok {
		log.Info().Str("module", "browser").Str("room", string(room)).
			Int("active_sessions", m.SessionCount()).Msg("session created")
	}
	return s, !ok, nil
}

// CloseSession stops and removes the room's session and clears its
// controller record together. Idempotent.
func (m *Manager) CloseSession(room domain.RoomCode) error {
	m.mu.Lock()
	s, ok := m.sessions[room]
	delete(m.sessions, room)
	delete(m.controllers, room)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	err := s.Stop()
	log.Info().Str("module", "browser").Str("room", string(room)).
		Int("active_sessions", m.SessionCount()).Msg("session closed")
	return err
}

// CloseAllSessions tears down every live session; used at shutdown.
func (m *Manager) CloseAllSessions() {
	m.mu.Lock()
	rooms := make([]domain.RoomCode, 0, len(m.sessions))
	for room := range m.sessions {
		rooms = append(rooms, room)
	}
	m.mu.Unlock()

	for _, room := range rooms {
		if err := m.CloseSession(room); err != nil {
			log.Warn().Err(err).Str("module", "browser").
				Str("room", string(room)).Msg("closing session at shutdown")
		}
	}
}

func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Controller record: at most one controller per room, present only
// while a session runs.

func (m *Manager) GetController(room domain.RoomCode) (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.controllers[room]
	return u, ok
}

func (m *Manager) SetController(room domain.RoomCode, u domain.User) {
	m.mu.Lock()
	m.controllers[room] = u
	m.mu.Unlock()
	log.Info().Str("module", "browser").Str("room", string(room)).
		Int64("user_id", int64(u.ID)).Str("username", u.Username).Msg("controller changed")
}

func (m *Manager) ClearController(room domain.RoomCode) {
	m.mu.Lock()
	delete(m.controllers, room)
	m.mu.Unlock()
}

func (m *Manager) IsController(room domain.RoomCode, id domain.UserID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.controllers[room]
	return ok && u.ID == id
}
