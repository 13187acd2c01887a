package store

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/roomcast/roomcast/internal/domain"
)

// Memory is an in-process Directory and ChatStore. It backs the
// composition root when no external persistence is wired in, and tests.
type Memory struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomCode]*domain.Room
	users    map[domain.UserID]*domain.User
	messages []domain.Message
	nextRoom domain.RoomID
	nextUser domain.UserID
	nextMsg  domain.MessageID
}

func NewMemory() *Memory {
	return &Memory{
		rooms: make(map[domain.RoomCode]*domain.Room),
		users: make(map[domain.UserID]*domain.User),
	}
}

func (m *Memory) RoomByCode(_ context.Context, code domain.RoomCode) (*domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[normalize(code)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	snapshot := *room
	snapshot.Participants = append([]domain.UserID(nil), room.Participants...)
	return &snapshot, nil
}

func (m *Memory) UserByID(_ context.Context, id domain.UserID) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	snapshot := *user
	return &snapshot, nil
}

func (m *Memory) RecordMessage(_ context.Context, roomID domain.RoomID, userID domain.UserID, content string) (domain.MessageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMsg++
	m.messages = append(m.messages, domain.Message{
		ID:      m.nextMsg,
		RoomID:  roomID,
		UserID:  userID,
		Content: content,
	})
	return m.nextMsg, nil
}

// AddUser registers a user and returns it with its assigned id, or nil
// for an invalid username.
func (m *Memory) AddUser(username string) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := domain.NewUser(m.nextUser+1, username)
	if err != nil {
		return nil
	}
	m.nextUser++
	m.users[u.ID] = u
	return u
}

// CreateRoom registers a room hosted by the given user. The host is
// always the first participant.
func (m *Memory) CreateRoom(host domain.UserID, title string) *domain.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRoom++
	room := &domain.Room{
		ID:           m.nextRoom,
		Code:         newRoomCode(),
		Title:        title,
		HostID:       host,
		IsActive:     true,
		Participants: []domain.UserID{host},
	}
	m.rooms[room.Code] = room
	return room
}

// AddParticipant joins a user to an existing room.
func (m *Memory) AddParticipant(code domain.RoomCode, id domain.UserID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[normalize(code)]
	if !ok {
		return false
	}
	if !room.HasParticipant(id) {
		room.Participants = append(room.Participants, id)
	}
	return true
}

// CloseRoom marks a room inactive.
func (m *Memory) CloseRoom(code domain.RoomCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[normalize(code)]; ok {
		room.IsActive = false
	}
}

// Messages returns a copy of all recorded messages, for tests.
func (m *Memory) Messages() []domain.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Message(nil), m.messages...)
}

func normalize(code domain.RoomCode) domain.RoomCode {
	return domain.RoomCode(strings.ToUpper(string(code)))
}

// newRoomCode derives a short shareable code from a fresh uuid.
func newRoomCode() domain.RoomCode {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return domain.RoomCode(raw[:6])
}
