// Package registry tracks live participant connections per room and
// fans outbound events out to them.
package registry

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/domain"
)

type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomCode][]*Connection
}

func New() *Registry {
	return &Registry{rooms: make(map[domain.RoomCode][]*Connection)}
}

// Connect registers a participant's transport in a room and starts its
// write pump. A stale connection for the same (room, participant) pair
// is evicted first, so a reconnect never leaves two live entries.
func (r *Registry) Connect(t Transport, user domain.User, room domain.RoomCode) *Connection {
	c := newConnection(t, user, room)

	r.mu.Lock()
	var stale *Connection
	kept := r.rooms[room][:0]
	for _, old := range r.rooms[room] {
		if old.User.ID == user.ID {
			stale = old
			continue
		}
		kept = append(kept, old)
	}
	r.rooms[room] = append(kept, c)
	r.mu.Unlock()

	if stale != nil {
		stale.Close()
		log.Info().Str("module", "registry").Str("room", string(room)).
			Int64("user_id", int64(user.ID)).Msg("evicted stale connection")
	}

	c.startWritePump()
	log.Info().Str("module", "registry").Str("room", string(room)).
		Int64("user_id", int64(user.ID)).Str("username", user.Username).Msg("connected")
	return c
}

// Disconnect removes the connection and prunes the room entry when it
// empties. Removal is by identity, so a stale entry evicted earlier
// cannot knock out its replacement.
func (r *Registry) Disconnect(c *Connection) {
	r.mu.Lock()
	conns := r.rooms[c.Room]
	for i, cand := range conns {
		if cand == c {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(r.rooms, c.Room)
	} else {
		r.rooms[c.Room] = conns
	}
	r.mu.Unlock()

	c.Close()
	log.Info().Str("module", "registry").Str("room", string(c.Room)).
		Int64("user_id", int64(c.User.ID)).Msg("disconnected")
}

// Broadcast sends one payload to every live connection in the room.
// The payload is marshalled once; a failed or backpressured send to one
// recipient never aborts delivery to the rest.
func (r *Registry) Broadcast(room domain.RoomCode, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("module", "registry").Msg("broadcast marshal")
		return
	}
	for _, c := range r.Connections(room) {
		_ = c.TrySend(data)
	}
}

// SendOne delivers a payload to a single connection, best effort.
func (r *Registry) SendOne(c *Connection, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("module", "registry").Msg("send marshal")
		return
	}
	_ = c.TrySend(data)
}

// Connections returns a snapshot of the room's live connections.
func (r *Registry) Connections(room domain.RoomCode) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Connection(nil), r.rooms[room]...)
}

func (r *Registry) UserIDs(room domain.RoomCode) []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]domain.UserID, 0, len(r.rooms[room]))
	for _, c := range r.rooms[room] {
		ids = append(ids, c.User.ID)
	}
	return ids
}

func (r *Registry) IsUserInRoom(room domain.RoomCode, id domain.UserID) bool {
	_, ok := r.Lookup(room, id)
	return ok
}

// Lookup finds a participant's live connection within a room.
func (r *Registry) Lookup(room domain.RoomCode, id domain.UserID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.rooms[room] {
		if c.User.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Rooms lists the room codes that currently have live connections.
func (r *Registry) Rooms() []domain.RoomCode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]domain.RoomCode, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	return codes
}
