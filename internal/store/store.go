// Package store declares the persistence/lookup collaborators the
// real-time core depends on. Implementations are external; the core
// treats every call as fallible and never retries.
package store

import (
	"context"

	"github.com/roomcast/roomcast/internal/domain"
)

// Directory resolves rooms and users for connection setup.
type Directory interface {
	// RoomByCode returns the room snapshot for a shareable code,
	// case-insensitive. domain.ErrNotFound when absent.
	RoomByCode(ctx context.Context, code domain.RoomCode) (*domain.Room, error)

	// UserByID resolves the authoritative identity for an
	// authenticated participant. domain.ErrNotFound when absent.
	UserByID(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// ChatStore records chat messages and assigns their ids.
type ChatStore interface {
	RecordMessage(ctx context.Context, roomID domain.RoomID, userID domain.UserID, content string) (domain.MessageID, error)
}
