// Package ws exposes the real-time room endpoint. It upgrades the
// connection, validates the bearer credential and room membership, and
// feeds inbound messages into the hub.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/auth"
	"github.com/roomcast/roomcast/internal/domain"
	"github.com/roomcast/roomcast/internal/event"
	"github.com/roomcast/roomcast/internal/hub"
	"github.com/roomcast/roomcast/internal/registry"
	"github.com/roomcast/roomcast/internal/store"
)

// Close codes surfaced to rejected clients before the hub ever sees
// the connection.
const (
	CloseInvalidToken    = 4001
	CloseNotMember       = 4003
	CloseRoomUnavailable = 4004
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	verifier  auth.Verifier
	dir       store.Directory
	reg       *registry.Registry
	hub       *hub.Hub
	readLimit int64
}

func NewHandler(verifier auth.Verifier, dir store.Directory, reg *registry.Registry,
	h *hub.Hub, readLimit int64) *Handler {
	return &Handler{verifier: verifier, dir: dir, reg: reg, hub: h, readLimit: readLimit}
}

// Serve handles GET /ws/:code?token=...
func (h *Handler) Serve(ctx context.Context, c *gin.Context) {
	code := domain.RoomCode(strings.ToUpper(c.Param("code")))
	token := c.Query("token")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade")
		return
	}

	uid, err := h.verifier.Verify(token)
	if err != nil {
		reject(conn, CloseInvalidToken, "Invalid token")
		return
	}
	user, err := h.dir.UserByID(ctx, uid)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			reject(conn, CloseInvalidToken, "User not found")
		} else {
			reject(conn, websocket.CloseInternalServerErr, "Lookup failed")
		}
		return
	}
	room, err := h.dir.RoomByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			reject(conn, CloseRoomUnavailable, "Room not found")
		} else {
			reject(conn, websocket.CloseInternalServerErr, "Lookup failed")
		}
		return
	}
	if !room.IsActive {
		reject(conn, CloseRoomUnavailable, "Room is closed")
		return
	}
	if !room.HasParticipant(user.ID) {
		reject(conn, CloseNotMember, "Not a participant")
		return
	}

	reg := h.reg.Connect(conn, *user, room.Code)
	h.reg.Broadcast(room.Code, event.NewUserJoined(*user))

	h.readLoop(ctx, reg, room, conn)
}

func (h *Handler) readLoop(ctx context.Context, conn *registry.Connection,
	room *domain.Room, ws *websocket.Conn) {
	if h.readLimit > 0 {
		ws.SetReadLimit(h.readLimit)
	}
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		h.hub.Handle(ctx, conn, room, data)
	}
	h.hub.Leave(conn)
}

// reject closes a freshly upgraded connection with a distinguishing
// close code; the hub never learns it existed.
func reject(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
	log.Info().Str("module", "ws").Int("code", code).Str("reason", reason).Msg("connection rejected")
}
