// Package hub is the dispatch boundary for inbound room events: it
// validates them against membership, host and controller state, routes
// them to the registry, the session manager or the session itself, and
// turns taxonomy errors into unicast error events.
package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/browser"
	"github.com/roomcast/roomcast/internal/domain"
	"github.com/roomcast/roomcast/internal/event"
	"github.com/roomcast/roomcast/internal/registry"
	"github.com/roomcast/roomcast/internal/store"
	"github.com/roomcast/roomcast/internal/stream"
)

type Hub struct {
	reg      *registry.Registry
	mgr      *browser.Manager
	streamer *stream.Streamer
	chats    store.ChatStore
	limiter  *ChatRateLimiter
}

func New(reg *registry.Registry, mgr *browser.Manager, streamer *stream.Streamer,
	chats store.ChatStore, limiter *ChatRateLimiter) *Hub {
	return &Hub{
		reg:      reg,
		mgr:      mgr,
		streamer: streamer,
		chats:    chats,
		limiter:  limiter,
	}
}

// Handle dispatches one raw inbound message from a connected
// participant. Validation failures never escape: they become a unicast
// error event to the sender.
func (h *Hub) Handle(ctx context.Context, conn *registry.Connection, room *domain.Room, data []byte) {
	ev, err := event.DecodeInbound(data)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}

	switch ev := ev.(type) {
	case event.Chat:
		h.handleChat(ctx, conn, room, ev)
	case event.StartBrowser:
		h.handleBrowserStart(conn, room)
	case event.StopBrowser:
		h.handleBrowserStop(conn, room)
	case event.Navigate:
		h.handleInput(conn, room, func(s *browser.Session) error { return s.Navigate(ev.URL) })
	case event.Click:
		h.handleInput(conn, room, func(s *browser.Session) error { return s.Click(ev.X, ev.Y) })
	case event.TypeText:
		h.handleInput(conn, room, func(s *browser.Session) error { return s.TypeText(ev.Text) })
	case event.Keypress:
		h.handleInput(conn, room, func(s *browser.Session) error { return s.PressKey(ev.Key) })
	case event.Scroll:
		h.handleInput(conn, room, func(s *browser.Session) error { return s.Scroll(ev.DeltaX, ev.DeltaY) })
	case event.RequestControl:
		h.handleRemoteRequest(conn, room)
	case event.PassControl:
		h.handleRemotePass(conn, room, ev.Target)
	case event.TakeControl:
		h.handleRemoteTake(conn, room)
	case event.JoinVoice:
		h.reg.Broadcast(room.Code, event.NewVoiceJoined(conn.User))
	case event.LeaveVoice:
		h.reg.Broadcast(room.Code, event.NewVoiceLeft(conn.User))
	case event.Offer:
		h.relay(conn, room, ev.To, func(from, to domain.UserID) any {
			return event.NewVoiceOffer(from, to, ev.SDP)
		})
	case event.Answer:
		h.relay(conn, room, ev.To, func(from, to domain.UserID) any {
			return event.NewVoiceAnswer(from, to, ev.SDP)
		})
	case event.Candidate:
		h.relay(conn, room, ev.To, func(from, to domain.UserID) any {
			return event.NewVoiceCandidate(from, to, ev.Candidate)
		})
	}
}

func (h *Hub) handleChat(ctx context.Context, conn *registry.Connection, room *domain.Room, ev event.Chat) {
	content := strings.TrimSpace(ev.Content)
	if content == "" {
		h.sendError(conn, "Message cannot be empty")
		return
	}
	if utf8.RuneCountInString(content) > event.MaxChatContentLen {
		h.sendError(conn, fmt.Sprintf("Message too long (max %d characters)", event.MaxChatContentLen))
		return
	}
	if h.limiter != nil && !h.limiter.Allow(conn.User.ID) {
		h.sendError(conn, "Too many messages, slow down")
		return
	}

	id, err := h.chats.RecordMessage(ctx, room.ID, conn.User.ID, content)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Str("room", string(room.Code)).Msg("record message")
		h.sendTaxonomy(conn, fmt.Errorf("%w: %v", domain.ErrCollaborator, err))
		return
	}

	h.reg.Broadcast(room.Code, event.NewChatMessage(conn.User, content, id))
}

func (h *Hub) handleBrowserStart(conn *registry.Connection, room *domain.Room) {
	if !room.IsHost(conn.User.ID) {
		h.sendTaxonomy(conn, domain.ErrForbidden)
		return
	}

	_, created, err := h.mgr.CreateSession(room.Code)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Str("room", string(room.Code)).Msg("create session")
		h.sendError(conn, "Failed to start browser")
		return
	}
	// A start on a live session is a no-op: the current controller and
	// the loops stay as they are.
	if !created {
		return
	}

	// Host is the implicit initial controller.
	h.mgr.SetController(room.Code, conn.User)

	h.streamer.StartFrameLoop(room.Code)
	if err := h.streamer.StartAudioLoop(room.Code); err != nil {
		// Frames still stream; only audio is unavailable.
		h.sendTaxonomy(conn, err)
	}
}

func (h *Hub) handleBrowserStop(conn *registry.Connection, room *domain.Room) {
	if !room.IsHost(conn.User.ID) {
		h.sendTaxonomy(conn, domain.ErrForbidden)
		return
	}
	h.stopRoomSession(room.Code)
}

// stopRoomSession cancels the streaming loops, clears the controller
// and stops the session as one teardown step.
func (h *Hub) stopRoomSession(room domain.RoomCode) {
	h.streamer.StopLoops(room)
	if err := h.mgr.CloseSession(room); err != nil {
		log.Warn().Err(err).Str("module", "hub").Str("room", string(room)).Msg("closing session")
	}
}

// handleInput gates an input command on session liveness and on the
// sender holding control, then forwards it to the session.
func (h *Hub) handleInput(conn *registry.Connection, room *domain.Room, op func(*browser.Session) error) {
	sess, ok := h.mgr.GetSession(room.Code)
	if !ok || !sess.Running() {
		h.sendTaxonomy(conn, domain.ErrNoSession)
		return
	}
	if !h.mgr.IsController(room.Code, conn.User.ID) {
		h.sendTaxonomy(conn, domain.ErrNotController)
		return
	}
	if err := op(sess); err != nil {
		log.Warn().Err(err).Str("module", "hub").Str("room", string(room.Code)).Msg("browser input")
		h.sendTaxonomy(conn, err)
	}
}

func (h *Hub) handleRemoteRequest(conn *registry.Connection, room *domain.Room) {
	if _, ok := h.mgr.GetSession(room.Code); !ok {
		h.sendTaxonomy(conn, domain.ErrNoSession)
		return
	}
	if h.mgr.IsController(room.Code, conn.User.ID) {
		h.sendError(conn, "You already have control")
		return
	}
	// No state change: the controller decides whether to pass.
	h.reg.Broadcast(room.Code, event.NewRemoteRequest(conn.User))
}

func (h *Hub) handleRemotePass(conn *registry.Connection, room *domain.Room, target domain.UserID) {
	if _, ok := h.mgr.GetSession(room.Code); !ok {
		h.sendTaxonomy(conn, domain.ErrNoSession)
		return
	}
	if !h.mgr.IsController(room.Code, conn.User.ID) {
		h.sendTaxonomy(conn, domain.ErrNotController)
		return
	}
	// The client-supplied target is only an id; name and liveness come
	// from the registry.
	targetConn, ok := h.reg.Lookup(room.Code, target)
	if !ok {
		h.sendTaxonomy(conn, domain.ErrNotFound)
		return
	}

	h.mgr.SetController(room.Code, targetConn.User)
	h.reg.Broadcast(room.Code, event.NewRemoteChanged(targetConn.User))
}

func (h *Hub) handleRemoteTake(conn *registry.Connection, room *domain.Room) {
	if _, ok := h.mgr.GetSession(room.Code); !ok {
		h.sendTaxonomy(conn, domain.ErrNoSession)
		return
	}
	if !room.IsHost(conn.User.ID) {
		h.sendTaxonomy(conn, domain.ErrForbidden)
		return
	}

	h.mgr.SetController(room.Code, conn.User)
	h.reg.Broadcast(room.Code, event.NewRemoteChanged(conn.User))
}

// relay forwards a voice signaling payload point-to-point. The server
// never inspects SDP or candidates.
func (h *Hub) relay(conn *registry.Connection, room *domain.Room, to domain.UserID,
	build func(from, to domain.UserID) any) {
	targetConn, ok := h.reg.Lookup(room.Code, to)
	if !ok {
		h.sendTaxonomy(conn, domain.ErrNotFound)
		return
	}
	h.reg.SendOne(targetConn, build(conn.User.ID, to))
}

// CloseRoom notifies the room, tears down its session and evicts every
// connection.
func (h *Hub) CloseRoom(room domain.RoomCode, reason string) {
	h.reg.Broadcast(room, event.NewRoomClosed(reason))
	h.stopRoomSession(room)
	for _, conn := range h.reg.Connections(room) {
		h.reg.Disconnect(conn)
	}
	log.Info().Str("module", "hub").Str("room", string(room)).Str("reason", reason).Msg("room closed")
}

// Shutdown closes every room with live connections, then any sessions
// left without one.
func (h *Hub) Shutdown() {
	for _, room := range h.reg.Rooms() {
		h.CloseRoom(room, "Server shutting down")
	}
	h.mgr.CloseAllSessions()
}

// Leave removes a connection and lets the room know. The session keeps
// running even when the host leaves; the room outlives its members.
func (h *Hub) Leave(conn *registry.Connection) {
	h.reg.Disconnect(conn)
	if h.limiter != nil {
		h.limiter.Forget(conn.User.ID)
	}
	// An evicted stale connection must not announce the departure of a
	// participant who just reconnected.
	if !h.reg.IsUserInRoom(conn.Room, conn.User.ID) {
		h.reg.Broadcast(conn.Room, event.NewUserLeft(conn.User))
	}
}

func (h *Hub) sendError(conn *registry.Connection, msg string) {
	h.reg.SendOne(conn, event.NewError(msg))
}

// sendTaxonomy maps a taxonomy error onto the wire message the sender sees.
func (h *Hub) sendTaxonomy(conn *registry.Connection, err error) {
	switch {
	case errors.Is(err, domain.ErrNoSession):
		h.sendError(conn, "No browser session is running")
	case errors.Is(err, domain.ErrNotController):
		h.sendError(conn, "You don't have control of the browser")
	case errors.Is(err, domain.ErrForbidden):
		h.sendError(conn, "Only the host can do that")
	case errors.Is(err, domain.ErrNotFound):
		h.sendError(conn, "Participant not found in this room")
	case errors.Is(err, domain.ErrDeviceBusy):
		h.sendError(conn, "Audio capture is in use by another room")
	case errors.Is(err, domain.ErrNotStarted):
		h.sendError(conn, "Browser not started")
	case errors.Is(err, domain.ErrCollaborator):
		h.sendError(conn, "Failed to save message")
	default:
		h.sendError(conn, "Operation failed")
	}
}
