// Package stream runs the per-room capture loops that feed frame and
// audio events to everyone in a room.
package stream

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roomcast/roomcast/internal/browser"
	"github.com/roomcast/roomcast/internal/domain"
	"github.com/roomcast/roomcast/internal/event"
)

// Broadcaster fans a payload out to a room; satisfied by the registry.
type Broadcaster interface {
	Broadcast(room domain.RoomCode, payload any)
}

// Streamer tracks at most one frame loop and one audio loop per room.
// Starting an already-running loop is a no-op; stopping cancels and
// removes the handles.
type Streamer struct {
	reg        Broadcaster
	mgr        *browser.Manager
	deviceLock *browser.DeviceLock
	newCapture func() browser.Capturer

	interval  time.Duration
	chunkSize int

	mu     sync.Mutex
	frames map[domain.RoomCode]context.CancelFunc
	audio  map[domain.RoomCode]context.CancelFunc
}

func New(reg Broadcaster, mgr *browser.Manager, lock *browser.DeviceLock,
	newCapture func() browser.Capturer, interval time.Duration, chunkSize int) *Streamer {
	return &Streamer{
		reg:        reg,
		mgr:        mgr,
		deviceLock: lock,
		newCapture: newCapture,
		interval:   interval,
		chunkSize:  chunkSize,
		frames:     make(map[domain.RoomCode]context.CancelFunc),
		audio:      make(map[domain.RoomCode]context.CancelFunc),
	}
}

// StartFrameLoop begins periodic screenshot broadcasts for the room.
func (s *Streamer) StartFrameLoop(room domain.RoomCode) {
	s.mu.Lock()
	if _, ok := s.frames[room]; ok {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.frames[room] = cancel
	s.mu.Unlock()

	go s.frameLoop(ctx, room)
	log.Info().Str("module", "stream").Str("room", string(room)).Msg("frame loop started")
}

// frameLoop captures at a fixed target rate. An overrunning capture
// simply starts the next iteration immediately; frames are never
// queued up.
func (s *Streamer) frameLoop(ctx context.Context, room domain.RoomCode) {
	defer s.removeFrameHandle(room)

	for {
		if ctx.Err() != nil {
			return
		}
		sess, ok := s.mgr.GetSession(room)
		if !ok || !sess.Running() {
			log.Info().Str("module", "stream").Str("room", string(room)).Msg("frame loop exiting")
			return
		}

		started := time.Now()
		shot, err := sess.Screenshot()
		if err != nil {
			log.Warn().Err(err).Str("module", "stream").Str("room", string(room)).Msg("frame capture")
		} else {
			url, _ := sess.CurrentURL()
			frame := base64.StdEncoding.EncodeToString(shot)
			s.reg.Broadcast(room, event.NewBrowserFrame(frame, url))
		}

		remaining := s.interval - time.Since(started)
		if remaining <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(remaining):
		}
	}
}

// StartAudioLoop begins audio chunk broadcasts for the room. Fails fast
// with ErrDeviceBusy when another room holds the capture device.
func (s *Streamer) StartAudioLoop(room domain.RoomCode) error {
	s.mu.Lock()
	if _, ok := s.audio[room]; ok {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if !s.deviceLock.TryAcquire(room) {
		holder, _ := s.deviceLock.Holder()
		log.Warn().Str("module", "stream").Str("room", string(room)).
			Str("holder", string(holder)).Msg("audio device busy")
		return domain.ErrDeviceBusy
	}

	capture := s.newCapture()
	if err := capture.Start(); err != nil {
		s.deviceLock.Release(room)
		return err
	}

	s.mu.Lock()
	if _, ok := s.audio[room]; ok {
		// Raced with another starter for the same room.
		s.mu.Unlock()
		capture.Stop()
		s.deviceLock.Release(room)
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.audio[room] = cancel
	s.mu.Unlock()

	go s.audioLoop(ctx, room, capture)
	log.Info().Str("module", "stream").Str("room", string(room)).Msg("audio loop started")
	return nil
}

func (s *Streamer) audioLoop(ctx context.Context, room domain.RoomCode, capture browser.Capturer) {
	defer func() {
		capture.Stop()
		s.deviceLock.Release(room)
		s.removeAudioHandle(room)
		log.Info().Str("module", "stream").Str("room", string(room)).Msg("audio loop exiting")
	}()

	buf := make([]byte, s.chunkSize)
	for {
		if ctx.Err() != nil {
			return
		}
		sess, ok := s.mgr.GetSession(room)
		if !ok || !sess.Running() {
			return
		}

		n, err := capture.Read(buf)
		if err != nil {
			log.Warn().Err(err).Str("module", "stream").Str("room", string(room)).Msg("audio read")
			return
		}
		if n == 0 {
			continue
		}
		chunk := base64.StdEncoding.EncodeToString(buf[:n])
		s.reg.Broadcast(room, event.NewBrowserAudio(chunk))
	}
}

// StopLoops cancels both of the room's loop handles, if present.
func (s *Streamer) StopLoops(room domain.RoomCode) {
	s.mu.Lock()
	frameCancel := s.frames[room]
	audioCancel := s.audio[room]
	s.mu.Unlock()

	if frameCancel != nil {
		frameCancel()
	}
	if audioCancel != nil {
		audioCancel()
	}
}

// HasFrameLoop reports whether a frame loop handle is live for the room.
func (s *Streamer) HasFrameLoop(room domain.RoomCode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.frames[room]
	return ok
}

// HasAudioLoop reports whether an audio loop handle is live for the room.
func (s *Streamer) HasAudioLoop(room domain.RoomCode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.audio[room]
	return ok
}

func (s *Streamer) removeFrameHandle(room domain.RoomCode) {
	s.mu.Lock()
	delete(s.frames, room)
	s.mu.Unlock()
}

func (s *Streamer) removeAudioHandle(room domain.RoomCode) {
	s.mu.Lock()
	delete(s.audio, room)
	s.mu.Unlock()
}
