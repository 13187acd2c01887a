package browser

import (
	"sync"

	"github.com/roomcast/roomcast/internal/domain"
)

// DeviceLock guards the single machine-wide audio capture device. A
// losing room is rejected immediately, never queued.
type DeviceLock struct {
	mu     sync.Mutex
	held   bool
	holder domain.RoomCode
}

func NewDeviceLock() *DeviceLock { return &DeviceLock{} }

// TryAcquire claims the device for a room. Returns false while any
// room, including the caller, holds it.
func (l *DeviceLock) TryAcquire(room domain.RoomCode) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false
	}
	l.held = true
	l.holder = room
	return true
}

// Release frees the device; only the current holder may release.
func (l *DeviceLock) Release(room domain.RoomCode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held && l.holder == room {
		l.held = false
		l.holder = ""
	}
}

func (l *DeviceLock) Holder() (domain.RoomCode, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder, l.held
}
