package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcast/roomcast/internal/browser"
	"github.com/roomcast/roomcast/internal/domain"
	"github.com/roomcast/roomcast/internal/registry"
	"github.com/roomcast/roomcast/internal/store"
	"github.com/roomcast/roomcast/internal/stream"
)

// Stub automation stack. All sessions share one recording page so
// tests can assert which inputs actually reached the browser.

type stubDriver struct{ page *stubPage }

func (d *stubDriver) Start() (browser.Engine, error) { return &stubEngine{page: d.page}, nil }

type stubEngine struct{ page *stubPage }

func (e *stubEngine) Launch(browser.LaunchOptions) (browser.Browser, error) {
	return &stubBrowser{page: e.page}, nil
}

func (e *stubEngine) Stop() error { return nil }

type stubBrowser struct{ page *stubPage }

func (b *stubBrowser) NewContext(int, int) (browser.Context, error) {
	return &stubContext{page: b.page}, nil
}

func (b *stubBrowser) Close() error { return nil }

type stubContext struct{ page *stubPage }

func (c *stubContext) NewPage() (browser.Page, error) { return c.page, nil }
func (c *stubContext) OnPage(func(browser.Page))      {}
func (c *stubContext) Close() error                   { return nil }

type stubPage struct {
	mu     sync.Mutex
	url    string
	clicks int
}

func (p *stubPage) Goto(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	return nil
}

func (p *stubPage) Click(_, _ float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicks++
	return nil
}

func (p *stubPage) Type(string) error        { return nil }
func (p *stubPage) Press(string) error       { return nil }
func (p *stubPage) Wheel(_, _ float64) error { return nil }

func (p *stubPage) Screenshot() ([]byte, error) { return []byte{0xff, 0xd8, 0xff}, nil }

func (p *stubPage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *stubPage) Close() error { return nil }

func (p *stubPage) clickCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks
}

type stubCapturer struct{}

func (*stubCapturer) Start() error { return nil }

func (*stubCapturer) Read(p []byte) (int, error) {
	// Quiet device: keeps the loop alive without flooding broadcasts.
	time.Sleep(10 * time.Millisecond)
	return 0, nil
}

func (*stubCapturer) Stop() {}

type fakeTransport struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (t *fakeTransport) WriteMessage(_ int, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("transport closed")
	}
	t.frames = append(t.frames, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) snapshot() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.frames...)
}

// waitFor blocks until a frame of the given kind arrives and returns
// it decoded.
func (t *fakeTransport) waitFor(tt *testing.T, kind string) map[string]any {
	tt.Helper()
	var found map[string]any
	require.Eventually(tt, func() bool {
		for _, f := range t.snapshot() {
			var m map[string]any
			if json.Unmarshal(f, &m) != nil {
				continue
			}
			if m["event"] == kind {
				found = m
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "waiting for %q", kind)
	return found
}

// errorCount counts error frames delivered so far.
func (t *fakeTransport) errorCount() int {
	n := 0
	for _, f := range t.snapshot() {
		var m map[string]any
		if json.Unmarshal(f, &m) == nil && m["event"] == "error" {
			n++
		}
	}
	return n
}

// waitForError blocks until the n-th error frame arrives and returns
// its message.
func (t *fakeTransport) waitForError(tt *testing.T, n int) string {
	tt.Helper()
	require.Eventually(tt, func() bool { return t.errorCount() >= n },
		2*time.Second, 10*time.Millisecond, "waiting for error #%d", n)

	msgs := make([]string, 0, n)
	for _, f := range t.snapshot() {
		var m map[string]any
		if json.Unmarshal(f, &m) == nil && m["event"] == "error" {
			s, _ := m["message"].(string)
			msgs = append(msgs, s)
		}
	}
	return msgs[n-1]
}

func (t *fakeTransport) kindCount(kind string) int {
	n := 0
	for _, f := range t.snapshot() {
		var m map[string]any
		if json.Unmarshal(f, &m) == nil && m["event"] == kind {
			n++
		}
	}
	return n
}

func (t *fakeTransport) sawKind(kind string) bool { return t.kindCount(kind) > 0 }

type fixture struct {
	hub  *Hub
	reg  *registry.Registry
	mgr  *browser.Manager
	mem  *store.Memory
	page *stubPage
	room *domain.Room

	host, guest         *domain.User
	hostT, guestT       *fakeTransport
	hostConn, guestConn *registry.Connection
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := store.NewMemory()
	host := mem.AddUser("host")
	guest := mem.AddUser("guest")
	created := mem.CreateRoom(host.ID, "movie night")
	require.True(t, mem.AddParticipant(created.Code, guest.ID))
	room, err := mem.RoomByCode(context.Background(), created.Code)
	require.NoError(t, err)

	page := &stubPage{}
	reg := registry.New()
	mgr := browser.NewManager(&stubDriver{page: page}, 1280, 720)
	streamer := stream.New(reg, mgr, browser.NewDeviceLock(),
		func() browser.Capturer { return &stubCapturer{} },
		20*time.Millisecond, 4096)
	h := New(reg, mgr, streamer, mem, NewChatRateLimiter(100, time.Minute))
	t.Cleanup(h.Shutdown)

	hostT, guestT := &fakeTransport{}, &fakeTransport{}
	fx := &fixture{
		hub:    h,
		reg:    reg,
		mgr:    mgr,
		mem:    mem,
		page:   page,
		room:   room,
		host:   host,
		guest:  guest,
		hostT:  hostT,
		guestT: guestT,
	}
	fx.hostConn = reg.Connect(hostT, *host, room.Code)
	fx.guestConn = reg.Connect(guestT, *guest, room.Code)
	return fx
}

func (fx *fixture) send(conn *registry.Connection, raw string) {
	fx.hub.Handle(context.Background(), conn, fx.room, []byte(raw))
}

func TestBrowserStartIsHostOnly(t *testing.T) {
	fx := newFixture(t)

	fx.send(fx.guestConn, `{"event":"browser_start"}`)
	assert.Equal(t, "Only the host can do that", fx.guestT.waitForError(t, 1))
	assert.Zero(t, fx.mgr.SessionCount())

	fx.send(fx.hostConn, `{"event":"browser_start"}`)
	assert.Equal(t, 1, fx.mgr.SessionCount())
	assert.True(t, fx.mgr.IsController(fx.room.Code, fx.host.ID))

	// Everyone in the room sees frames.
	frame := fx.guestT.waitFor(t, "browser_frame")
	assert.NotEmpty(t, frame["frame"])
}

func TestControlHandover(t *testing.T) {
	fx := newFixture(t)
	fx.send(fx.hostConn, `{"event":"browser_start"}`)

	// Guest cannot drive before being handed control.
	fx.send(fx.guestConn, `{"event":"browser_click","x":10,"y":20}`)
	assert.Equal(t, "You don't have control of the browser", fx.guestT.waitForError(t, 1))
	assert.Zero(t, fx.page.clickCount())

	// Asking for control only notifies the room.
	fx.send(fx.guestConn, `{"event":"remote_request"}`)
	req := fx.hostT.waitFor(t, "remote_request")
	assert.Equal(t, float64(fx.guest.ID), req["user_id"])
	assert.True(t, fx.mgr.IsController(fx.room.Code, fx.host.ID))

	// Host passes control to the guest.
	fx.send(fx.hostConn, fmt.Sprintf(`{"event":"remote_pass","target_id":%d}`, fx.guest.ID))
	changed := fx.guestT.waitFor(t, "remote_changed")
	assert.Equal(t, float64(fx.guest.ID), changed["controller_id"])
	assert.Equal(t, "guest", changed["controller_username"])

	fx.send(fx.guestConn, `{"event":"browser_click","x":10,"y":20}`)
	assert.Equal(t, 1, fx.page.clickCount())

	// The host lost control by passing it away.
	fx.send(fx.hostConn, `{"event":"browser_click","x":10,"y":20}`)
	assert.Equal(t, "You don't have control of the browser", fx.hostT.waitForError(t, 1))
	assert.Equal(t, 1, fx.page.clickCount())

	// And reclaims it unilaterally.
	fx.send(fx.hostConn, `{"event":"remote_take"}`)
	assert.True(t, fx.mgr.IsController(fx.room.Code, fx.host.ID))
	fx.send(fx.hostConn, `{"event":"browser_click","x":10,"y":20}`)
	assert.Equal(t, 2, fx.page.clickCount())
}

func TestRepeatBrowserStartKeepsController(t *testing.T) {
	fx := newFixture(t)
	fx.send(fx.hostConn, `{"event":"browser_start"}`)
	fx.send(fx.hostConn, fmt.Sprintf(`{"event":"remote_pass","target_id":%d}`, fx.guest.ID))
	fx.guestT.waitFor(t, "remote_changed")

	// A second start on the live session changes nothing: the guest
	// keeps control and nobody is told otherwise.
	fx.send(fx.hostConn, `{"event":"browser_start"}`)

	assert.True(t, fx.mgr.IsController(fx.room.Code, fx.guest.ID))
	assert.Equal(t, 1, fx.mgr.SessionCount())

	// The chat marker is delivered after anything the repeat start
	// could have queued, per-connection order being FIFO.
	fx.send(fx.guestConn, `{"event":"chat_message","content":"marker"}`)
	fx.guestT.waitFor(t, "chat_message")
	assert.Equal(t, 1, fx.guestT.kindCount("remote_changed"))
}

func TestRemoteRequestByController(t *testing.T) {
	fx := newFixture(t)
	fx.send(fx.hostConn, `{"event":"browser_start"}`)

	fx.send(fx.hostConn, `{"event":"remote_request"}`)
	assert.Equal(t, "You already have control", fx.hostT.waitForError(t, 1))
}

func TestRemotePassToAbsentTarget(t *testing.T) {
	fx := newFixture(t)
	fx.send(fx.hostConn, `{"event":"browser_start"}`)

	fx.send(fx.hostConn, `{"event":"remote_pass","target_id":999}`)
	assert.Equal(t, "Participant not found in this room", fx.hostT.waitForError(t, 1))
	assert.True(t, fx.mgr.IsController(fx.room.Code, fx.host.ID))
}

func TestInputWithoutSession(t *testing.T) {
	fx := newFixture(t)

	fx.send(fx.hostConn, `{"event":"browser_navigate","url":"example.com"}`)
	assert.Equal(t, "No browser session is running", fx.hostT.waitForError(t, 1))
}

func TestChatFlow(t *testing.T) {
	fx := newFixture(t)

	fx.send(fx.guestConn, `{"event":"chat_message","content":"  "}`)
	assert.Equal(t, "Message cannot be empty", fx.guestT.waitForError(t, 1))

	long := strings.Repeat("a", 1001)
	fx.send(fx.guestConn, `{"event":"chat_message","content":"`+long+`"}`)
	assert.Equal(t, "Message too long (max 1000 characters)", fx.guestT.waitForError(t, 2))
	assert.Empty(t, fx.mem.Messages())
	assert.False(t, fx.hostT.sawKind("chat_message"))

	fx.send(fx.guestConn, `{"event":"chat_message","content":"hello room"}`)
	msg := fx.hostT.waitFor(t, "chat_message")
	assert.Equal(t, "hello room", msg["content"])
	assert.Equal(t, "guest", msg["username"])
	require.Len(t, fx.mem.Messages(), 1)
	assert.Equal(t, "hello room", fx.mem.Messages()[0].Content)
}

type failingChatStore struct{}

func (failingChatStore) RecordMessage(context.Context, domain.RoomID, domain.UserID, string) (domain.MessageID, error) {
	return 0, errors.New("db down")
}

func TestChatPersistenceFailure(t *testing.T) {
	fx := newFixture(t)
	fx.hub.chats = failingChatStore{}

	fx.send(fx.guestConn, `{"event":"chat_message","content":"hello"}`)

	assert.Equal(t, "Failed to save message", fx.guestT.waitForError(t, 1))
	assert.False(t, fx.hostT.sawKind("chat_message"))
}

func TestChatRateLimited(t *testing.T) {
	fx := newFixture(t)
	fx.hub.limiter = NewChatRateLimiter(1, time.Minute)

	fx.send(fx.guestConn, `{"event":"chat_message","content":"one"}`)
	fx.send(fx.guestConn, `{"event":"chat_message","content":"two"}`)

	assert.Equal(t, "Too many messages, slow down", fx.guestT.waitForError(t, 1))
	assert.Len(t, fx.mem.Messages(), 1)
}

func TestVoiceSignalingRelay(t *testing.T) {
	fx := newFixture(t)

	fx.send(fx.guestConn, `{"event":"voice_join"}`)
	joined := fx.hostT.waitFor(t, "voice_join")
	assert.Equal(t, float64(fx.guest.ID), joined["user_id"])

	fx.send(fx.guestConn, fmt.Sprintf(`{"event":"voice_offer","to_user_id":%d,"sdp":"v=0"}`, fx.host.ID))
	offer := fx.hostT.waitFor(t, "voice_offer")
	assert.Equal(t, float64(fx.guest.ID), offer["from_user_id"])
	assert.Equal(t, float64(fx.host.ID), offer["to_user_id"])
	assert.Equal(t, "v=0", offer["sdp"])
	assert.False(t, fx.guestT.sawKind("voice_offer"))

	fx.send(fx.guestConn, `{"event":"voice_offer","to_user_id":999,"sdp":"v=0"}`)
	assert.Equal(t, "Participant not found in this room", fx.guestT.waitForError(t, 1))
}

func TestUnknownEventKind(t *testing.T) {
	fx := newFixture(t)

	fx.send(fx.guestConn, `{"event":"reboot_server"}`)
	assert.Contains(t, fx.guestT.waitForError(t, 1), "unknown event kind")
}

func TestBrowserStopTearsDown(t *testing.T) {
	fx := newFixture(t)
	fx.send(fx.hostConn, `{"event":"browser_start"}`)
	require.Equal(t, 1, fx.mgr.SessionCount())

	fx.send(fx.guestConn, `{"event":"browser_stop"}`)
	assert.Equal(t, "Only the host can do that", fx.guestT.waitForError(t, 1))
	assert.Equal(t, 1, fx.mgr.SessionCount())

	fx.send(fx.hostConn, `{"event":"browser_stop"}`)
	assert.Zero(t, fx.mgr.SessionCount())
	assert.False(t, fx.mgr.IsController(fx.room.Code, fx.host.ID))
}

func TestLeaveAnnouncesDeparture(t *testing.T) {
	fx := newFixture(t)

	fx.hub.Leave(fx.guestConn)

	left := fx.hostT.waitFor(t, "user_left")
	assert.Equal(t, "guest", left["username"])
	assert.False(t, fx.reg.IsUserInRoom(fx.room.Code, fx.guest.ID))
}

func TestCloseRoomEvictsEveryone(t *testing.T) {
	fx := newFixture(t)
	fx.send(fx.hostConn, `{"event":"browser_start"}`)

	fx.hub.CloseRoom(fx.room.Code, "host ended the room")

	// The farewell must still reach every participant even though
	// their connections are torn down right after it is queued.
	for _, ft := range []*fakeTransport{fx.hostT, fx.guestT} {
		closed := ft.waitFor(t, "room_closed")
		assert.Equal(t, "host ended the room", closed["reason"])
	}
	assert.Empty(t, fx.reg.Rooms())
	assert.Zero(t, fx.mgr.SessionCount())
}
