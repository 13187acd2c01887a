package event

import (
	"time"

	"github.com/roomcast/roomcast/internal/domain"
)

// base is embedded in every outbound event; the timestamp is stamped
// server-side at construction.
type base struct {
	Event     Kind      `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

func stamp(k Kind) base { return base{Event: k, Timestamp: time.Now().UTC()} }

type UserJoined struct {
	base
	UserID   domain.UserID `json:"user_id"`
	Username string        `json:"username"`
}

func NewUserJoined(u domain.User) UserJoined {
	return UserJoined{base: stamp(KindUserJoined), UserID: u.ID, Username: u.Username}
}

type UserLeft struct {
	base
	UserID   domain.UserID `json:"user_id"`
	Username string        `json:"username"`
}

func NewUserLeft(u domain.User) UserLeft {
	return UserLeft{base: stamp(KindUserLeft), UserID: u.ID, Username: u.Username}
}

type ChatMessage struct {
	base
	UserID    domain.UserID    `json:"user_id"`
	Username  string           `json:"username"`
	Content   string           `json:"content"`
	MessageID domain.MessageID `json:"message_id"`
}

func NewChatMessage(u domain.User, content string, id domain.MessageID) ChatMessage {
	return ChatMessage{
		base:      stamp(KindChatMessage),
		UserID:    u.ID,
		Username:  u.Username,
		Content:   content,
		MessageID: id,
	}
}

type BrowserFrame struct {
	base
	Frame string `json:"frame"` // base64 jpeg
	URL   string `json:"url"`
}

func NewBrowserFrame(frame, url string) BrowserFrame {
	return BrowserFrame{base: stamp(KindBrowserFrame), Frame: frame, URL: url}
}

type BrowserAudio struct {
	base
	Audio string `json:"audio"` // base64 mp3 chunk
}

func NewBrowserAudio(audio string) BrowserAudio {
	return BrowserAudio{base: stamp(KindBrowserAudio), Audio: audio}
}

type RemoteRequest struct {
	base
	UserID   domain.UserID `json:"user_id"`
	Username string        `json:"username"`
}

func NewRemoteRequest(u domain.User) RemoteRequest {
	return RemoteRequest{base: stamp(KindRemoteRequest), UserID: u.ID, Username: u.Username}
}

type RemoteChanged struct {
	base
	ControllerID       domain.UserID `json:"controller_id"`
	ControllerUsername string        `json:"controller_username"`
}

func NewRemoteChanged(controller domain.User) RemoteChanged {
	return RemoteChanged{
		base:               stamp(KindRemoteChanged),
		ControllerID:       controller.ID,
		ControllerUsername: controller.Username,
	}
}

type Error struct {
	base
	Message string `json:"message"`
}

func NewError(msg string) Error {
	return Error{base: stamp(KindError), Message: msg}
}

type RoomClosed struct {
	base
	Reason string `json:"reason"`
}

func NewRoomClosed(reason string) RoomClosed {
	return RoomClosed{base: stamp(KindRoomClosed), Reason: reason}
}

type VoiceJoined struct {
	base
	UserID   domain.UserID `json:"user_id"`
	Username string        `json:"username"`
}

func NewVoiceJoined(u domain.User) VoiceJoined {
	return VoiceJoined{base: stamp(KindVoiceJoin), UserID: u.ID, Username: u.Username}
}

type VoiceLeft struct {
	base
	UserID   domain.UserID `json:"user_id"`
	Username string        `json:"username"`
}

func NewVoiceLeft(u domain.User) VoiceLeft {
	return VoiceLeft{base: stamp(KindVoiceLeave), UserID: u.ID, Username: u.Username}
}

type VoiceOffer struct {
	base
	FromUserID domain.UserID `json:"from_user_id"`
	ToUserID   domain.UserID `json:"to_user_id"`
	SDP        string        `json:"sdp"`
}

func NewVoiceOffer(from, to domain.UserID, sdp string) VoiceOffer {
	return VoiceOffer{base: stamp(KindVoiceOffer), FromUserID: from, ToUserID: to, SDP: sdp}
}

type VoiceAnswer struct {
	base
	FromUserID domain.UserID `json:"from_user_id"`
	ToUserID   domain.UserID `json:"to_user_id"`
	SDP        string        `json:"sdp"`
}

func NewVoiceAnswer(from, to domain.UserID, sdp string) VoiceAnswer {
	return VoiceAnswer{base: stamp(KindVoiceAnswer), FromUserID: from, ToUserID: to, SDP: sdp}
}

type VoiceCandidate struct {
	base
	FromUserID domain.UserID `json:"from_user_id"`
	ToUserID   domain.UserID `json:"to_user_id"`
	Candidate  string        `json:"candidate"`
}

func NewVoiceCandidate(from, to domain.UserID, candidate string) VoiceCandidate {
	return VoiceCandidate{base: stamp(KindVoiceICECandidate), FromUserID: from, ToUserID: to, Candidate: candidate}
}
