// Package event defines the real-time message protocol between room
// participants and the server: a closed set of kinds, typed inbound
// decoding and timestamped outbound events.
package event

type Kind string

const (
	// Connection events.
	KindUserJoined Kind = "user_joined"
	KindUserLeft   Kind = "user_left"

	// Chat events.
	KindChatMessage Kind = "chat_message"

	// Browser events (client -> server).
	KindBrowserStart    Kind = "browser_start"
	KindBrowserStop     Kind = "browser_stop"
	KindBrowserNavigate Kind = "browser_navigate"
	KindBrowserClick    Kind = "browser_click"
	KindBrowserType     Kind = "browser_type"
	KindBrowserKeypress Kind = "browser_keypress"
	KindBrowserScroll   Kind = "browser_scroll"

	// Browser events (server -> client).
	KindBrowserFrame Kind = "browser_frame"
	KindBrowserAudio Kind = "browser_audio"

	// Remote control events.
	KindRemoteRequest Kind = "remote_request"
	KindRemotePass    Kind = "remote_pass"
	KindRemoteTake    Kind = "remote_take"
	KindRemoteChanged Kind = "remote_changed"

	// Voice chat signaling (relayed verbatim, no media server-side).
	KindVoiceJoin         Kind = "voice_join"
	KindVoiceLeave        Kind = "voice_leave"
	KindVoiceOffer        Kind = "voice_offer"
	KindVoiceAnswer       Kind = "voice_answer"
	KindVoiceICECandidate Kind = "voice_ice_candidate"

	// System events.
	KindError      Kind = "error"
	KindRoomClosed Kind = "room_closed"
)

// MaxChatContentLen bounds inbound chat content, in characters.
const MaxChatContentLen = 1000
