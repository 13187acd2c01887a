package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roomcast/roomcast/internal/domain"
)

var ErrUnknownKind = errors.New("unknown event kind")

// Inbound is the closed union of messages a participant may send.
// Decoded exactly once at the connection boundary; adding a kind is a
// compile-time-checked change in the dispatch switch.
type Inbound interface{ inbound() }

type (
	Chat struct{ Content string }

	StartBrowser struct{}
	StopBrowser  struct{}

	Navigate struct{ URL string }
	Click    struct{ X, Y int }
	TypeText struct{ Text string }
	Keypress struct{ Key string }
	Scroll   struct{ DeltaX, DeltaY int }

	RequestControl struct{}
	PassControl    struct{ Target domain.UserID }
	TakeControl    struct{}

	JoinVoice  struct{}
	LeaveVoice struct{}
	Offer      struct {
		To  domain.UserID
		SDP string
	}
	Answer struct {
		To  domain.UserID
		SDP string
	}
	Candidate struct {
		To        domain.UserID
		Candidate string
	}
)

func (Chat) inbound()           {}
func (StartBrowser) inbound()   {}
func (StopBrowser) inbound()    {}
func (Navigate) inbound()       {}
func (Click) inbound()          {}
func (TypeText) inbound()       {}
func (Keypress) inbound()       {}
func (Scroll) inbound()         {}
func (RequestControl) inbound() {}
func (PassControl) inbound()    {}
func (TakeControl) inbound()    {}
func (JoinVoice) inbound()      {}
func (LeaveVoice) inbound()     {}
func (Offer) inbound()          {}
func (Answer) inbound()         {}
func (Candidate) inbound()      {}

// envelope carries every field any inbound kind may use. Numbers are
// decoded as float64 and coerced, since clients are not trusted to
// send clean integers.
type envelope struct {
	Event     string  `json:"event"`
	Content   string  `json:"content"`
	URL       string  `json:"url"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Text      string  `json:"text"`
	Key       string  `json:"key"`
	DeltaX    float64 `json:"deltaX"`
	DeltaY    float64 `json:"deltaY"`
	TargetID  float64 `json:"target_id"`
	ToUserID  float64 `json:"to_user_id"`
	SDP       string  `json:"sdp"`
	Candidate string  `json:"candidate"`
}

// DecodeInbound parses a raw websocket message into a typed event.
func DecodeInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed event: %w", err)
	}

	switch Kind(env.Event) {
	case KindChatMessage:
		return Chat{Content: env.Content}, nil
	case KindBrowserStart:
		return StartBrowser{}, nil
	case KindBrowserStop:
		return StopBrowser{}, nil
	case KindBrowserNavigate:
		return Navigate{URL: env.URL}, nil
	case KindBrowserClick:
		return Click{X: int(env.X), Y: int(env.Y)}, nil
	case KindBrowserType:
		return TypeText{Text: env.Text}, nil
	case KindBrowserKeypress:
		return Keypress{Key: env.Key}, nil
	case KindBrowserScroll:
		return Scroll{DeltaX: int(env.DeltaX), DeltaY: int(env.DeltaY)}, nil
	case KindRemoteRequest:
		return RequestControl{}, nil
	case KindRemotePass:
		return PassControl{Target: domain.UserID(env.TargetID)}, nil
	case KindRemoteTake:
		return TakeControl{}, nil
	case KindVoiceJoin:
		return JoinVoice{}, nil
	case KindVoiceLeave:
		return LeaveVoice{}, nil
	case KindVoiceOffer:
		return Offer{To: domain.UserID(env.ToUserID), SDP: env.SDP}, nil
	case KindVoiceAnswer:
		return Answer{To: domain.UserID(env.ToUserID), SDP: env.SDP}, nil
	case KindVoiceICECandidate:
		return Candidate{To: domain.UserID(env.ToUserID), Candidate: env.Candidate}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Event)
	}
}
