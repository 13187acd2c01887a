package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcast/roomcast/internal/domain"
)

func TestDecodeInboundChat(t *testing.T) {
	ev, err := DecodeInbound([]byte(`{"event":"chat_message","content":"hello"}`))
	require.NoError(t, err)
	require.IsType(t, Chat{}, ev)
	assert.Equal(t, "hello", ev.(Chat).Content)
}

func TestDecodeInboundClickCoercesFloats(t *testing.T) {
	ev, err := DecodeInbound([]byte(`{"event":"browser_click","x":120.7,"y":44.2}`))
	require.NoError(t, err)
	click := ev.(Click)
	assert.Equal(t, 120, click.X)
	assert.Equal(t, 44, click.Y)
}

func TestDecodeInboundScroll(t *testing.T) {
	ev, err := DecodeInbound([]byte(`{"event":"browser_scroll","deltaX":0,"deltaY":-300}`))
	require.NoError(t, err)
	scroll := ev.(Scroll)
	assert.Equal(t, 0, scroll.DeltaX)
	assert.Equal(t, -300, scroll.DeltaY)
}

func TestDecodeInboundRemotePass(t *testing.T) {
	ev, err := DecodeInbound([]byte(`{"event":"remote_pass","target_id":42}`))
	require.NoError(t, err)
	assert.Equal(t, domain.UserID(42), ev.(PassControl).Target)
}

func TestDecodeInboundVoiceOffer(t *testing.T) {
	ev, err := DecodeInbound([]byte(`{"event":"voice_offer","to_user_id":7,"sdp":"v=0"}`))
	require.NoError(t, err)
	offer := ev.(Offer)
	assert.Equal(t, domain.UserID(7), offer.To)
	assert.Equal(t, "v=0", offer.SDP)
}

func TestDecodeInboundBareKinds(t *testing.T) {
	for raw, want := range map[string]Inbound{
		`{"event":"browser_start"}`:  StartBrowser{},
		`{"event":"browser_stop"}`:   StopBrowser{},
		`{"event":"remote_request"}`: RequestControl{},
		`{"event":"remote_take"}`:    TakeControl{},
		`{"event":"voice_join"}`:     JoinVoice{},
		`{"event":"voice_leave"}`:    LeaveVoice{},
	} {
		ev, err := DecodeInbound([]byte(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, want, ev, raw)
	}
}

func TestDecodeInboundUnknownKind(t *testing.T) {
	_, err := DecodeInbound([]byte(`{"event":"reboot_server"}`))
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeInboundMalformed(t *testing.T) {
	_, err := DecodeInbound([]byte(`{"event":`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownKind)
}
