package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcast/roomcast/internal/domain"
)

func TestOutboundCarriesKindAndTimestamp(t *testing.T) {
	u := domain.User{ID: 3, Username: "ann"}

	data, err := json.Marshal(NewChatMessage(u, "hi", 12))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "chat_message", m["event"])
	assert.Equal(t, "hi", m["content"])
	assert.Equal(t, float64(3), m["user_id"])
	assert.Equal(t, float64(12), m["message_id"])
	assert.NotEmpty(t, m["timestamp"])
}

func TestRemoteChangedNamesController(t *testing.T) {
	data, err := json.Marshal(NewRemoteChanged(domain.User{ID: 9, Username: "bob"}))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "remote_changed", m["event"])
	assert.Equal(t, float64(9), m["controller_id"])
	assert.Equal(t, "bob", m["controller_username"])
}

func TestVoiceOfferAddressing(t *testing.T) {
	data, err := json.Marshal(NewVoiceOffer(1, 2, "v=0"))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "voice_offer", m["event"])
	assert.Equal(t, float64(1), m["from_user_id"])
	assert.Equal(t, float64(2), m["to_user_id"])
	assert.Equal(t, "v=0", m["sdp"])
}
