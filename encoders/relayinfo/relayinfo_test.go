package relayinfo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortOrdersNipsAscending(t *testing.T) {
	info := &T{Nips: GetList(Counting, BasicProtocol, Search, Authentication)}
	info.Sort()
	assert.Equal(t, NipList{BasicProtocol, Authentication, Counting, Search}, info.Nips)
}

func TestMarshalOmitsZeroLimits(t *testing.T) {
	info := &T{
		Name:       "relay",
		Nips:       GetList(BasicProtocol),
		Limitation: Limits{AuthRequired: false, PaymentRequired: false},
	}
	b, err := json.Marshal(info)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	lim := raw["limitation"].(map[string]any)
	_, hasMaxMsg := lim["max_message_length"]
	assert.False(t, hasMaxMsg, "zero-valued limit should be omitted")
	_, hasAuthRequired := lim["auth_required"]
	assert.True(t, hasAuthRequired, "auth_required has no omitempty tag")
}

func TestMarshalIncludesConfiguredLimits(t *testing.T) {
	info := &T{
		Name: "relay",
		Nips: GetList(BasicProtocol),
		Limitation: Limits{
			MaxMessageLength: 65536,
			MaxSubscriptions: 20,
			AuthRequired:     true,
		},
	}
	b, err := json.Marshal(info)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	lim := raw["limitation"].(map[string]any)
	assert.Equal(t, float64(65536), lim["max_message_length"])
	assert.Equal(t, float64(20), lim["max_subscriptions"])
	assert.Equal(t, true, lim["auth_required"])
}
