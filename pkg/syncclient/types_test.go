package syncclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Decodes a server event using only names exported by this package.
func TestEventDecodesWithExportedTypes(t *testing.T) {
	raw := `{"seq":4,"type":"PLAY","payload":{},"playback":{"video_ref":"v","mode":"PLAYING","anchor_position":3,"anchor_timestamp":1000}}`

	var e Event
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	assert.Equal(t, EventPlay, e.Type)
	require.NotNil(t, e.Playback)
	assert.Equal(t, ModePlaying, e.Playback.Mode)

	state := NewPlaybackState()
	assert.Equal(t, ModeIdle, state.Mode)

	var reason Reason = ReasonNotHost
	assert.Equal(t, "NOT_HOST", string(reason))
}
