package syncclient

import "github.com/sharetube/roomsync/internal/domain"

// Room types shared with the server, re-exported so callers outside this
// module can name them.
type (
	Event           = domain.Event
	EventType       = domain.EventType
	Payload         = domain.Payload
	PlaybackState   = domain.PlaybackState
	Mode            = domain.Mode
	Member          = domain.Member
	Participant     = domain.Participant
	ConnectionState = domain.ConnectionState
	Reason          = domain.Reason
)

const (
	EventLoad       = domain.EventLoad
	EventPlay       = domain.EventPlay
	EventPause      = domain.EventPause
	EventSeek       = domain.EventSeek
	EventChat       = domain.EventChat
	EventJoin       = domain.EventJoin
	EventLeave      = domain.EventLeave
	EventHostChange = domain.EventHostChange
)

const (
	ModeIdle    = domain.ModeIdle
	ModePlaying = domain.ModePlaying
	ModePaused  = domain.ModePaused
)

const (
	ReasonNotHost        = domain.ReasonNotHost
	ReasonStaleState     = domain.ReasonStaleState
	ReasonInvalidPayload = domain.ReasonInvalidPayload
	ReasonRoomNotFound   = domain.ReasonRoomNotFound
)

const (
	ConnectionConnected    = domain.ConnectionConnected
	ConnectionReconnecting = domain.ConnectionReconnecting
	ConnectionDisconnected = domain.ConnectionDisconnected
)

func NewPlaybackState() PlaybackState {
	return domain.NewPlaybackState()
}
