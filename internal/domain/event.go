package domain

type EventType string

const (
	EventLoad       EventType = "LOAD"
	EventPlay       EventType = "PLAY"
	EventPause      EventType = "PAUSE"
	EventSeek       EventType = "SEEK"
	EventChat       EventType = "CHAT"
	EventJoin       EventType = "JOIN"
	EventLeave      EventType = "LEAVE"
	EventHostChange EventType = "HOST_CHANGE"
)

// IsPlayback reports whether the event type changes the playback state.
func (t EventType) IsPlayback() bool {
	switch t {
	case EventLoad, EventPlay, EventPause, EventSeek:
		return true
	}

	return false
}

// IsProposable reports whether participants may propose the event type directly.
// Presence events are committed by the server only.
func (t EventType) IsProposable() bool {
	return t.IsPlayback() || t == EventChat
}

type Payload struct {
	VideoRef      *string  `json:"video_ref,omitempty"`
	Position      *float64 `json:"position,omitempty"`
	Text          string   `json:"text,omitempty"`
	Nonce         string   `json:"nonce,omitempty"`
	MessageId     string   `json:"message_id,omitempty"`
	ParticipantId string   `json:"participant_id,omitempty"`
	DisplayName   string   `json:"display_name,omitempty"`
}

// Event is a committed, immutable entry of a room's log.
// Playback is the state produced by the event and is set for playback events only.
type Event struct {
	Seq          uint64         `json:"seq"`
	Type         EventType      `json:"type"`
	Payload      Payload        `json:"payload"`
	CommittedAt  int64          `json:"committed_at"`
	OriginatorId string         `json:"originator_id"`
	Playback     *PlaybackState `json:"playback,omitempty"`
}

func StringPtr(s string) *string {
	return &s
}

func Float64Ptr(f float64) *float64 {
	return &f
}
