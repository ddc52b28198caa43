package syncclient

import "encoding/json"

const (
	closeReplaced       = 4000
	closeLeft           = 4001
	closeResyncRequired = 4008
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type Snapshot struct {
	RoomId       string        `json:"room_id"`
	NextSeq      uint64        `json:"next_seq"`
	RoomTime     int64         `json:"room_time"`
	HostId       string        `json:"host_id"`
	Playback     PlaybackState `json:"playback"`
	Position     float64       `json:"position"`
	Participants []Participant `json:"participants"`
}

type joinedPayload struct {
	Participant    Participant `json:"participant"`
	Snapshot       Snapshot    `json:"snapshot"`
	RecentChat     []Event     `json:"recent_chat"`
	AssignedHost   bool        `json:"assigned_host"`
	ResumeToken    string      `json:"resume_token"`
	DriftTolerance float64     `json:"drift_tolerance"`
	RoomTime       int64       `json:"room_time"`
}

type resumedPayload struct {
	Participant    Participant `json:"participant"`
	Events         []Event     `json:"events"`
	Snapshot       *Snapshot   `json:"snapshot"`
	RecentChat     []Event     `json:"recent_chat"`
	ResumeToken    string      `json:"resume_token"`
	DriftTolerance float64     `json:"drift_tolerance"`
	RoomTime       int64       `json:"room_time"`
}

type pongPayload struct {
	ClientTime int64 `json:"client_time"`
	RoomTime   int64 `json:"room_time"`
}

type RejectedPayload struct {
	Reason      Reason `json:"reason"`
	Message     string `json:"message"`
	MessageType string `json:"message_type"`
	Nonce       string `json:"nonce"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type proposePayload struct {
	Type    EventType `json:"type"`
	Payload Payload   `json:"payload"`
}

type pingPayload struct {
	ClientTime int64 `json:"client_time"`
}

type ackPayload struct {
	Seq uint64 `json:"seq"`
}

type promotePayload struct {
	ParticipantId string `json:"participant_id"`
}
