package controller

import (
	"github.com/sharetube/roomsync/internal/domain"
	"github.com/sharetube/roomsync/internal/service/room"
)

const (
	closeReplaced       = 4000
	closeLeft           = 4001
	closeResyncRequired = 4008
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type JoinedOutput struct {
	Participant    domain.Participant `json:"participant"`
	Snapshot       room.Snapshot      `json:"snapshot"`
	RecentChat     []domain.Event     `json:"recent_chat"`
	AssignedHost   bool               `json:"assigned_host"`
	ResumeToken    string             `json:"resume_token"`
	DriftTolerance float64            `json:"drift_tolerance"`
	RoomTime       int64              `json:"room_time"`
}

// ResumedOutput holds either the missed events or a snapshot to restart from.
type ResumedOutput struct {
	Participant    domain.Participant `json:"participant"`
	Events         []domain.Event     `json:"events,omitempty"`
	Snapshot       *room.Snapshot     `json:"snapshot,omitempty"`
	RecentChat     []domain.Event     `json:"recent_chat,omitempty"`
	ResumeToken    string             `json:"resume_token"`
	DriftTolerance float64            `json:"drift_tolerance"`
	RoomTime       int64              `json:"room_time"`
}

type PongOutput struct {
	ClientTime int64 `json:"client_time"`
	RoomTime   int64 `json:"room_time"`
}

type RejectedOutput struct {
	Reason      domain.Reason `json:"reason"`
	Message     string        `json:"message"`
	MessageType string        `json:"message_type"`
	Nonce       string        `json:"nonce,omitempty"`
}

type ErrorOutput struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
