package connection

import "errors"

var (
	ErrNotFound      = errors.New("connection not found")
	ErrAlreadyExists = errors.New("connection already exists")
)

// Member identifies who a connection belongs to.
type Member struct {
	RoomId        string
	ParticipantId string
}
