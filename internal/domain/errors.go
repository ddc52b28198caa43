package domain

import (
	"errors"
	"fmt"
)

// Reason is the code a proposer sees when its proposal is not committed.
type Reason string

const (
	ReasonNotHost        Reason = "NOT_HOST"
	ReasonStaleState     Reason = "STALE_STATE"
	ReasonInvalidPayload Reason = "INVALID_PAYLOAD"
	ReasonRoomNotFound   Reason = "ROOM_NOT_FOUND"
)

var (
	ErrNotHost        = errors.New("not host")
	ErrStaleState     = errors.New("stale state")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrRoomNotFound   = errors.New("room not found")
	ErrSequenceGap    = errors.New("sequence gap")
)

type RejectError struct {
	Reason Reason
	Msg    string
}

func Reject(reason Reason, format string, args ...any) *RejectError {
	return &RejectError{
		Reason: reason,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func (e *RejectError) Error() string {
	if e.Msg == "" {
		return string(e.Reason)
	}

	return string(e.Reason) + ": " + e.Msg
}

// Unwrap lets errors.Is match the sentinel of the reason.
func (e *RejectError) Unwrap() error {
	switch e.Reason {
	case ReasonNotHost:
		return ErrNotHost
	case ReasonStaleState:
		return ErrStaleState
	case ReasonInvalidPayload:
		return ErrInvalidPayload
	case ReasonRoomNotFound:
		return ErrRoomNotFound
	}

	return nil
}

func ReasonOf(err error) (Reason, bool) {
	var rejectErr *RejectError
	if errors.As(err, &rejectErr) {
		return rejectErr.Reason, true
	}

	return "", false
}
