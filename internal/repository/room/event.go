package room

import "github.com/sharetube/roomsync/internal/domain"

type AppendEventParams struct {
	RoomId string
	Event  domain.Event
}

// GetEventsParams selects events with FromSeq <= seq <= ToSeq.
// A negative ToSeq means up to the last committed event.
type GetEventsParams struct {
	RoomId  string
	FromSeq uint64
	ToSeq   int64
}
