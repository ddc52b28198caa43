package redis

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/sharetube/roomsync/internal/domain"
	"github.com/sharetube/roomsync/internal/repository/room"
)

// The events list is indexed by seq: seq N is stored at list index N.

func (r repo) AppendEvent(ctx context.Context, params *room.AppendEventParams) error {
	r.logger.DebugContext(ctx, "called", "room_id", params.RoomId, "seq", params.Event.Seq, "type", params.Event.Type)

	data, err := json.Marshal(params.Event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	res, err := r.appendScript.Run(ctx, r.rc,
		[]string{r.getRoomKey(params.RoomId), r.getEventsKey(params.RoomId)},
		params.Event.Seq, data, r.expireSeconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	switch res {
	case -1:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomNotFound)
		return room.ErrRoomNotFound
	case 0:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrSeqConflict)
		return room.ErrSeqConflict
	case 2:
		r.logger.DebugContext(ctx, "returned", "error", room.ErrEventAlreadyStored)
		return room.ErrEventAlreadyStored
	}

	return nil
}

func (r repo) GetEvents(ctx context.Context, params *room.GetEventsParams) ([]domain.Event, error) {
	raw, err := r.rc.LRange(ctx, r.getEventsKey(params.RoomId), int64(params.FromSeq), params.ToSeq).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	events := make([]domain.Event, 0, len(raw))
	for i, item := range raw {
		var event domain.Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event %d: %w", params.FromSeq+uint64(i), err)
		}

		events = append(events, event)
	}

	return events, nil
}

func (r repo) GetEventsCount(ctx context.Context, roomId string) (uint64, error) {
	n, err := r.rc.LLen(ctx, r.getEventsKey(roomId)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get events count: %w", err)
	}

	return uint64(n), nil
}
