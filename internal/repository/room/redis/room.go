package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/roomsync/internal/repository/room"
)

const createdAtField = "created_at"

func (r repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	roomKey := r.getRoomKey(params.RoomId)

	created, err := r.rc.HSetNX(ctx, roomKey, createdAtField, params.CreatedAt.UnixMilli()).Result()
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	if !created {
		r.logger.DebugContext(ctx, "returned", "error", room.ErrRoomAlreadyExists)
		return room.ErrRoomAlreadyExists
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	createdAt, err := r.rc.HGet(ctx, r.getRoomKey(roomId), createdAtField).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return room.Room{}, room.ErrRoomNotFound
		}

		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	createdAtMs, err := strconv.ParseInt(createdAt, 10, 64)
	if err != nil {
		return room.Room{}, fmt.Errorf("failed to parse room created at: %w", err)
	}

	return room.Room{
		Id:        roomId,
		CreatedAt: time.UnixMilli(createdAtMs),
	}, nil
}

func (r repo) RemoveRoom(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomId)
	pipe := r.rc.TxPipeline()

	pipe.Del(ctx, r.getRoomKey(roomId))
	pipe.Del(ctx, r.getEventsKey(roomId))

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to remove room: %w", err)
	}

	return nil
}
