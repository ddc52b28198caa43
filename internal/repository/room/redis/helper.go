package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r repo) getEventsKey(roomId string) string {
	return "room:" + roomId + ":events"
}

func (r repo) expireSeconds() int64 {
	return int64(r.expireDuration.Seconds())
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}
