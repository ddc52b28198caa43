package redis

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc             *redis.Client
	logger         *slog.Logger
	expireDuration time.Duration
	appendScript   *redis.Script
}

func NewRepo(rc *redis.Client, expireDuration time.Duration, logger *slog.Logger) *repo {
	return &repo{
		rc:             rc,
		logger:         logger,
		expireDuration: expireDuration,
		// appends ARGV[2] only when the list holds exactly ARGV[1] events, so the
		// list never has a gap or a duplicate seq.
		appendScript: redis.NewScript(`
			if redis.call('EXISTS', KEYS[1]) == 0 then
				return -1
			end
			local n = redis.call('LLEN', KEYS[2])
			local seq = tonumber(ARGV[1])
			if n > seq then
				return 2
			end
			if n < seq then
				return 0
			end
			redis.call('RPUSH', KEYS[2], ARGV[2])
			redis.call('EXPIRE', KEYS[1], ARGV[3])
			redis.call('EXPIRE', KEYS[2], ARGV[3])
			return 1
		`),
	}
}
