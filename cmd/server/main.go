package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sharetube/roomsync/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
	usage        string
}

var (
	secret = configVar[string]{
		envKey:  "SERVER_SECRET",
		flagKey: "secret",
		usage:   "Secret used to sign resume tokens",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 80,
		usage:        "Server port",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
		usage:        "Server host",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
		usage:        "Logging level",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 9,
		usage:        "Maximum number of participants in a room",
	}
	openControl = configVar[bool]{
		envKey:       "SERVER_OPEN_CONTROL",
		flagKey:      "open-control",
		defaultValue: false,
		usage:        "Let every participant control playback",
	}
	driftTolerance = configVar[float64]{
		envKey:       "SERVER_DRIFT_TOLERANCE",
		flagKey:      "drift-tolerance",
		defaultValue: 1.0,
		usage:        "Seconds a client may drift before it seeks",
	}
	recentChatLimit = configVar[int]{
		envKey:       "SERVER_RECENT_CHAT_LIMIT",
		flagKey:      "recent-chat-limit",
		defaultValue: 50,
		usage:        "Chat messages sent to a joining participant",
	}
	queueSize = configVar[int]{
		envKey:       "SERVER_QUEUE_SIZE",
		flagKey:      "queue-size",
		defaultValue: 200,
		usage:        "Outbound events buffered per participant",
	}
	reconnectGrace = configVar[time.Duration]{
		envKey:       "SERVER_RECONNECT_GRACE",
		flagKey:      "reconnect-grace",
		defaultValue: 30 * time.Second,
		usage:        "How long a disconnected participant keeps its place",
	}
	emptyRoomGrace = configVar[time.Duration]{
		envKey:       "SERVER_EMPTY_ROOM_GRACE",
		flagKey:      "empty-room-grace",
		defaultValue: 5 * time.Minute,
		usage:        "How long an empty room is kept",
	}
	lockTimeout = configVar[time.Duration]{
		envKey:       "SERVER_LOCK_TIMEOUT",
		flagKey:      "lock-timeout",
		defaultValue: 5 * time.Second,
		usage:        "How long an operation waits for its room",
	}
	persistRetry = configVar[time.Duration]{
		envKey:       "SERVER_PERSIST_RETRY",
		flagKey:      "persist-retry",
		defaultValue: time.Minute,
		usage:        "How long a room write to redis is retried before the room log is dropped",
	}
	roomTTL = configVar[time.Duration]{
		envKey:       "SERVER_ROOM_TTL",
		flagKey:      "room-ttl",
		defaultValue: 14 * 24 * time.Hour,
		usage:        "Expiration of room data in redis",
	}
	commandRate = configVar[float64]{
		envKey:       "SERVER_COMMAND_RATE",
		flagKey:      "command-rate",
		defaultValue: 10,
		usage:        "Commands per second allowed per connection",
	}
	commandBurst = configVar[int]{
		envKey:       "SERVER_COMMAND_BURST",
		flagKey:      "command-burst",
		defaultValue: 20,
		usage:        "Command burst allowed per connection",
	}
	joinRateLimit = configVar[int]{
		envKey:       "SERVER_JOIN_RATE_LIMIT",
		flagKey:      "join-rate-limit",
		defaultValue: 60,
		usage:        "Websocket connections per IP per minute",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
		usage:        "Redis port",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
		usage:        "Redis host",
	}
	redisPassword = configVar[string]{
		envKey:  "REDIS_PASSWORD",
		flagKey: "redis-password",
		usage:   "Redis password",
	}
)

func bind[T any](v configVar[T], register func(name string, value T, usage string) *T) {
	register(v.flagKey, v.defaultValue, v.usage)
	viper.BindEnv(v.flagKey, v.envKey)
	viper.SetDefault(v.flagKey, v.defaultValue)
}

func loadAppConfig() *app.AppConfig {
	bind(secret, pflag.String)
	bind(port, pflag.Int)
	bind(host, pflag.String)
	bind(logLevel, pflag.String)
	bind(membersLimit, pflag.Int)
	bind(openControl, pflag.Bool)
	bind(driftTolerance, pflag.Float64)
	bind(recentChatLimit, pflag.Int)
	bind(queueSize, pflag.Int)
	bind(reconnectGrace, pflag.Duration)
	bind(emptyRoomGrace, pflag.Duration)
	bind(lockTimeout, pflag.Duration)
	bind(persistRetry, pflag.Duration)
	bind(roomTTL, pflag.Duration)
	bind(commandRate, pflag.Float64)
	bind(commandBurst, pflag.Int)
	bind(joinRateLimit, pflag.Int)
	bind(redisPort, pflag.Int)
	bind(redisHost, pflag.String)
	bind(redisPassword, pflag.String)
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	return &app.AppConfig{
		Secret:          viper.GetString(secret.flagKey),
		Host:            viper.GetString(host.flagKey),
		Port:            viper.GetInt(port.flagKey),
		LogLevel:        viper.GetString(logLevel.flagKey),
		MembersLimit:    viper.GetInt(membersLimit.flagKey),
		OpenControl:     viper.GetBool(openControl.flagKey),
		DriftTolerance:  viper.GetFloat64(driftTolerance.flagKey),
		RecentChatLimit: viper.GetInt(recentChatLimit.flagKey),
		QueueSize:       viper.GetInt(queueSize.flagKey),
		ReconnectGrace:  viper.GetDuration(reconnectGrace.flagKey),
		EmptyRoomGrace:  viper.GetDuration(emptyRoomGrace.flagKey),
		LockTimeout:     viper.GetDuration(lockTimeout.flagKey),
		PersistRetry:    viper.GetDuration(persistRetry.flagKey),
		RoomTTL:         viper.GetDuration(roomTTL.flagKey),
		CommandRate:     viper.GetFloat64(commandRate.flagKey),
		CommandBurst:    viper.GetInt(commandBurst.flagKey),
		JoinRateLimit:   viper.GetInt(joinRateLimit.flagKey),
		RedisPort:       viper.GetInt(redisPort.flagKey),
		RedisHost:       viper.GetString(redisHost.flagKey),
		RedisPassword:   viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
