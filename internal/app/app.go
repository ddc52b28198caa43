package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sharetube/roomsync/internal/controller"
	"github.com/sharetube/roomsync/internal/repository/connection/inmemory"
	"github.com/sharetube/roomsync/internal/repository/room/redis"
	"github.com/sharetube/roomsync/internal/service/room"
	"github.com/sharetube/roomsync/pkg/ctxlogger"
	"github.com/sharetube/roomsync/pkg/redisclient"
)

type AppConfig struct {
	Secret          string        `json:"-"`
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	LogLevel        string        `json:"log_level"`
	RedisPort       int           `json:"redis_port"`
	RedisHost       string        `json:"redis_host"`
	RedisPassword   string        `json:"-"`
	RoomTTL         time.Duration `json:"room_ttl"`
	MembersLimit    int           `json:"members_limit"`
	OpenControl     bool          `json:"open_control"`
	DriftTolerance  float64       `json:"drift_tolerance"`
	RecentChatLimit int           `json:"recent_chat_limit"`
	QueueSize       int           `json:"queue_size"`
	ReconnectGrace  time.Duration `json:"reconnect_grace"`
	EmptyRoomGrace  time.Duration `json:"empty_room_grace"`
	LockTimeout     time.Duration `json:"lock_timeout"`
	PersistRetry    time.Duration `json:"persist_retry"`
	CommandRate     float64       `json:"command_rate"`
	CommandBurst    int           `json:"command_burst"`
	JoinRateLimit   int           `json:"join_rate_limit"`
}

func (cfg *AppConfig) Validate() error {
	var errs []error
	if cfg.Secret == "" {
		errs = append(errs, errors.New("secret must be set"))
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", cfg.Port))
	}
	if cfg.MembersLimit < 1 {
		errs = append(errs, errors.New("members limit must be greater than 0"))
	}
	if cfg.DriftTolerance <= 0 {
		errs = append(errs, errors.New("drift tolerance must be greater than 0"))
	}
	if cfg.QueueSize < 1 {
		errs = append(errs, errors.New("queue size must be greater than 0"))
	}
	if cfg.RecentChatLimit < 0 {
		errs = append(errs, errors.New("recent chat limit must not be negative"))
	}
	if cfg.ReconnectGrace <= 0 || cfg.EmptyRoomGrace <= 0 || cfg.LockTimeout <= 0 {
		errs = append(errs, errors.New("grace periods and lock timeout must be positive"))
	}
	if cfg.RoomTTL < cfg.EmptyRoomGrace {
		errs = append(errs, errors.New("room ttl must not be shorter than the empty room grace"))
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level: %w", err))
	}

	return errors.Join(errs...)
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	logLevel.UnmarshalText([]byte(strings.ToUpper(level)))

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(h)
}

func serviceConfig(cfg *AppConfig) *room.Config {
	return &room.Config{
		Secret:          cfg.Secret,
		MembersLimit:    cfg.MembersLimit,
		OpenControl:     cfg.OpenControl,
		DriftTolerance:  cfg.DriftTolerance,
		RecentChatLimit: cfg.RecentChatLimit,
		QueueSize:       cfg.QueueSize,
		ReconnectGrace:  cfg.ReconnectGrace,
		EmptyRoomGrace:  cfg.EmptyRoomGrace,
		LockTimeout:     cfg.LockTimeout,
		PersistRetry:    cfg.PersistRetry,
	}
}

func controllerConfig(cfg *AppConfig) *controller.Config {
	return &controller.Config{
		CommandRate:   cfg.CommandRate,
		CommandBurst:  cfg.CommandBurst,
		JoinRateLimit: cfg.JoinRateLimit,
	}
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	roomRepo := redis.NewRepo(rc, cfg.RoomTTL, logger)
	connRepo := inmemory.NewRepo(logger)
	roomService := room.NewService(roomRepo, logger, serviceConfig(cfg))
	controller := controller.NewController(roomService, connRepo, logger, controllerConfig(cfg))
	server := &http.Server{
		Addr:              cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Handler:           controller.GetMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)
	defer serverStopCtx()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sig)

	shutdownErr := make(chan error, 1)
	go func() {
		select {
		case <-sig:
		case <-serverCtx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(serverCtx), 30*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if serviceErr := roomService.Shutdown(shutdownCtx); serviceErr != nil {
			logger.ErrorContext(shutdownCtx, "events left unpersisted", "error", serviceErr)
		}
		shutdownErr <- err
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-shutdownErr
}
