package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sharetube/roomsync/internal/domain"
	"github.com/sharetube/roomsync/internal/repository/room"
)

var (
	ErrTimeout             = errors.New("room is busy, retry later")
	ErrQueueOverflow       = errors.New("outbound queue overflow")
	ErrDisconnected        = errors.New("participant disconnected")
	ErrReplaced            = errors.New("subscription replaced by a newer connection")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrInvalidToken        = errors.New("invalid resume token")
	ErrRoomFull            = errors.New("room is full")
	ErrShuttingDown        = errors.New("service is shutting down")
)

type iRoomRepo interface {
	CreateRoom(context.Context, *room.CreateRoomParams) error
	GetRoom(context.Context, string) (room.Room, error)
	RemoveRoom(context.Context, string) error
	AppendEvent(context.Context, *room.AppendEventParams) error
	GetEvents(context.Context, *room.GetEventsParams) ([]domain.Event, error)
}

type Config struct {
	Secret       string
	MembersLimit int
	OpenControl  bool
	// DriftTolerance is advertised to clients, in seconds.
	DriftTolerance  float64
	RecentChatLimit int
	QueueSize       int
	ReconnectGrace  time.Duration
	EmptyRoomGrace  time.Duration
	LockTimeout     time.Duration
	PersistTimeout  time.Duration
	// PersistRetry bounds the retries of a single durable write.
	PersistRetry time.Duration
	// Clock is the wall clock the room clocks are derived from. Defaults to time.Now.
	Clock func() time.Time
}

func (cfg *Config) setDefaults() {
	if cfg.MembersLimit <= 0 {
		cfg.MembersLimit = 9
	}
	if cfg.DriftTolerance <= 0 {
		cfg.DriftTolerance = 1.0
	}
	if cfg.RecentChatLimit <= 0 {
		cfg.RecentChatLimit = 50
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 200
	}
	if cfg.ReconnectGrace <= 0 {
		cfg.ReconnectGrace = 30 * time.Second
	}
	if cfg.EmptyRoomGrace <= 0 {
		cfg.EmptyRoomGrace = 5 * time.Minute
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	if cfg.PersistRetry <= 0 {
		cfg.PersistRetry = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
}

type service struct {
	roomRepo iRoomRepo
	logger   *slog.Logger
	cfg      Config

	mu       sync.Mutex
	hubs     map[string]*hub
	closed   bool
	persists sync.WaitGroup
}

func NewService(roomRepo iRoomRepo, logger *slog.Logger, cfg *Config) *service {
	c := *cfg
	c.setDefaults()

	return &service{
		roomRepo: roomRepo,
		logger:   logger,
		cfg:      c,
		hubs:     make(map[string]*hub),
	}
}

// Shutdown stops accepting new rooms and waits until every committed event has
// been written to the durable log, or ctx is done.
func (s *service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	hubs := make([]*hub, 0, len(s.hubs))
	for _, h := range s.hubs {
		hubs = append(hubs, h)
	}
	s.mu.Unlock()

	for _, h := range hubs {
		if err := s.closeHub(ctx, h); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.persists.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// closeHub stops the room's timers so nothing is committed after shutdown,
// then lets the persister drain.
func (s *service) closeHub(ctx context.Context, h *hub) error {
	for {
		err := s.acquire(ctx, h)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrTimeout) {
			return err
		}
	}

	h.closed = true
	h.cancelTeardown()
	for _, m := range h.members {
		m.stopGrace()
	}
	h.release()

	h.persister.stop()

	return nil
}
