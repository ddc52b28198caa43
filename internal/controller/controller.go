package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/roomsync/internal/repository/connection"
	"github.com/sharetube/roomsync/internal/service/room"
	"github.com/sharetube/roomsync/pkg/validator"
	"github.com/sharetube/roomsync/pkg/wsrouter"
)

type iRoomService interface {
	Join(context.Context, *room.JoinParams) (room.JoinResponse, error)
	Resume(context.Context, *room.ResumeParams) (room.ResumeResponse, error)
	Disconnect(context.Context, *room.DisconnectParams) error
	Leave(context.Context, *room.LeaveParams) error
	Ack(context.Context, *room.AckParams) error
	ProposeCommand(context.Context, *room.ProposeCommandParams) (room.ProposeCommandResponse, error)
	PromoteParticipant(context.Context, *room.PromoteParticipantParams) (room.PromoteParticipantResponse, error)
	GetRoomState(context.Context, string) (room.Snapshot, error)
	RoomTime(context.Context, string) (int64, error)
	DriftTolerance() float64
}

type iConnRepo interface {
	Add(*websocket.Conn, connection.Member) (*websocket.Conn, error)
	Remove(*websocket.Conn) (connection.Member, error)
	Count() int
	WriteJSON(conn *websocket.Conn, v any, timeout time.Duration) error
}

type Config struct {
	// CommandRate and CommandBurst bound PROPOSE and PROMOTE messages per connection.
	CommandRate  float64
	CommandBurst int
	// JoinRateLimit is the number of websocket upgrades allowed per IP per minute.
	JoinRateLimit  int
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

func (cfg *Config) setDefaults() {
	if cfg.CommandRate <= 0 {
		cfg.CommandRate = 10
	}
	if cfg.CommandBurst <= 0 {
		cfg.CommandBurst = 20
	}
	if cfg.JoinRateLimit <= 0 {
		cfg.JoinRateLimit = 60
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 16 << 10
	}
}

type controller struct {
	roomService iRoomService
	connRepo    iConnRepo
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	wsmux       *wsrouter.WSRouter
	logger      *slog.Logger
	cfg         Config
}

func NewController(roomService iRoomService, connRepo iConnRepo, logger *slog.Logger, cfg *Config) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		connRepo:    connRepo,
		validate:    validator.NewValidator(),
		logger:      logger,
		cfg:         *cfg,
	}
	c.cfg.setDefaults()
	c.wsmux = c.getWSRouter()

	return c
}
