package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sharetube/roomsync/internal/domain"
	"github.com/sharetube/roomsync/internal/metrics"
	"github.com/sharetube/roomsync/internal/repository/connection"
	"github.com/sharetube/roomsync/internal/service/room"
	"github.com/sharetube/roomsync/pkg/ctxlogger"
	"github.com/sharetube/roomsync/pkg/rest"
	"golang.org/x/time/rate"
)

type connectInput struct {
	RoomId        string `json:"room_id" validate:"max=128"`
	ParticipantId string `json:"participant_id" validate:"required,max=64"`
	DisplayName   string `json:"display_name" validate:"required,max=64"`
}

type session struct {
	member connection.Member
	sub    *room.Subscription
	first  *Output
}

// connect admits the participant before upgrading, so join failures are
// reported as plain HTTP errors.
func (c controller) connect(w http.ResponseWriter, r *http.Request) {
	input := connectInput{
		RoomId: chi.URLParam(r, "room-id"),
	}
	input.ParticipantId, _ = c.mustHeader(r, "Participant-Id")
	input.DisplayName, _ = c.mustHeader(r, "Display-Name")

	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.logger.DebugContext(r.Context(), "invalid connect request", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	var lastSeq *uint64
	if v := r.URL.Query().Get("last-seq"); v != "" {
		seq, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "last-seq must be a non-negative integer"})
			return
		}
		lastSeq = &seq
	}

	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("participant_id", input.ParticipantId))

	s, err := c.enterRoom(ctx, &input, r.URL.Query().Get("resume-token"), lastSeq)
	if err != nil {
		c.logger.InfoContext(ctx, "failed to enter room", "error", err)
		c.writeHTTPError(w, err)
		return
	}
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", s.member.RoomId))

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to upgrade to websocket", "error", err)
		c.disconnect(ctx, s)
		return
	}

	c.serve(ctx, conn, s)
}

func (c controller) enterRoom(ctx context.Context, input *connectInput, resumeToken string, lastSeq *uint64) (*session, error) {
	if resumeToken != "" && input.RoomId != "" {
		resp, err := c.roomService.Resume(ctx, &room.ResumeParams{
			RoomId:        input.RoomId,
			ParticipantId: input.ParticipantId,
			ResumeToken:   resumeToken,
			LastSeq:       lastSeq,
		})
		if err == nil {
			return &session{
				member: connection.Member{RoomId: input.RoomId, ParticipantId: input.ParticipantId},
				sub:    resp.Subscription,
				first: &Output{
					Type: "RESUMED",
					Payload: ResumedOutput{
						Participant:    resp.Participant,
						Events:         resp.Events,
						Snapshot:       resp.Snapshot,
						RecentChat:     resp.RecentChat,
						ResumeToken:    resp.ResumeToken,
						DriftTolerance: c.roomService.DriftTolerance(),
						RoomTime:       c.roomTime(ctx, input.RoomId),
					},
				},
			}, nil
		}

		if !errors.Is(err, room.ErrParticipantNotFound) &&
			!errors.Is(err, room.ErrInvalidToken) &&
			!errors.Is(err, domain.ErrRoomNotFound) {
			return nil, err
		}

		c.logger.InfoContext(ctx, "cannot resume, joining instead", "error", err)
	}

	resp, err := c.roomService.Join(ctx, &room.JoinParams{
		RoomId:        input.RoomId,
		ParticipantId: input.ParticipantId,
		DisplayName:   input.DisplayName,
	})
	if err != nil {
		return nil, err
	}

	return &session{
		member: connection.Member{RoomId: resp.RoomId, ParticipantId: input.ParticipantId},
		sub:    resp.Subscription,
		first: &Output{
			Type: "JOINED",
			Payload: JoinedOutput{
				Participant:    resp.Participant,
				Snapshot:       resp.Snapshot,
				RecentChat:     resp.RecentChat,
				AssignedHost:   resp.AssignedHost,
				ResumeToken:    resp.ResumeToken,
				DriftTolerance: c.roomService.DriftTolerance(),
				RoomTime:       resp.Snapshot.RoomTime,
			},
		},
	}, nil
}

func (c controller) roomTime(ctx context.Context, roomId string) int64 {
	roomTime, err := c.roomService.RoomTime(ctx, roomId)
	if err != nil {
		c.logger.DebugContext(ctx, "failed to get room time", "error", err)
	}

	return roomTime
}

func (c controller) serve(ctx context.Context, conn *websocket.Conn, s *session) {
	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()
	defer c.disconnect(context.WithoutCancel(ctx), s)
	defer conn.Close()

	replaced, err := c.connRepo.Add(conn, s.member)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to register connection", "error", err)
		return
	}
	defer c.connRepo.Remove(conn)

	if replaced != nil {
		c.closeConn(replaced, closeReplaced, "replaced by a newer connection")
	}

	conn.SetReadLimit(c.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	if err := c.writeToConn(ctx, conn, s.first); err != nil {
		c.logger.InfoContext(ctx, "failed to write first message", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctx = context.WithValue(ctx, roomIdCtxKey, s.member.RoomId)
	ctx = context.WithValue(ctx, participantIdCtxKey, s.member.ParticipantId)
	ctx = context.WithValue(ctx, limiterCtxKey, rate.NewLimiter(rate.Limit(c.cfg.CommandRate), c.cfg.CommandBurst))

	go c.writePump(ctx, conn, s.sub)

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.InfoContext(ctx, "connection closed", "error", err)
	}
}

// writePump is the only goroutine that forwards committed events to conn.
func (c controller) writePump(ctx context.Context, conn *websocket.Conn, sub *room.Subscription) {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-sub.Events():
			if err := c.writeToConn(ctx, conn, &Output{Type: "EVENT", Payload: e}); err != nil {
				c.logger.InfoContext(ctx, "failed to write event", "seq", e.Seq, "error", err)
				conn.Close()
				return
			}
		case <-sub.Done():
			switch err := sub.Err(); {
			case errors.Is(err, room.ErrQueueOverflow):
				c.closeConn(conn, closeResyncRequired, "resync required")
			case errors.Is(err, room.ErrReplaced):
				c.closeConn(conn, closeReplaced, "replaced by a newer connection")
			default:
				c.closeConn(conn, closeLeft, "left")
			}
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.DebugContext(ctx, "failed to ping", "error", err)
				conn.Close()
				return
			}
		}
	}
}

func (c controller) disconnect(ctx context.Context, s *session) {
	if err := c.roomService.Disconnect(ctx, &room.DisconnectParams{
		RoomId:        s.member.RoomId,
		ParticipantId: s.member.ParticipantId,
		Subscription:  s.sub,
	}); err != nil {
		c.logger.DebugContext(ctx, "failed to disconnect", "error", err)
	}
}

func (c controller) writeToConn(ctx context.Context, conn *websocket.Conn, output *Output) error {
	if err := c.connRepo.WriteJSON(conn, output, c.cfg.WriteWait); err != nil {
		return err
	}

	c.logger.DebugContext(ctx, "message sent", "type", output.Type)

	return nil
}

func (c controller) closeConn(conn *websocket.Conn, code int, text string) {
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(c.cfg.WriteWait))
	conn.Close()
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")

	snapshot, err := c.roomService.GetRoomState(r.Context(), roomId)
	if err != nil {
		c.logger.InfoContext(r.Context(), "failed to get room state", "error", err)
		c.writeHTTPError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"room": snapshot})
}

func (c controller) writeHTTPError(w http.ResponseWriter, err error) {
	if reason, ok := domain.ReasonOf(err); ok {
		status := http.StatusConflict
		switch reason {
		case domain.ReasonInvalidPayload:
			status = http.StatusBadRequest
		case domain.ReasonRoomNotFound:
			status = http.StatusNotFound
		case domain.ReasonNotHost:
			status = http.StatusForbidden
		}
		rest.WriteJSON(w, status, rest.Envelope{"error": reason, "message": err.Error()})
		return
	}

	switch {
	case errors.Is(err, room.ErrRoomFull):
		rest.WriteJSON(w, http.StatusConflict, rest.Envelope{"error": "ROOM_FULL", "message": err.Error()})
	case errors.Is(err, room.ErrTimeout), errors.Is(err, room.ErrShuttingDown):
		w.Header().Set("Retry-After", "1")
		rest.WriteJSON(w, http.StatusServiceUnavailable, rest.Envelope{"error": "UNAVAILABLE", "message": err.Error()})
	default:
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "INTERNAL", "message": "internal error"})
	}
}
