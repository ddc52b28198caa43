package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/sharetube/roomsync/internal/domain"
	"github.com/sharetube/roomsync/internal/service/room"
	"github.com/sharetube/roomsync/pkg/wsrouter"
)

var errRateLimited = errors.New("too many commands")

type EmptyInput struct{}

// proposalError carries the client nonce so a rejected chat message can be
// matched to its tentative copy.
type proposalError struct {
	nonce string
	err   error
}

func (e *proposalError) Error() string {
	return e.err.Error()
}

func (e *proposalError) Unwrap() error {
	return e.err
}

type ProposeInput struct {
	Type    domain.EventType `json:"type"`
	Payload domain.Payload   `json:"payload"`
}

func (c controller) handlePropose(ctx context.Context, _ *websocket.Conn, input ProposeInput) error {
	roomId := c.getRoomIdFromCtx(ctx)
	participantId := c.getParticipantIdFromCtx(ctx)

	// the committed event reaches the proposer through its subscription
	if _, err := c.roomService.ProposeCommand(ctx, &room.ProposeCommandParams{
		RoomId:   roomId,
		SenderId: participantId,
		Type:     input.Type,
		Payload:  input.Payload,
	}); err != nil {
		return &proposalError{
			nonce: input.Payload.Nonce,
			err:   fmt.Errorf("failed to propose command: %w", err),
		}
	}

	return nil
}

type PingInput struct {
	ClientTime int64 `json:"client_time"`
}

func (c controller) handlePing(ctx context.Context, conn *websocket.Conn, input PingInput) error {
	roomTime, err := c.roomService.RoomTime(ctx, c.getRoomIdFromCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to get room time: %w", err)
	}

	return c.writeToConn(ctx, conn, &Output{
		Type: "PONG",
		Payload: PongOutput{
			ClientTime: input.ClientTime,
			RoomTime:   roomTime,
		},
	})
}

type AckInput struct {
	Seq uint64 `json:"seq"`
}

func (c controller) handleAck(ctx context.Context, _ *websocket.Conn, input AckInput) error {
	if err := c.roomService.Ack(ctx, &room.AckParams{
		RoomId:        c.getRoomIdFromCtx(ctx),
		ParticipantId: c.getParticipantIdFromCtx(ctx),
		Seq:           input.Seq,
	}); err != nil {
		return fmt.Errorf("failed to ack: %w", err)
	}

	return nil
}

func (c controller) handleLeave(ctx context.Context, conn *websocket.Conn, _ EmptyInput) error {
	if err := c.roomService.Leave(ctx, &room.LeaveParams{
		RoomId:        c.getRoomIdFromCtx(ctx),
		ParticipantId: c.getParticipantIdFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to leave: %w", err)
	}

	c.closeConn(conn, closeLeft, "left")

	return nil
}

type PromoteInput struct {
	ParticipantId string `json:"participant_id" validate:"required,max=64"`
}

func (c controller) handlePromote(ctx context.Context, _ *websocket.Conn, input PromoteInput) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return domain.Reject(domain.ReasonInvalidPayload, "%s", validationErrors[0].Message)
	}

	if _, err := c.roomService.PromoteParticipant(ctx, &room.PromoteParticipantParams{
		RoomId:        c.getRoomIdFromCtx(ctx),
		SenderId:      c.getParticipantIdFromCtx(ctx),
		ParticipantId: input.ParticipantId,
	}); err != nil {
		return fmt.Errorf("failed to promote participant: %w", err)
	}

	return nil
}

// handleWSError turns a failed message into a frame for the sender. Stale
// proposals are dropped silently.
func (c controller) handleWSError(ctx context.Context, conn *websocket.Conn, err error) {
	messageType := wsrouter.GetMessageTypeFromCtx(ctx)

	var output *Output
	var rejectErr *domain.RejectError
	switch {
	case errors.As(err, &rejectErr):
		if rejectErr.Reason == domain.ReasonStaleState {
			c.logger.DebugContext(ctx, "stale proposal dropped", "error", err)
			return
		}

		rejected := RejectedOutput{
			Reason:      rejectErr.Reason,
			Message:     rejectErr.Msg,
			MessageType: messageType,
		}
		var propErr *proposalError
		if errors.As(err, &propErr) {
			rejected.Nonce = propErr.nonce
		}
		output = &Output{Type: "REJECTED", Payload: rejected}
	case errors.Is(err, wsrouter.ErrUnknownMessageType), errors.Is(err, wsrouter.ErrInvalidMessage):
		output = &Output{Type: "REJECTED", Payload: RejectedOutput{
			Reason:      domain.ReasonInvalidPayload,
			Message:     err.Error(),
			MessageType: messageType,
		}}
	case errors.Is(err, room.ErrTimeout), errors.Is(err, errRateLimited):
		output = &Output{Type: "ERROR", Payload: ErrorOutput{Message: err.Error(), Retryable: true}}
	case errors.Is(err, room.ErrParticipantNotFound):
		output = &Output{Type: "ERROR", Payload: ErrorOutput{Message: err.Error()}}
	default:
		c.logger.WarnContext(ctx, "failed to handle message", "error", err)
		output = &Output{Type: "ERROR", Payload: ErrorOutput{Message: "internal error"}}
	}

	c.logger.InfoContext(ctx, "message failed", "error", err)
	if err := c.writeToConn(ctx, conn, output); err != nil {
		c.logger.DebugContext(ctx, "failed to write error", "error", err)
	}
}
