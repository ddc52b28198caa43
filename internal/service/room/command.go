package room

import (
	"context"

	"github.com/google/uuid"
	"github.com/sharetube/roomsync/internal/domain"
	"github.com/sharetube/roomsync/internal/metrics"
)

type ProposeCommandParams struct {
	RoomId   string
	SenderId string
	Type     domain.EventType
	Payload  domain.Payload
}

type ProposeCommandResponse struct {
	Event domain.Event
}

// ProposeCommand validates, authorizes and commits a participant's proposal.
// Every participant receives the committed event through its subscription,
// the proposer included.
func (s *service) ProposeCommand(ctx context.Context, params *ProposeCommandParams) (ProposeCommandResponse, error) {
	s.logger.DebugContext(ctx, "called", "params", params)

	payload := commandPayload(params.Type, params.Payload)
	if err := validateCommand(params.Type, &payload); err != nil {
		s.rejected(ctx, err)
		return ProposeCommandResponse{}, err
	}

	h, err := s.lockRoom(ctx, params.RoomId, false)
	if err != nil {
		return ProposeCommandResponse{}, err
	}
	defer h.release()

	m, ok := h.members[params.SenderId]
	if !ok {
		return ProposeCommandResponse{}, ErrParticipantNotFound
	}

	if err := domain.Authorize(params.Type, params.SenderId, h.state.HostId, s.cfg.OpenControl); err != nil {
		s.rejected(ctx, err)
		return ProposeCommandResponse{}, err
	}

	if params.Type == domain.EventChat {
		payload.MessageId = uuid.NewString()
		payload.ParticipantId = m.Id
		payload.DisplayName = m.DisplayName
	}

	e, err := s.commit(ctx, h, params.Type, payload, params.SenderId)
	if err != nil {
		s.rejected(ctx, err)
		return ProposeCommandResponse{}, err
	}

	return ProposeCommandResponse{
		Event: e,
	}, nil
}

func (s *service) rejected(ctx context.Context, err error) {
	reason, ok := domain.ReasonOf(err)
	if !ok {
		return
	}

	metrics.ProposalsRejected.WithLabelValues(string(reason)).Inc()
	s.logger.DebugContext(ctx, "proposal rejected", "reason", reason, "error", err)
}
