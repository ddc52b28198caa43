package room

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sharetube/roomsync/internal/domain"
)

type JoinParams struct {
	RoomId        string
	ParticipantId string
	DisplayName   string
}

type JoinResponse struct {
	RoomId      string
	Participant domain.Participant
	Snapshot    Snapshot
	RecentChat  []domain.Event
	// AssignedHost reports whether the joiner is the room's host.
	AssignedHost bool
	ResumeToken  string
	// Rejoined is set when the participant was still in the room and no Join was committed.
	Rejoined     bool
	Subscription *Subscription
}

// Join adds a participant to a room, creating the room when it does not exist.
// Joining again with an id that is still in the room replaces its connection.
func (s *service) Join(ctx context.Context, params *JoinParams) (JoinResponse, error) {
	s.logger.DebugContext(ctx, "called", "params", params)

	if err := validateIdentity(params.ParticipantId, params.DisplayName); err != nil {
		return JoinResponse{}, err
	}

	roomId := params.RoomId
	if roomId == "" {
		roomId = uuid.NewString()
	}

	resumeToken, err := s.generateJWT(roomId, params.ParticipantId)
	if err != nil {
		return JoinResponse{}, fmt.Errorf("failed to generate resume token: %w", err)
	}

	h, err := s.lockRoom(ctx, roomId, true)
	if err != nil {
		return JoinResponse{}, err
	}
	defer h.release()

	m, rejoined := h.members[params.ParticipantId]
	if !rejoined {
		if len(h.members) >= s.cfg.MembersLimit {
			return JoinResponse{}, ErrRoomFull
		}

		if _, err := s.commit(ctx, h, domain.EventJoin, domain.Payload{
			ParticipantId: params.ParticipantId,
			DisplayName:   params.DisplayName,
		}, params.ParticipantId); err != nil {
			return JoinResponse{}, fmt.Errorf("failed to commit join: %w", err)
		}

		m = &member{Member: h.state.Members[params.ParticipantId]}
		h.members[params.ParticipantId] = m
	}

	sub := s.connect(h, m)

	return JoinResponse{
		RoomId:       roomId,
		Participant:  s.participant(h, m.Id),
		Snapshot:     s.snapshot(h),
		RecentChat:   s.recentChat(h),
		AssignedHost: h.state.HostId == params.ParticipantId,
		ResumeToken:  resumeToken,
		Rejoined:     rejoined,
		Subscription: sub,
	}, nil
}

type ResumeParams struct {
	RoomId        string
	ParticipantId string
	ResumeToken   string
	// LastSeq overrides the last acknowledged seq when set.
	LastSeq *uint64
}

// ResumeResponse carries either the missed events or, when they cannot be
// delivered as a bounded delta, a snapshot.
type ResumeResponse struct {
	Participant  domain.Participant
	Events       []domain.Event
	Snapshot     *Snapshot
	RecentChat   []domain.Event
	ResumeToken  string
	Subscription *Subscription
}

func (s *service) Resume(ctx context.Context, params *ResumeParams) (ResumeResponse, error) {
	s.logger.DebugContext(ctx, "called", "room_id", params.RoomId, "participant_id", params.ParticipantId, "last_seq", params.LastSeq)

	claims, err := s.parseJWT(params.ResumeToken)
	if err != nil {
		s.logger.DebugContext(ctx, "failed to parse resume token", "error", err)
		return ResumeResponse{}, ErrInvalidToken
	}

	if claims.RoomId != params.RoomId || claims.ParticipantId != params.ParticipantId {
		return ResumeResponse{}, ErrInvalidToken
	}

	h, err := s.lockRoom(ctx, params.RoomId, false)
	if err != nil {
		return ResumeResponse{}, err
	}
	defer h.release()

	m, ok := h.members[params.ParticipantId]
	if !ok {
		return ResumeResponse{}, ErrParticipantNotFound
	}

	after := m.JoinedAtSeq
	if m.hasAck {
		after = m.lastAck
	}
	if params.LastSeq != nil {
		after = *params.LastSeq
	}

	resync := m.resync
	sub := s.connect(h, m)

	resp := ResumeResponse{
		Participant:  s.participant(h, m.Id),
		ResumeToken:  params.ResumeToken,
		Subscription: sub,
	}

	events, ok := h.since(after, s.cfg.QueueSize)
	if resync || !ok {
		snapshot := s.snapshot(h)
		resp.Snapshot = &snapshot
		resp.RecentChat = s.recentChat(h)
		return resp, nil
	}

	resp.Events = events

	return resp, nil
}

type DisconnectParams struct {
	RoomId        string
	ParticipantId string
	Subscription  *Subscription
}

// Disconnect marks the participant as reconnecting and starts its grace period.
// It is a no-op when the subscription is no longer the participant's current one.
func (s *service) Disconnect(ctx context.Context, params *DisconnectParams) error {
	s.logger.DebugContext(ctx, "called", "room_id", params.RoomId, "participant_id", params.ParticipantId)

	h, err := s.lockRoom(ctx, params.RoomId, false)
	if err != nil {
		return err
	}
	defer h.release()

	m, ok := h.members[params.ParticipantId]
	if !ok || m.sub == nil || m.sub != params.Subscription {
		return nil
	}

	s.dropSub(m, ErrDisconnected)
	m.state = domain.ConnectionReconnecting
	s.startGrace(h, m)

	return nil
}

type LeaveParams struct {
	RoomId        string
	ParticipantId string
}

func (s *service) Leave(ctx context.Context, params *LeaveParams) error {
	s.logger.DebugContext(ctx, "called", "params", params)

	h, err := s.lockRoom(ctx, params.RoomId, false)
	if err != nil {
		return err
	}
	defer h.release()

	m, ok := h.members[params.ParticipantId]
	if !ok {
		return ErrParticipantNotFound
	}

	return s.removeMember(ctx, h, m, params.ParticipantId)
}

type AckParams struct {
	RoomId        string
	ParticipantId string
	Seq           uint64
}

func (s *service) Ack(ctx context.Context, params *AckParams) error {
	h, err := s.lockRoom(ctx, params.RoomId, false)
	if err != nil {
		return err
	}
	defer h.release()

	m, ok := h.members[params.ParticipantId]
	if !ok {
		return ErrParticipantNotFound
	}

	// acks for seqs not committed yet are clamped
	seq := min(params.Seq, h.state.NextSeq-1)
	if !m.hasAck || seq > m.lastAck {
		m.lastAck = seq
		m.hasAck = true
	}

	return nil
}

type PromoteParticipantParams struct {
	RoomId        string
	SenderId      string
	ParticipantId string
}

type PromoteParticipantResponse struct {
	Event domain.Event
}

func (s *service) PromoteParticipant(ctx context.Context, params *PromoteParticipantParams) (PromoteParticipantResponse, error) {
	s.logger.DebugContext(ctx, "called", "params", params)

	h, err := s.lockRoom(ctx, params.RoomId, false)
	if err != nil {
		return PromoteParticipantResponse{}, err
	}
	defer h.release()

	if err := s.checkIfHost(h, params.SenderId); err != nil {
		s.rejected(ctx, err)
		return PromoteParticipantResponse{}, err
	}

	target, ok := h.members[params.ParticipantId]
	if !ok {
		return PromoteParticipantResponse{}, ErrParticipantNotFound
	}

	if target.Id == h.state.HostId {
		err := domain.Reject(domain.ReasonStaleState, "%s is already host", target.Id)
		s.rejected(ctx, err)
		return PromoteParticipantResponse{}, err
	}

	e, err := s.commit(ctx, h, domain.EventHostChange, domain.Payload{
		ParticipantId: target.Id,
		DisplayName:   target.DisplayName,
	}, params.SenderId)
	if err != nil {
		return PromoteParticipantResponse{}, fmt.Errorf("failed to commit host change: %w", err)
	}

	return PromoteParticipantResponse{
		Event: e,
	}, nil
}

func (s *service) checkIfHost(h *hub, participantId string) error {
	if participantId == "" || h.state.HostId != participantId {
		return domain.Reject(domain.ReasonNotHost, "only the host can promote")
	}

	return nil
}
