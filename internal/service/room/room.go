package room

import (
	"context"
	"slices"

	"github.com/sharetube/roomsync/internal/domain"
)

// Snapshot is a consistent view of a room after every event below NextSeq.
type Snapshot struct {
	RoomId       string               `json:"room_id"`
	NextSeq      uint64               `json:"next_seq"`
	RoomTime     int64                `json:"room_time"`
	HostId       string               `json:"host_id"`
	Playback     domain.PlaybackState `json:"playback"`
	Position     float64              `json:"position"`
	Participants []domain.Participant `json:"participants"`
}

func (s *service) snapshot(h *hub) Snapshot {
	now := max(s.roomTime(h), h.lastTick)

	return Snapshot{
		RoomId:       h.id,
		NextSeq:      h.state.NextSeq,
		RoomTime:     now,
		HostId:       h.state.HostId,
		Playback:     h.state.Playback,
		Position:     h.state.Playback.PositionAt(now),
		Participants: s.participants(h),
	}
}

func (s *service) participants(h *hub) []domain.Participant {
	members := h.state.SortedMembers()
	participants := make([]domain.Participant, 0, len(members))
	for _, m := range members {
		participants = append(participants, s.participant(h, m.Id))
	}

	return participants
}

func (s *service) participant(h *hub, participantId string) domain.Participant {
	m := h.state.Members[participantId]
	p := domain.Participant{
		Id:              m.Id,
		DisplayName:     m.DisplayName,
		ConnectionState: domain.ConnectionDisconnected,
		JoinedAtSeq:     m.JoinedAtSeq,
		IsHost:          h.state.HostId == participantId,
	}

	if rm, ok := h.members[participantId]; ok {
		p.ConnectionState = rm.state
	}

	return p
}

func (s *service) recentChat(h *hub) []domain.Event {
	if h.chat == nil {
		return []domain.Event{}
	}

	return slices.Clone(h.chat)
}

func (s *service) GetRoomState(ctx context.Context, roomId string) (Snapshot, error) {
	h, err := s.lockRoom(ctx, roomId, false)
	if err != nil {
		return Snapshot{}, err
	}
	defer h.release()

	return s.snapshot(h), nil
}

// RoomTime reads the room clock without waiting for the room.
func (s *service) RoomTime(ctx context.Context, roomId string) (int64, error) {
	s.mu.Lock()
	h, ok := s.hubs[roomId]
	s.mu.Unlock()

	if !ok {
		return 0, domain.Reject(domain.ReasonRoomNotFound, "room %s not found", roomId)
	}

	return s.roomTime(h), nil
}

func (s *service) DriftTolerance() float64 {
	return s.cfg.DriftTolerance
}
