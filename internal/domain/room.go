package domain

import (
	"fmt"
	"sort"
)

// RoomState is the fold of a room's event log: playback, roster and host.
type RoomState struct {
	NextSeq         uint64            `json:"next_seq"`
	LastCommittedAt int64             `json:"last_committed_at"`
	HostId          string            `json:"host_id"`
	Playback        PlaybackState     `json:"playback"`
	Members         map[string]Member `json:"members"`
}

func NewRoomState() RoomState {
	return RoomState{
		Playback: NewPlaybackState(),
		Members:  make(map[string]Member),
	}
}

// Replay folds events in order starting from an empty room.
func Replay(events []Event) (RoomState, error) {
	state := NewRoomState()
	for _, e := range events {
		if err := state.Apply(e); err != nil {
			return RoomState{}, err
		}
	}

	return state, nil
}

// Apply folds one committed event. Events already folded are ignored, so applying
// the same event twice has no further effect.
func (s *RoomState) Apply(e Event) error {
	if e.Seq < s.NextSeq {
		return nil
	}
	if e.Seq > s.NextSeq {
		return fmt.Errorf("expected seq %d, got %d: %w", s.NextSeq, e.Seq, ErrSequenceGap)
	}
	if e.CommittedAt < s.LastCommittedAt {
		return Reject(ReasonStaleState, "event %d committed at %d before %d", e.Seq, e.CommittedAt, s.LastCommittedAt)
	}

	playback, err := s.Playback.Transition(e.Type, e.Payload, e.CommittedAt)
	if err != nil {
		return fmt.Errorf("event %d: %w", e.Seq, err)
	}

	switch e.Type {
	case EventJoin:
		id := e.Payload.ParticipantId
		if _, ok := s.Members[id]; !ok {
			s.Members[id] = Member{
				Id:          id,
				DisplayName: e.Payload.DisplayName,
				JoinedAtSeq: e.Seq,
			}
		}
		if s.HostId == "" {
			s.HostId = id
		}
	case EventLeave:
		delete(s.Members, e.Payload.ParticipantId)
		if s.HostId == e.Payload.ParticipantId {
			s.HostId = ""
		}
	case EventHostChange:
		s.HostId = e.Payload.ParticipantId
	}

	s.Playback = playback
	s.LastCommittedAt = e.CommittedAt
	s.NextSeq = e.Seq + 1

	return nil
}

func (s RoomState) IsEmpty() bool {
	return len(s.Members) == 0
}

// SortedMembers returns members ordered by join sequence.
func (s RoomState) SortedMembers() []Member {
	members := make([]Member, 0, len(s.Members))
	for _, m := range s.Members {
		members = append(members, m)
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].JoinedAtSeq < members[j].JoinedAtSeq
	})

	return members
}
