package syncclient

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/sharetube/roomsync/internal/domain"
)

// ChatMessage is a chat line as the local participant sees it. Tentative
// messages were sent by this client and are not committed yet.
type ChatMessage struct {
	MessageId     string
	Nonce         string
	ParticipantId string
	DisplayName   string
	Text          string
	Seq           uint64
	Tentative     bool
}

// View is the local copy of a room, folded from the same events the server
// commits.
type View struct {
	mu            sync.RWMutex
	participantId string
	state         domain.RoomState
	chat          []ChatMessage
	chatLimit     int
}

func NewView(participantId string, chatLimit int) *View {
	return &View{
		participantId: participantId,
		state:         domain.NewRoomState(),
		chatLimit:     chatLimit,
	}
}

// Reset replaces the view with a snapshot. Tentative messages survive so they
// can still be matched by a later commit.
func (v *View) Reset(snapshot Snapshot, recentChat []Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	state := domain.NewRoomState()
	state.NextSeq = snapshot.NextSeq
	state.HostId = snapshot.HostId
	state.Playback = snapshot.Playback
	state.LastCommittedAt = snapshot.Playback.AnchorTimestamp
	for _, p := range snapshot.Participants {
		state.Members[p.Id] = Member{
			Id:          p.Id,
			DisplayName: p.DisplayName,
			JoinedAtSeq: p.JoinedAtSeq,
		}
	}
	v.state = state

	tentative := slices.DeleteFunc(v.chat, func(m ChatMessage) bool { return !m.Tentative })
	v.chat = nil
	for _, e := range recentChat {
		v.addChat(e)
	}
	for _, m := range tentative {
		if !v.hasNonce(m.Nonce) {
			v.chat = append(v.chat, m)
		}
	}
}

// Apply folds a committed event. Events the view has already folded are
// ignored.
func (v *View) Apply(e Event) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if e.Seq < v.state.NextSeq {
		return nil
	}
	if err := v.state.Apply(e); err != nil {
		return fmt.Errorf("failed to apply event: %w", err)
	}

	if e.Type == EventChat {
		v.addChat(e)
	}

	return nil
}

func (v *View) addChat(e Event) {
	msg := ChatMessage{
		MessageId:     e.Payload.MessageId,
		Nonce:         e.Payload.Nonce,
		ParticipantId: e.OriginatorId,
		DisplayName:   e.Payload.DisplayName,
		Text:          e.Payload.Text,
		Seq:           e.Seq,
	}

	for i, m := range v.chat {
		if m.MessageId != "" && m.MessageId == msg.MessageId {
			return
		}
		if m.Tentative && msg.Nonce != "" && m.Nonce == msg.Nonce && m.ParticipantId == msg.ParticipantId {
			// committed messages keep commit order, so the tentative copy moves
			v.chat = slices.Delete(v.chat, i, i+1)
			break
		}
	}

	idx := len(v.chat)
	for idx > 0 && v.chat[idx-1].Tentative {
		idx--
	}
	v.chat = slices.Insert(v.chat, idx, msg)
	v.trimChat()
}

func (v *View) hasNonce(nonce string) bool {
	return slices.ContainsFunc(v.chat, func(m ChatMessage) bool {
		return m.ParticipantId == v.participantId && m.Nonce == nonce
	})
}

func (v *View) trimChat() {
	if v.chatLimit <= 0 {
		return
	}

	committed := 0
	for _, m := range v.chat {
		if !m.Tentative {
			committed++
		}
	}
	for i := 0; committed > v.chatLimit && i < len(v.chat); {
		if v.chat[i].Tentative {
			i++
			continue
		}
		v.chat = slices.Delete(v.chat, i, i+1)
		committed--
	}
}

// AddTentative shows text locally before the server commits it and returns
// the nonce to send with the proposal.
func (v *View) AddTentative(text string) string {
	v.mu.Lock()
	defer v.mu.Unlock()

	nonce := uuid.NewString()
	v.chat = append(v.chat, ChatMessage{
		Nonce:         nonce,
		ParticipantId: v.participantId,
		Text:          text,
		Tentative:     true,
	})

	return nonce
}

// Discard removes a tentative message whose proposal was rejected.
func (v *View) Discard(nonce string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	before := len(v.chat)
	v.chat = slices.DeleteFunc(v.chat, func(m ChatMessage) bool {
		return m.Tentative && m.Nonce == nonce
	})

	return len(v.chat) != before
}

func (v *View) Chat() []ChatMessage {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return slices.Clone(v.chat)
}

func (v *View) Playback() PlaybackState {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.state.Playback
}

func (v *View) HostId() string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.state.HostId
}

func (v *View) IsHost() bool {
	return v.HostId() == v.participantId
}

func (v *View) Members() []Member {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.state.SortedMembers()
}

// NextSeq is the seq of the first event the view has not folded.
func (v *View) NextSeq() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.state.NextSeq
}
