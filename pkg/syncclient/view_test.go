package syncclient

import (
	"testing"

	"github.com/sharetube/roomsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinEvent(seq uint64, id string, at int64) Event {
	return Event{
		Seq:          seq,
		Type:         EventJoin,
		Payload:      Payload{ParticipantId: id, DisplayName: id},
		CommittedAt:  at,
		OriginatorId: id,
	}
}

func chatEvent(seq uint64, from, text, nonce string, at int64) Event {
	return Event{
		Seq:  seq,
		Type: EventChat,
		Payload: Payload{
			Text:          text,
			Nonce:         nonce,
			MessageId:     "msg-" + text,
			ParticipantId: from,
			DisplayName:   from,
		},
		CommittedAt:  at,
		OriginatorId: from,
	}
}

func TestViewApplyIsIdempotent(t *testing.T) {
	v := NewView("alice", 10)

	load := Event{
		Seq:          1,
		Type:         EventLoad,
		Payload:      Payload{VideoRef: domain.StringPtr("v")},
		CommittedAt:  5,
		OriginatorId: "alice",
	}

	require.NoError(t, v.Apply(joinEvent(0, "alice", 0)))
	require.NoError(t, v.Apply(load))
	before := v.Playback()

	require.NoError(t, v.Apply(load))
	require.NoError(t, v.Apply(joinEvent(0, "alice", 0)))
	assert.Equal(t, before, v.Playback())
	assert.Equal(t, uint64(2), v.NextSeq())
	assert.True(t, v.IsHost())
	assert.Len(t, v.Members(), 1)
}

func TestViewRejectsGaps(t *testing.T) {
	v := NewView("alice", 10)

	err := v.Apply(joinEvent(3, "alice", 0))
	require.ErrorIs(t, err, domain.ErrSequenceGap)
}

func TestViewSpeculativeChat(t *testing.T) {
	v := NewView("bob", 10)
	require.NoError(t, v.Apply(joinEvent(0, "alice", 0)))
	require.NoError(t, v.Apply(joinEvent(1, "bob", 1)))

	nonce := v.AddTentative("hello")
	chat := v.Chat()
	require.Len(t, chat, 1)
	assert.True(t, chat[0].Tentative)

	// another participant's message commits first
	require.NoError(t, v.Apply(chatEvent(2, "alice", "hi", "other", 2)))
	chat = v.Chat()
	require.Len(t, chat, 2)
	assert.Equal(t, "hi", chat[0].Text)
	assert.True(t, chat[1].Tentative)

	require.NoError(t, v.Apply(chatEvent(3, "bob", "hello", nonce, 3)))
	chat = v.Chat()
	require.Len(t, chat, 2)
	assert.Equal(t, "hello", chat[1].Text)
	assert.False(t, chat[1].Tentative)
	assert.Equal(t, uint64(3), chat[1].Seq)

	// a nonce from another participant does not replace our tentative copy
	nonce = v.AddTentative("again")
	require.NoError(t, v.Apply(chatEvent(4, "alice", "again", nonce, 4)))
	chat = v.Chat()
	require.Len(t, chat, 4)
	assert.True(t, chat[3].Tentative)

	assert.True(t, v.Discard(nonce))
	assert.False(t, v.Discard(nonce))
	assert.Len(t, v.Chat(), 3)
}

func TestViewChatLimit(t *testing.T) {
	v := NewView("alice", 2)
	require.NoError(t, v.Apply(joinEvent(0, "alice", 0)))

	for i, text := range []string{"a", "b", "c"} {
		require.NoError(t, v.Apply(chatEvent(uint64(i+1), "alice", text, "", int64(i+1))))
	}

	chat := v.Chat()
	require.Len(t, chat, 2)
	assert.Equal(t, "b", chat[0].Text)
	assert.Equal(t, "c", chat[1].Text)
}

func TestViewReset(t *testing.T) {
	v := NewView("bob", 10)
	nonce := v.AddTentative("pending")

	v.Reset(Snapshot{
		NextSeq: 7,
		HostId:  "alice",
		Playback: PlaybackState{
			VideoRef:        "v",
			Mode:            ModePaused,
			AnchorPosition:  42,
			AnchorTimestamp: 900,
		},
		Participants: []Participant{
			{Id: "alice", DisplayName: "alice", JoinedAtSeq: 0},
			{Id: "bob", DisplayName: "bob", JoinedAtSeq: 1},
		},
	}, []Event{chatEvent(5, "alice", "earlier", "", 800)})

	assert.Equal(t, uint64(7), v.NextSeq())
	assert.Equal(t, "alice", v.HostId())
	assert.Len(t, v.Members(), 2)
	assert.InDelta(t, 42.0, v.Playback().AnchorPosition, 1e-9)

	chat := v.Chat()
	require.Len(t, chat, 2)
	assert.Equal(t, "earlier", chat[0].Text)
	assert.Equal(t, nonce, chat[1].Nonce)
	assert.True(t, chat[1].Tentative)

	require.NoError(t, v.Apply(Event{
		Seq:          7,
		Type:         EventPlay,
		CommittedAt:  1000,
		OriginatorId: "alice",
	}))
	assert.Equal(t, ModePlaying, v.Playback().Mode)
}
