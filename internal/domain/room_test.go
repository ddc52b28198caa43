package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLog() []Event {
	return []Event{
		{Seq: 0, Type: EventJoin, CommittedAt: 0, OriginatorId: "a", Payload: Payload{ParticipantId: "a", DisplayName: "Alice"}},
		{Seq: 1, Type: EventJoin, CommittedAt: 3, OriginatorId: "b", Payload: Payload{ParticipantId: "b", DisplayName: "Bob"}},
		{Seq: 2, Type: EventLoad, CommittedAt: 10, OriginatorId: "a", Payload: Payload{VideoRef: StringPtr("video-1")}},
		{Seq: 3, Type: EventPlay, CommittedAt: 20, OriginatorId: "a"},
		{Seq: 4, Type: EventChat, CommittedAt: 25, OriginatorId: "b", Payload: Payload{Text: "hi", Nonce: "n1"}},
		{Seq: 5, Type: EventSeek, CommittedAt: 30, OriginatorId: "a", Payload: Payload{Position: Float64Ptr(10)}},
		{Seq: 6, Type: EventSeek, CommittedAt: 31, OriginatorId: "a", Payload: Payload{Position: Float64Ptr(50)}},
		{Seq: 7, Type: EventLeave, CommittedAt: 40, OriginatorId: "a", Payload: Payload{ParticipantId: "a"}},
		{Seq: 8, Type: EventHostChange, CommittedAt: 40, Payload: Payload{ParticipantId: "b"}},
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	log := sampleLog()

	for k := range log {
		first, err := Replay(log[:k+1])
		require.NoError(t, err)
		second, err := Replay(log[:k+1])
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}

	state, err := Replay(log)
	require.NoError(t, err)
	assert.Equal(t, "b", state.HostId)
	assert.Equal(t, uint64(9), state.NextSeq)
	assert.Len(t, state.Members, 1)
	assert.Equal(t, ModePlaying, state.Playback.Mode)
	assert.Equal(t, 50.0, state.Playback.AnchorPosition)
	assert.Equal(t, int64(31), state.Playback.AnchorTimestamp)
}

func TestApplyIsIdempotent(t *testing.T) {
	log := sampleLog()
	once, err := Replay(log)
	require.NoError(t, err)

	twice := NewRoomState()
	for _, e := range log {
		require.NoError(t, twice.Apply(e))
		require.NoError(t, twice.Apply(e))
	}

	assert.Equal(t, once, twice)
}

func TestApplyRejectsGap(t *testing.T) {
	state := NewRoomState()
	err := state.Apply(Event{Seq: 1, Type: EventChat})
	assert.ErrorIs(t, err, ErrSequenceGap)
}

func TestAnchorTimestampNeverRegresses(t *testing.T) {
	state := NewRoomState()
	var last int64
	for _, e := range sampleLog() {
		require.NoError(t, state.Apply(e))
		assert.GreaterOrEqual(t, state.Playback.AnchorTimestamp, last)
		last = state.Playback.AnchorTimestamp
	}
}

func TestFirstJoinerIsHost(t *testing.T) {
	state, err := Replay(sampleLog()[:2])
	require.NoError(t, err)
	assert.Equal(t, "a", state.HostId)

	members := state.SortedMembers()
	require.Len(t, members, 2)
	assert.Equal(t, "a", members[0].Id)
	assert.Equal(t, uint64(1), members[1].JoinedAtSeq)
}
