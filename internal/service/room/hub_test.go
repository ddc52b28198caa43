package room

import (
	"testing"
	"time"

	"github.com/sharetube/roomsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hubWithEvents(n int, tailSize int) *hub {
	h := &hub{state: domain.NewRoomState()}
	for i := 0; i < n; i++ {
		e := domain.Event{Seq: uint64(i), Type: domain.EventChat}
		h.state.NextSeq = e.Seq + 1
		h.remember(e, tailSize, 10)
	}

	return h
}

func TestSince(t *testing.T) {
	h := hubWithEvents(10, 5)

	events, ok := h.since(9, 5)
	require.True(t, ok)
	assert.Empty(t, events)

	events, ok = h.since(6, 5)
	require.True(t, ok)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(7), events[0].Seq)
	assert.Equal(t, uint64(9), events[2].Seq)

	// seq 4 is no longer in the tail
	_, ok = h.since(3, 10)
	assert.False(t, ok)

	// more than limit events missed
	_, ok = h.since(4, 4)
	assert.False(t, ok)

	events, ok = h.since(4, 5)
	require.True(t, ok)
	assert.Len(t, events, 5)
}

func TestRememberBoundsChat(t *testing.T) {
	h := &hub{}
	for i := 0; i < 5; i++ {
		h.remember(domain.Event{Seq: uint64(i), Type: domain.EventChat}, 100, 3)
	}
	h.remember(domain.Event{Seq: 5, Type: domain.EventPlay}, 100, 3)

	require.Len(t, h.chat, 3)
	assert.Equal(t, uint64(2), h.chat[0].Seq)
	assert.Len(t, h.tail, 6)
}

func TestSuccessor(t *testing.T) {
	base := time.UnixMilli(0)
	h := &hub{members: map[string]*member{
		"early-joiner": {
			Member:         domain.Member{Id: "early-joiner", JoinedAtSeq: 1},
			state:          domain.ConnectionReconnecting,
			connectedSince: base,
		},
		"reconnected": {
			Member:         domain.Member{Id: "reconnected", JoinedAtSeq: 2},
			state:          domain.ConnectionConnected,
			connectedSince: base.Add(time.Minute),
		},
		"steady": {
			Member:         domain.Member{Id: "steady", JoinedAtSeq: 3},
			state:          domain.ConnectionConnected,
			connectedSince: base.Add(time.Second),
		},
	}}

	successor, ok := h.successor()
	require.True(t, ok)
	assert.Equal(t, "steady", successor.Id)

	delete(h.members, "steady")
	delete(h.members, "reconnected")
	successor, ok = h.successor()
	require.True(t, ok)
	assert.Equal(t, "early-joiner", successor.Id)

	delete(h.members, "early-joiner")
	_, ok = h.successor()
	assert.False(t, ok)
}

func TestTickIsStrictlyIncreasing(t *testing.T) {
	clock := newFakeClock()
	s := &service{cfg: Config{Clock: clock.Now}}
	h := &hub{createdAt: clock.Now(), lastTick: -1}

	assert.Equal(t, int64(0), s.tick(h))
	assert.Equal(t, int64(1), s.tick(h))

	clock.Advance(10 * time.Millisecond)
	assert.Equal(t, int64(10), s.tick(h))

	// a clock that goes backwards never moves the room clock back
	clock.Advance(-time.Second)
	assert.Equal(t, int64(11), s.tick(h))
	assert.Equal(t, int64(0), s.roomTime(h))
}
