package redis

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/roomsync/internal/domain"
	"github.com/sharetube/roomsync/internal/repository/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*repo, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	return NewRepo(rc, time.Hour, logger), s
}

func TestCreateAndGetRoom(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()
	createdAt := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, r.CreateRoom(ctx, &room.CreateRoomParams{RoomId: "r1", CreatedAt: createdAt}))
	assert.ErrorIs(t, r.CreateRoom(ctx, &room.CreateRoomParams{RoomId: "r1", CreatedAt: createdAt}), room.ErrRoomAlreadyExists)

	got, err := r.GetRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.Id)
	assert.True(t, createdAt.Equal(got.CreatedAt))
	assert.Equal(t, time.Hour, s.TTL("room:r1"))

	_, err = r.GetRoom(ctx, "missing")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestAppendEventEnforcesSeq(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, r.CreateRoom(ctx, &room.CreateRoomParams{RoomId: "r1", CreatedAt: time.Now()}))

	join := domain.Event{Seq: 0, Type: domain.EventJoin, OriginatorId: "a", Payload: domain.Payload{ParticipantId: "a", DisplayName: "Alice"}}
	require.NoError(t, r.AppendEvent(ctx, &room.AppendEventParams{RoomId: "r1", Event: join}))

	// same seq again must not be stored twice
	err := r.AppendEvent(ctx, &room.AppendEventParams{RoomId: "r1", Event: join})
	assert.ErrorIs(t, err, room.ErrEventAlreadyStored)

	// a gap is refused too
	err = r.AppendEvent(ctx, &room.AppendEventParams{RoomId: "r1", Event: domain.Event{Seq: 5, Type: domain.EventChat}})
	assert.ErrorIs(t, err, room.ErrSeqConflict)

	load := domain.Event{Seq: 1, Type: domain.EventLoad, CommittedAt: 3, OriginatorId: "a", Payload: domain.Payload{VideoRef: domain.StringPtr("v")}}
	require.NoError(t, r.AppendEvent(ctx, &room.AppendEventParams{RoomId: "r1", Event: load}))

	count, err := r.GetEventsCount(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	events, err := r.GetEvents(ctx, &room.GetEventsParams{RoomId: "r1", FromSeq: 0, ToSeq: -1})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, join, events[0])
	assert.Equal(t, load, events[1])

	events, err = r.GetEvents(ctx, &room.GetEventsParams{RoomId: "r1", FromSeq: 1, ToSeq: -1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].Seq)
}

func TestAppendEventUnknownRoom(t *testing.T) {
	r, _ := newTestRepo(t)

	err := r.AppendEvent(context.Background(), &room.AppendEventParams{RoomId: "nope", Event: domain.Event{Seq: 0}})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestRemoveRoom(t *testing.T) {
	r, s := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, r.CreateRoom(ctx, &room.CreateRoomParams{RoomId: "r1", CreatedAt: time.Now()}))
	require.NoError(t, r.AppendEvent(ctx, &room.AppendEventParams{RoomId: "r1", Event: domain.Event{Seq: 0, Type: domain.EventChat}}))

	require.NoError(t, r.RemoveRoom(ctx, "r1"))
	assert.False(t, s.Exists("room:r1"))
	assert.False(t, s.Exists("room:r1:events"))
}
