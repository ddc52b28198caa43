package inmemory

import (
	"log/slog"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/sharetube/roomsync/internal/repository/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddReplacesPreviousConn(t *testing.T) {
	r := NewRepo(slog.Default())
	member := connection.Member{RoomId: "room", ParticipantId: "a"}
	first, second := &websocket.Conn{}, &websocket.Conn{}

	replaced, err := r.Add(first, member)
	require.NoError(t, err)
	assert.Nil(t, replaced)

	_, err = r.Add(first, member)
	assert.ErrorIs(t, err, connection.ErrAlreadyExists)

	replaced, err = r.Add(second, member)
	require.NoError(t, err)
	assert.Same(t, first, replaced)

	conn, err := r.GetConn(member)
	require.NoError(t, err)
	assert.Same(t, second, conn)
	assert.Equal(t, 1, r.Count())

	_, err = r.GetMember(first)
	assert.ErrorIs(t, err, connection.ErrNotFound)
}

func TestRemoveKeepsNewerConn(t *testing.T) {
	r := NewRepo(slog.Default())
	member := connection.Member{RoomId: "room", ParticipantId: "a"}
	first, second := &websocket.Conn{}, &websocket.Conn{}

	_, err := r.Add(first, member)
	require.NoError(t, err)
	_, err = r.Add(second, member)
	require.NoError(t, err)

	_, err = r.Remove(first)
	assert.ErrorIs(t, err, connection.ErrNotFound)

	got, err := r.Remove(second)
	require.NoError(t, err)
	assert.Equal(t, member, got)

	_, err = r.GetConn(member)
	assert.ErrorIs(t, err, connection.ErrNotFound)
	assert.Zero(t, r.Count())
}
