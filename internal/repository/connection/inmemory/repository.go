package inmemory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/roomsync/internal/repository/connection"
)

type entry struct {
	member connection.Member
	// gorilla allows one concurrent writer per connection
	writeMu sync.Mutex
}

type repo struct {
	connList map[*websocket.Conn]*entry
	idList   map[connection.Member]*websocket.Conn
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		connList: make(map[*websocket.Conn]*entry),
		idList:   make(map[connection.Member]*websocket.Conn),
		logger:   logger,
	}
}

// Add registers conn for member. A connection the member had before is
// unregistered and returned so the caller can close it.
func (r *repo) Add(conn *websocket.Conn, member connection.Member) (*websocket.Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("called", "room_id", member.RoomId, "participant_id", member.ParticipantId)
	if _, ok := r.connList[conn]; ok {
		return nil, connection.ErrAlreadyExists
	}

	replaced := r.idList[member]
	if replaced != nil {
		delete(r.connList, replaced)
	}

	r.connList[conn] = &entry{member: member}
	r.idList[member] = conn

	return replaced, nil
}

// Remove unregisters conn. The member mapping is kept when it already points
// to a newer connection.
func (r *repo) Remove(conn *websocket.Conn) (connection.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.connList[conn]
	if !ok {
		return connection.Member{}, connection.ErrNotFound
	}

	delete(r.connList, conn)
	if r.idList[e.member] == conn {
		delete(r.idList, e.member)
	}

	return e.member, nil
}

func (r *repo) GetMember(conn *websocket.Conn) (connection.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.connList[conn]
	if !ok {
		return connection.Member{}, connection.ErrNotFound
	}

	return e.member, nil
}

func (r *repo) GetConn(member connection.Member) (*websocket.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.idList[member]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

func (r *repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connList)
}

// WriteJSON serializes writes to conn.
func (r *repo) WriteJSON(conn *websocket.Conn, v any, timeout time.Duration) error {
	r.mu.RLock()
	e, ok := r.connList[conn]
	r.mu.RUnlock()
	if !ok {
		return connection.ErrNotFound
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
	}

	return conn.WriteJSON(v)
}
