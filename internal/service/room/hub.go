package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/sharetube/roomsync/internal/domain"
	"github.com/sharetube/roomsync/internal/metrics"
	"github.com/sharetube/roomsync/internal/repository/room"
	"github.com/sharetube/roomsync/pkg/ctxlogger"
)

// member is the runtime side of a participant: connection state, its
// subscription and its grace timer. Roster identity lives in the room state.
type member struct {
	domain.Member
	state          domain.ConnectionState
	connectedSince time.Time
	lastAck        uint64
	hasAck         bool
	resync         bool
	sub            *Subscription
	grace          *time.Timer
	graceGen       uint64
}

func (m *member) stopGrace() {
	m.graceGen++
	if m.grace != nil {
		m.grace.Stop()
		m.grace = nil
	}
}

// outranks orders host candidates: connected before not connected, then the
// longest continuously connected, then the earliest joiner.
func (m *member) outranks(other *member) bool {
	mc, oc := m.state == domain.ConnectionConnected, other.state == domain.ConnectionConnected
	if mc != oc {
		return mc
	}

	if mc && !m.connectedSince.Equal(other.connectedSince) {
		return m.connectedSince.Before(other.connectedSince)
	}

	return m.JoinedAtSeq < other.JoinedAtSeq
}

// hub owns one room. Every field below lock is guarded by it.
type hub struct {
	id        string
	createdAt time.Time
	persister *persister
	lock      chan struct{}
	// done is closed once the room is torn down and forgotten by the service.
	done chan struct{}

	closed      bool
	state       domain.RoomState
	lastTick    int64
	members     map[string]*member
	tail        []domain.Event
	chat        []domain.Event
	teardown    *time.Timer
	teardownGen uint64
}

func (s *service) newHub(roomId string, createdAt time.Time, create bool) *hub {
	return &hub{
		id:        roomId,
		createdAt: createdAt,
		persister: newPersister(roomId, createdAt, create, s.roomRepo, s.logger, s.cfg.PersistTimeout, s.cfg.PersistRetry),
		lock:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		state:     domain.NewRoomState(),
		lastTick:  -1,
		members:   make(map[string]*member),
	}
}

// loadHub rebuilds a room that is in the durable log but not in memory.
func (s *service) loadHub(ctx context.Context, roomId string) (*hub, error) {
	r, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		return nil, err
	}

	events, err := s.roomRepo.GetEvents(ctx, &room.GetEventsParams{
		RoomId:  roomId,
		FromSeq: 0,
		ToSeq:   -1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	state, err := domain.Replay(events)
	if err != nil {
		return nil, fmt.Errorf("failed to replay room %s: %w", roomId, err)
	}

	h := s.newHub(roomId, r.CreatedAt, false)
	h.state = state
	if len(events) > 0 {
		h.lastTick = state.LastCommittedAt
	}

	for _, e := range events {
		h.remember(e, s.cfg.QueueSize, s.cfg.RecentChatLimit)
	}

	// nobody is connected to a freshly loaded room; everyone gets the usual grace
	for id, m := range state.Members {
		h.members[id] = &member{
			Member: m,
			state:  domain.ConnectionReconnecting,
		}
	}

	s.logger.InfoContext(ctx, "room rehydrated", "room_id", roomId, "events", len(events), "members", len(h.members))

	return h, nil
}

func (s *service) getHub(ctx context.Context, roomId string, create bool) (*hub, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if h, ok := s.hubs[roomId]; ok {
		s.mu.Unlock()
		return h, nil
	}
	s.mu.Unlock()

	h, err := s.loadHub(ctx, roomId)
	if err != nil {
		if !errors.Is(err, room.ErrRoomNotFound) {
			return nil, fmt.Errorf("failed to load room: %w", err)
		}

		if !create {
			return nil, domain.Reject(domain.ReasonRoomNotFound, "room %s not found", roomId)
		}

		h = s.newHub(roomId, s.cfg.Clock(), true)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrShuttingDown
	}

	if existing, ok := s.hubs[roomId]; ok {
		return existing, nil
	}

	s.hubs[roomId] = h
	metrics.RoomsActive.Inc()

	s.persists.Add(1)
	go func() {
		defer s.persists.Done()
		h.persister.run()
	}()

	// the timers need the lock, which nobody else can hold yet
	h.lock <- struct{}{}
	for _, m := range h.members {
		s.startGrace(h, m)
	}
	if len(h.members) == 0 {
		s.scheduleTeardown(h)
	}
	h.release()

	return h, nil
}

// lockRoom returns the room's hub with its serialization point held. The
// caller must release it.
func (s *service) lockRoom(ctx context.Context, roomId string, create bool) (*hub, error) {
	for {
		h, err := s.getHub(ctx, roomId, create)
		if err != nil {
			return nil, err
		}

		if err := s.acquire(ctx, h); err != nil {
			return nil, err
		}

		if !h.closed {
			return h, nil
		}

		// being torn down: wait until it is gone, then start over
		h.release()
		if s.isClosed() {
			return nil, ErrShuttingDown
		}
		if err := s.awaitTeardown(ctx, h); err != nil {
			return nil, err
		}
	}
}

// awaitTeardown waits for a closed hub to be forgotten, no longer than the
// lock timeout. Teardown waits for the durable log, which may be unavailable.
func (s *service) awaitTeardown(ctx context.Context, h *hub) error {
	timer := time.NewTimer(s.cfg.LockTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		metrics.LockTimeouts.Inc()
		return ErrTimeout
	}
}

func (s *service) acquire(ctx context.Context, h *hub) error {
	start := time.Now()
	timer := time.NewTimer(s.cfg.LockTimeout)
	defer timer.Stop()

	select {
	case h.lock <- struct{}{}:
		metrics.LockWait.Observe(time.Since(start).Seconds())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		metrics.LockTimeouts.Inc()
		return ErrTimeout
	}
}

func (h *hub) release() {
	<-h.lock
}

// tick returns the room clock for the next commit. The result is strictly
// greater than every earlier tick of the room.
func (s *service) tick(h *hub) int64 {
	now := s.cfg.Clock().Sub(h.createdAt).Milliseconds()
	if now <= h.lastTick {
		now = h.lastTick + 1
	}
	h.lastTick = now

	return now
}

func (s *service) roomTime(h *hub) int64 {
	return max(s.cfg.Clock().Sub(h.createdAt).Milliseconds(), 0)
}

// commit folds a candidate event into the room, hands it to the persister and
// fans it out. A rejected candidate changes nothing and consumes no seq.
func (s *service) commit(ctx context.Context, h *hub, t domain.EventType, payload domain.Payload, originatorId string) (domain.Event, error) {
	e := domain.Event{
		Seq:          h.state.NextSeq,
		Type:         t,
		Payload:      payload,
		CommittedAt:  s.tick(h),
		OriginatorId: originatorId,
	}

	if err := h.state.Apply(e); err != nil {
		return domain.Event{}, err
	}

	if t.IsPlayback() {
		playback := h.state.Playback
		e.Playback = &playback
	}

	h.remember(e, s.cfg.QueueSize, s.cfg.RecentChatLimit)
	h.persister.enqueue(e)
	metrics.EventsCommitted.WithLabelValues(string(t)).Inc()

	s.logger.DebugContext(ctx, "event committed", "room_id", h.id, "seq", e.Seq, "type", e.Type, "originator_id", originatorId)

	s.fanout(ctx, h, e)

	return e, nil
}

func (h *hub) remember(e domain.Event, tailSize, chatSize int) {
	h.tail = append(h.tail, e)
	if len(h.tail) > tailSize {
		h.tail = h.tail[len(h.tail)-tailSize:]
	}

	if e.Type == domain.EventChat {
		h.chat = append(h.chat, e)
		if len(h.chat) > chatSize {
			h.chat = h.chat[len(h.chat)-chatSize:]
		}
	}
}

// since returns the committed events with seq > after. It reports false when
// they are no longer all held in memory or exceed limit.
func (h *hub) since(after uint64, limit int) ([]domain.Event, bool) {
	if after+1 >= h.state.NextSeq {
		return []domain.Event{}, true
	}

	if h.state.NextSeq-1-after > uint64(limit) || len(h.tail) == 0 {
		return nil, false
	}

	first := h.tail[0].Seq
	if after+1 < first {
		return nil, false
	}

	return slices.Clone(h.tail[after+1-first:]), true
}

func (s *service) fanout(ctx context.Context, h *hub, e domain.Event) {
	for _, m := range h.members {
		if m.sub == nil {
			continue
		}

		if !m.sub.offer(e) {
			s.overflow(ctx, h, m)
		}
	}
}

// overflow drops a subscriber that fell behind. It has to resynchronize from a
// snapshot when it comes back.
func (s *service) overflow(ctx context.Context, h *hub, m *member) {
	metrics.QueueOverflows.Inc()
	s.logger.InfoContext(ctx, "outbound queue overflow", "room_id", h.id, "participant_id", m.Id)

	s.dropSub(m, ErrQueueOverflow)
	m.state = domain.ConnectionDisconnected
	m.resync = true
	s.startGrace(h, m)
}

func (s *service) connect(h *hub, m *member) *Subscription {
	m.stopGrace()
	if m.sub != nil {
		m.sub.close(ErrReplaced)
	} else {
		metrics.ParticipantsConnected.Inc()
	}

	m.sub = newSubscription(s.cfg.QueueSize)
	m.state = domain.ConnectionConnected
	m.connectedSince = s.cfg.Clock()
	m.resync = false
	h.cancelTeardown()

	return m.sub
}

func (s *service) dropSub(m *member, err error) {
	if m.sub == nil {
		return
	}

	m.sub.close(err)
	m.sub = nil
	metrics.ParticipantsConnected.Dec()
}

func (s *service) startGrace(h *hub, m *member) {
	m.stopGrace()
	gen := m.graceGen
	participantId := m.Id
	m.grace = time.AfterFunc(s.cfg.ReconnectGrace, func() {
		s.expireGrace(h, participantId, gen)
	})
}

func (s *service) expireGrace(h *hub, participantId string, gen uint64) {
	ctx := ctxlogger.AppendCtx(context.Background(), slog.String("room_id", h.id))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("participant_id", participantId))

	s.lockHub(ctx, h)
	defer h.release()

	if h.closed {
		return
	}

	m, ok := h.members[participantId]
	if !ok || m.graceGen != gen || m.state == domain.ConnectionConnected {
		return
	}

	s.logger.InfoContext(ctx, "reconnect grace elapsed")
	if err := s.removeMember(ctx, h, m, ""); err != nil {
		s.logger.WarnContext(ctx, "failed to remove member", "error", err)
	}
}

// lockHub waits for the hub however long it takes. Timer callbacks use it.
func (s *service) lockHub(ctx context.Context, h *hub) {
	for {
		err := s.acquire(ctx, h)
		if err == nil {
			return
		}
		s.logger.WarnContext(ctx, "still waiting for room", "error", err)
	}
}

// removeMember commits the member's Leave and, when it was the host, a
// HostChange to the best remaining candidate.
func (s *service) removeMember(ctx context.Context, h *hub, m *member, originatorId string) error {
	wasHost := h.state.HostId == m.Id

	m.stopGrace()
	s.dropSub(m, nil)
	delete(h.members, m.Id)

	if _, err := s.commit(ctx, h, domain.EventLeave, domain.Payload{
		ParticipantId: m.Id,
		DisplayName:   m.DisplayName,
	}, originatorId); err != nil {
		return fmt.Errorf("failed to commit leave: %w", err)
	}

	if wasHost {
		if successor, ok := h.successor(); ok {
			if _, err := s.commit(ctx, h, domain.EventHostChange, domain.Payload{
				ParticipantId: successor.Id,
				DisplayName:   successor.DisplayName,
			}, ""); err != nil {
				return fmt.Errorf("failed to commit host change: %w", err)
			}
		}
	}

	if len(h.members) == 0 {
		s.scheduleTeardown(h)
	}

	return nil
}

func (h *hub) successor() (*member, bool) {
	var best *member
	for _, m := range h.members {
		if best == nil || m.outranks(best) {
			best = m
		}
	}

	return best, best != nil
}

func (s *service) scheduleTeardown(h *hub) {
	h.cancelTeardown()
	gen := h.teardownGen
	h.teardown = time.AfterFunc(s.cfg.EmptyRoomGrace, func() {
		s.tearDown(h, gen)
	})
}

func (h *hub) cancelTeardown() {
	h.teardownGen++
	if h.teardown != nil {
		h.teardown.Stop()
		h.teardown = nil
	}
}

func (s *service) tearDown(h *hub, gen uint64) {
	ctx := ctxlogger.AppendCtx(context.Background(), slog.String("room_id", h.id))

	s.lockHub(ctx, h)
	if h.closed || h.teardownGen != gen || len(h.members) > 0 {
		h.release()
		return
	}
	h.closed = true
	h.release()

	h.persister.removeRoom()
	<-h.persister.done

	s.mu.Lock()
	if s.hubs[h.id] == h {
		delete(s.hubs, h.id)
		metrics.RoomsActive.Dec()
	}
	s.mu.Unlock()

	close(h.done)
	s.logger.InfoContext(ctx, "room torn down")
}
