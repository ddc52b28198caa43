package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sharetube/roomsync/internal/domain"
	"github.com/sharetube/roomsync/internal/metrics"
	"github.com/sharetube/roomsync/internal/repository/room"
)

type persistOpKind int

const (
	opCreate persistOpKind = iota
	opAppend
	opRemove
)

type persistOp struct {
	kind  persistOpKind
	event domain.Event
}

// persister writes a room's committed events to the durable log in commit
// order, off the room's serialization point.
type persister struct {
	roomId     string
	createdAt  time.Time
	repo       iRoomRepo
	logger     *slog.Logger
	timeout    time.Duration
	maxElapsed time.Duration

	mu      sync.Mutex
	create  bool
	queue   []domain.Event
	remove  bool
	stopped bool
	// lost is set once an append could not be written. Later appends would
	// leave a gap, so the durable log is dropped and nothing more is written.
	lost   bool
	notify chan struct{}
	done   chan struct{}
}

func newPersister(roomId string, createdAt time.Time, create bool, repo iRoomRepo, logger *slog.Logger, timeout, maxElapsed time.Duration) *persister {
	return &persister{
		roomId:     roomId,
		createdAt:  createdAt,
		repo:       repo,
		logger:     logger,
		timeout:    timeout,
		maxElapsed: maxElapsed,
		create:     create,
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

func (p *persister) signal() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *persister) enqueue(e domain.Event) {
	p.mu.Lock()
	p.queue = append(p.queue, e)
	p.mu.Unlock()
	p.signal()
}

// removeRoom deletes the room once the queue is drained and stops the persister.
func (p *persister) removeRoom() {
	p.mu.Lock()
	p.remove = true
	p.stopped = true
	p.mu.Unlock()
	p.signal()
}

func (p *persister) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.signal()
}

func (p *persister) next() (persistOp, bool) {
	for {
		p.mu.Lock()
		switch {
		case p.create:
			p.create = false
			p.mu.Unlock()
			return persistOp{kind: opCreate}, true
		case len(p.queue) > 0 && p.lost:
			p.queue = nil
			p.mu.Unlock()
			continue
		case len(p.queue) > 0:
			e := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			return persistOp{kind: opAppend, event: e}, true
		case p.remove:
			p.remove = false
			p.mu.Unlock()
			return persistOp{kind: opRemove}, true
		case p.stopped:
			p.mu.Unlock()
			return persistOp{}, false
		}
		p.mu.Unlock()

		<-p.notify
	}
}

func (p *persister) run() {
	defer close(p.done)

	for {
		op, ok := p.next()
		if !ok {
			if p.isLost() {
				metrics.RoomsNotDurable.Dec()
			}
			return
		}

		if err := p.retry(op); err != nil {
			p.logger.Error("giving up persisting", "room_id", p.roomId, "op", op.kind, "seq", op.event.Seq, "error", err)
			if op.kind == opAppend {
				p.drop()
			}
		}
	}
}

func (p *persister) retry(op persistOp) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxElapsedTime = p.maxElapsed

	return backoff.Retry(func() error {
		err := p.execute(op)
		if err != nil {
			metrics.PersistFailures.Inc()
			p.logger.Warn("failed to persist", "room_id", p.roomId, "op", op.kind, "seq", op.event.Seq, "error", err)
		}
		return err
	}, b)
}

// drop gives up on the durable log after a lost append. The stored prefix is
// deleted so a restart cannot rebuild the room from an older state.
func (p *persister) drop() {
	p.mu.Lock()
	if p.lost {
		p.mu.Unlock()
		return
	}
	p.lost = true
	p.queue = nil
	p.mu.Unlock()

	metrics.RoomsNotDurable.Inc()
	p.logger.Error("durable log dropped, room is kept in memory only", "room_id", p.roomId)

	if err := p.retry(persistOp{kind: opRemove}); err != nil {
		p.logger.Error("failed to drop durable log", "room_id", p.roomId, "error", err)
	}
}

func (p *persister) isLost() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.lost
}

func (p *persister) execute(op persistOp) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	switch op.kind {
	case opCreate:
		return p.createRoom(ctx)
	case opAppend:
		err := p.repo.AppendEvent(ctx, &room.AppendEventParams{
			RoomId: p.roomId,
			Event:  op.event,
		})
		switch {
		case err == nil, errors.Is(err, room.ErrEventAlreadyStored):
			return nil
		case errors.Is(err, room.ErrRoomNotFound):
			// meta was never written: recreate and retry the append
			if createErr := p.createRoom(ctx); createErr != nil {
				return createErr
			}
			return err
		case errors.Is(err, room.ErrSeqConflict):
			return backoff.Permanent(err)
		default:
			return err
		}
	case opRemove:
		return p.repo.RemoveRoom(ctx, p.roomId)
	}

	return nil
}

func (p *persister) createRoom(ctx context.Context) error {
	err := p.repo.CreateRoom(ctx, &room.CreateRoomParams{
		RoomId:    p.roomId,
		CreatedAt: p.createdAt,
	})
	if err != nil && !errors.Is(err, room.ErrRoomAlreadyExists) {
		return err
	}

	return nil
}
