package room

import (
	"sync"

	"github.com/sharetube/roomsync/internal/domain"
)

// Subscription is a participant's ordered feed of committed events. Events
// arrive in seq order with no duplicates. Once Done is closed no further events
// are delivered and Err tells why.
type Subscription struct {
	events chan domain.Event
	done   chan struct{}
	once   sync.Once
	err    error
}

func newSubscription(size int) *Subscription {
	return &Subscription{
		events: make(chan domain.Event, size),
		done:   make(chan struct{}),
	}
}

func (s *Subscription) Events() <-chan domain.Event {
	return s.events
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err is nil after a clean leave, ErrQueueOverflow when the consumer fell
// behind, ErrReplaced when a newer connection took over.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// offer never blocks. A false result means the queue is full.
func (s *Subscription) offer(e domain.Event) bool {
	select {
	case <-s.done:
		return true
	default:
	}

	select {
	case s.events <- e:
		return true
	default:
		return false
	}
}

func (s *Subscription) close(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}
