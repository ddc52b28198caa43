package syncclient

import "errors"

var ErrGapTooLarge = errors.New("too many events waiting for a missing seq")

// Sequencer drops duplicate events and holds back out-of-order ones until the
// gap before them is filled.
type Sequencer struct {
	next    uint64
	pending map[uint64]Event
	limit   int
}

func NewSequencer(next uint64, limit int) *Sequencer {
	return &Sequencer{
		next:    next,
		pending: make(map[uint64]Event),
		limit:   limit,
	}
}

// Push returns the events that are now deliverable, in seq order.
func (s *Sequencer) Push(e Event) ([]Event, error) {
	if e.Seq < s.next {
		return nil, nil
	}
	if _, ok := s.pending[e.Seq]; ok {
		return nil, nil
	}
	if e.Seq > s.next && s.limit > 0 && len(s.pending) >= s.limit {
		return nil, ErrGapTooLarge
	}

	s.pending[e.Seq] = e

	var released []Event
	for {
		next, ok := s.pending[s.next]
		if !ok {
			break
		}
		delete(s.pending, s.next)
		released = append(released, next)
		s.next++
	}

	return released, nil
}

// Next is the seq the sequencer is waiting for.
func (s *Sequencer) Next() uint64 {
	return s.next
}

func (s *Sequencer) Pending() int {
	return len(s.pending)
}

// Reset drops buffered events and waits for next.
func (s *Sequencer) Reset(next uint64) {
	s.next = next
	clear(s.pending)
}
