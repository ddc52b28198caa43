package syncclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqs(events []Event) []uint64 {
	out := make([]uint64, 0, len(events))
	for _, e := range events {
		out = append(out, e.Seq)
	}

	return out
}

func TestSequencerReordersAndDedupes(t *testing.T) {
	s := NewSequencer(5, 10)

	released, err := s.Push(Event{Seq: 7})
	require.NoError(t, err)
	assert.Empty(t, released)

	released, err = s.Push(Event{Seq: 6})
	require.NoError(t, err)
	assert.Empty(t, released)
	assert.Equal(t, 2, s.Pending())

	// duplicate of a buffered event
	released, err = s.Push(Event{Seq: 7})
	require.NoError(t, err)
	assert.Empty(t, released)

	released, err = s.Push(Event{Seq: 5})
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 6, 7}, seqs(released))
	assert.Equal(t, uint64(8), s.Next())

	// duplicate of a delivered event
	released, err = s.Push(Event{Seq: 6})
	require.NoError(t, err)
	assert.Empty(t, released)
}

func TestSequencerGapLimit(t *testing.T) {
	s := NewSequencer(0, 2)

	_, err := s.Push(Event{Seq: 2})
	require.NoError(t, err)
	_, err = s.Push(Event{Seq: 3})
	require.NoError(t, err)

	_, err = s.Push(Event{Seq: 4})
	require.ErrorIs(t, err, ErrGapTooLarge)

	// the missing event is still accepted
	released, err := s.Push(Event{Seq: 0})
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, seqs(released))

	s.Reset(10)
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, uint64(10), s.Next())
}
