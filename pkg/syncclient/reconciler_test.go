package syncclient

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fixedPlayer float64

func (p fixedPlayer) Position() float64 {
	return float64(p)
}

func TestTarget(t *testing.T) {
	playing := PlaybackState{
		VideoRef:        "v",
		Mode:            ModePlaying,
		AnchorPosition:  10,
		AnchorTimestamp: 1000,
	}

	assert.InDelta(t, 12.0, Target(playing, 3100, 100*time.Millisecond), 1e-9)
	// latency larger than the elapsed time never moves the target back
	assert.InDelta(t, 10.0, Target(playing, 1050, 100*time.Millisecond), 1e-9)

	paused := playing
	paused.Mode = ModePaused
	assert.InDelta(t, 10.0, Target(paused, 9000, 0), 1e-9)
}

func TestReconcileDriftTolerance(t *testing.T) {
	r := NewReconciler(1.0)
	state := PlaybackState{
		VideoRef:        "v",
		Mode:            ModePlaying,
		AnchorPosition:  30,
		AnchorTimestamp: 0,
	}

	ins := r.Reconcile(4, state, 30.5, 100, 0)
	assert.False(t, ins.Seek)
	assert.True(t, ins.Playing)
	assert.InDelta(t, 30.1, ins.Position, 1e-9)

	ins = r.Reconcile(4, state, 28, 100, 0)
	assert.True(t, ins.Seek)
	assert.Equal(t, uint64(4), ins.Seq)

	ins = r.Reconcile(4, state, math.NaN(), 100, 0)
	assert.True(t, ins.Seek)

	// same input, same instruction
	assert.Equal(t, r.Reconcile(4, state, 28, 100, 0), r.Reconcile(4, state, 28, 100, 0))
}

func TestReconcileIdle(t *testing.T) {
	r := NewReconciler(0)
	assert.InDelta(t, DefaultDriftTolerance, r.Tolerance(), 1e-9)

	ins := r.Reconcile(1, NewPlaybackState(), 12, 100, 0)
	assert.Equal(t, Instruction{Seq: 1}, ins)
}

func TestCorrections(t *testing.T) {
	r := NewReconciler(1.0)

	paused := PlaybackState{VideoRef: "v", Mode: ModePaused, AnchorPosition: 5, AnchorTimestamp: 10}
	playing := PlaybackState{VideoRef: "v", Mode: ModePlaying, AnchorPosition: 5, AnchorTimestamp: 20}
	events := slices.Values([]Event{
		{Seq: 1, Type: EventLoad, Playback: &paused},
		{Seq: 2, Type: EventChat},
		{Seq: 3, Type: EventPlay, Playback: &playing},
	})
	clock := func() (int64, time.Duration) {
		return 2020, 0
	}

	var got []Instruction
	for ins := range r.Corrections(events, clock, fixedPlayer(5)) {
		got = append(got, ins)
	}

	assert.Equal(t, []Instruction{
		{Seq: 1, VideoRef: "v", Position: 5},
		{Seq: 3, VideoRef: "v", Playing: true, Seek: true, Position: 7},
	}, got)
}

func TestCorrectionsStopEarly(t *testing.T) {
	r := NewReconciler(1.0)

	state := PlaybackState{VideoRef: "v", Mode: ModePaused}
	infinite := func(yield func(Event) bool) {
		for seq := uint64(0); ; seq++ {
			if !yield(Event{Seq: seq, Playback: &state}) {
				return
			}
		}
	}
	clock := func() (int64, time.Duration) {
		return 0, 0
	}

	n := 0
	for range r.Corrections(infinite, clock, nil) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}
