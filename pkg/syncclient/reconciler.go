package syncclient

import (
	"iter"
	"math"
	"sync/atomic"
	"time"
)

const DefaultDriftTolerance = 1.0

// Instruction is the absolute state a local player should be in. Applying the
// same instruction twice has no additional effect.
type Instruction struct {
	Seq      uint64
	VideoRef string
	Playing  bool
	// Seek is set when Position differs from the local position by more than
	// the drift tolerance.
	Seek     bool
	Position float64
}

// Player reports the local playback position in seconds.
type Player interface {
	Position() float64
}

type Reconciler struct {
	tolerance atomic.Uint64
}

func NewReconciler(tolerance float64) *Reconciler {
	r := &Reconciler{}
	r.SetTolerance(tolerance)

	return r
}

// SetTolerance changes the drift tolerance in seconds, e.g. to the value the
// server advertises on join.
func (r *Reconciler) SetTolerance(tolerance float64) {
	if tolerance <= 0 || math.IsNaN(tolerance) {
		tolerance = DefaultDriftTolerance
	}
	r.tolerance.Store(math.Float64bits(tolerance))
}

func (r *Reconciler) Tolerance() float64 {
	return math.Float64frombits(r.tolerance.Load())
}

// Target is the position the room is at for a playback state, given the room
// clock now and the one-way latency to the server.
func Target(state PlaybackState, now int64, oneWay time.Duration) float64 {
	if state.Mode != ModePlaying {
		return state.AnchorPosition
	}

	elapsed := now - state.AnchorTimestamp - oneWay.Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}

	return state.AnchorPosition + float64(elapsed)/1000
}

// Reconcile builds the instruction for state with local as the current local
// position.
func (r *Reconciler) Reconcile(seq uint64, state PlaybackState, local float64, now int64, oneWay time.Duration) Instruction {
	ins := Instruction{
		Seq:      seq,
		VideoRef: state.VideoRef,
		Playing:  state.Mode == ModePlaying,
	}
	if state.Mode == ModeIdle {
		return ins
	}

	ins.Position = Target(state, now, oneWay)
	ins.Seek = math.IsNaN(local) || math.Abs(local-ins.Position) > r.Tolerance()

	return ins
}

// Corrections yields one instruction per playback event in events, for as long
// as events keeps producing. clock returns the room time, player may be nil.
func (r *Reconciler) Corrections(events iter.Seq[Event], clock func() (now int64, oneWay time.Duration), player Player) iter.Seq[Instruction] {
	return func(yield func(Instruction) bool) {
		for e := range events {
			if e.Playback == nil {
				continue
			}

			local := math.NaN()
			if player != nil {
				local = player.Position()
			}
			now, oneWay := clock()

			if !yield(r.Reconcile(e.Seq, *e.Playback, local, now, oneWay)) {
				return
			}
		}
	}
}
