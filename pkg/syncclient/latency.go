package syncclient

import (
	"sync"
	"time"
)

const (
	defaultSmoothing      = 0.2
	defaultInitialLatency = 50 * time.Millisecond
)

// LatencyEstimator tracks round-trip time and the room clock offset from
// PING/PONG exchanges.
//
// The offset is room_time minus the client time the PING was sent at, so it
// includes one one-way latency: Now runs ahead of the true room clock by
// OneWay. Reconciler subtracts OneWay back out when it computes a target.
type LatencyEstimator struct {
	mu        sync.Mutex
	smoothing float64
	initial   time.Duration
	rtt       float64
	offset    float64
	samples   int
	seeded    bool
}

func NewLatencyEstimator(smoothing float64, initial time.Duration) *LatencyEstimator {
	if smoothing <= 0 || smoothing > 1 {
		smoothing = defaultSmoothing
	}
	if initial <= 0 {
		initial = defaultInitialLatency
	}

	return &LatencyEstimator{
		smoothing: smoothing,
		initial:   initial,
	}
}

// Seed sets a first offset from a room time that arrived at receivedAt, before
// any PONG has been observed. It is ignored once samples exist.
func (e *LatencyEstimator) Seed(roomTime, receivedAt int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.samples > 0 {
		return
	}

	oneWay := float64(e.initial.Milliseconds())
	e.offset = float64(roomTime-receivedAt) + 2*oneWay
	e.seeded = true
}

// Observe records a PONG. All times are milliseconds; clientTime is the
// value echoed from the PING and receivedAt the local time of the PONG.
func (e *LatencyEstimator) Observe(clientTime, roomTime, receivedAt int64) {
	rtt := float64(receivedAt - clientTime)
	if rtt < 0 {
		rtt = 0
	}
	offset := float64(roomTime - clientTime)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.samples == 0 {
		e.rtt = rtt
		e.offset = offset
	} else {
		e.rtt += e.smoothing * (rtt - e.rtt)
		e.offset += e.smoothing * (offset - e.offset)
	}
	e.samples++
	e.seeded = true
}

func (e *LatencyEstimator) RTT() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.samples == 0 {
		return 2 * e.initial
	}

	return time.Duration(e.rtt * float64(time.Millisecond))
}

// OneWay is half the smoothed RTT, or the initial estimate before any sample.
func (e *LatencyEstimator) OneWay() time.Duration {
	return e.RTT() / 2
}

// Now maps local milliseconds onto the room clock. The second result is false
// until the estimator has been seeded or has observed a PONG.
func (e *LatencyEstimator) Now(local int64) (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return local + int64(e.offset), e.seeded
}

func (e *LatencyEstimator) Samples() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.samples
}
