package syncclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyEstimatorBeforeSamples(t *testing.T) {
	e := NewLatencyEstimator(0.5, 40*time.Millisecond)

	assert.Equal(t, 40*time.Millisecond, e.OneWay())
	_, ok := e.Now(1000)
	assert.False(t, ok)

	e.Seed(5000, 1000)
	now, ok := e.Now(1000)
	assert.True(t, ok)
	assert.Equal(t, int64(5080), now)
}

func TestLatencyEstimatorObserve(t *testing.T) {
	e := NewLatencyEstimator(0.5, 0)

	// sent at 1000, server stamped 5050, received at 1100
	e.Observe(1000, 5050, 1100)
	assert.Equal(t, 100*time.Millisecond, e.RTT())
	assert.Equal(t, 50*time.Millisecond, e.OneWay())

	now, ok := e.Now(1100)
	assert.True(t, ok)
	assert.Equal(t, int64(5150), now)

	e.Observe(2000, 6050, 2200)
	assert.Equal(t, 150*time.Millisecond, e.RTT())
	assert.Equal(t, 2, e.Samples())

	// seeding after samples has no effect
	e.Seed(0, 0)
	now, _ = e.Now(1100)
	assert.Equal(t, int64(5150), now)
}

func TestLatencyEstimatorNegativeRTT(t *testing.T) {
	e := NewLatencyEstimator(0.5, 0)

	e.Observe(1000, 2000, 900)
	assert.Equal(t, time.Duration(0), e.RTT())
}
