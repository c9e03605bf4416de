package motion

import (
	"math"
	"sync/atomic"

	"github.com/skywatch/mountfw/config"
)

// TrackingState is the global tracking record: an atomic "active" flag plus
// a triple of atomic per-axis rate cells, all written from the main core and
// read from the motion core (spec.md §9 "Tracking record"). Rates are
// stored as their IEEE-754 bit pattern so each cell can be a uint32 read and
// written with atomic loads and stores.
type TrackingState struct {
	active int32 // atomic
	rates  [config.NumAxes]uint32 // atomic, math.Float32bits(rate)
}

// SetActive flips the tracking-active flag.
func (t *TrackingState) SetActive(active bool) {
	v := int32(0)
	if active {
		v = 1
	}
	atomic.StoreInt32(&t.active, v)
}

// Active reports whether tracking mode is currently engaged.
func (t *TrackingState) Active() bool {
	return atomic.LoadInt32(&t.active) != 0
}

// SetRate publishes axis a's rate in arc-seconds/second (sign encodes
// direction).
func (t *TrackingState) SetRate(a config.Axis, rate float32) {
	atomic.StoreUint32(&t.rates[a], math.Float32bits(rate))
}

// Rate returns axis a's currently published rate.
func (t *TrackingState) Rate(a config.Axis) float32 {
	return math.Float32frombits(atomic.LoadUint32(&t.rates[a]))
}
