// Package motion implements the step-pulse generator that owns authoritative
// position state for the X, Y, and Z axes and runs on the dedicated worker
// core (spec.md §4.2, §5). The queued-move/acceleration bookkeeping of the
// teacher's core/stepper.go is replaced by the spec's simpler
// constant-interval static+tracking model (no acceleration ramps — spec.md
// §1 Non-goals), but the per-axis position/backend/HAL wiring follows the
// same shape.
package motion

import (
	"sync/atomic"

	"github.com/skywatch/mountfw/config"
	"github.com/skywatch/mountfw/hal"
)

// Axis owns the position and timing state for one motion channel. Position
// is mutated only on the motion core; other readers use an atomic load
// (spec.md §3 "Ownership").
type Axis struct {
	id        config.Axis
	gearRatio float64
	backend   hal.StepperBackend

	position int64 // atomic

	lastDirection   int32 // atomic: 0=forward, 1=reverse (last commanded)
	lastStepUS      uint32
	lastDirChangeUS uint32
	steppedOnce     bool // true once lastStepUS holds a real timestamp

	dirInitialized bool
}

// NewAxis constructs an axis bound to a hardware backend.
func NewAxis(id config.Axis, backend hal.StepperBackend) *Axis {
	return &Axis{
		id:        id,
		gearRatio: config.GearRatio(id),
		backend:   backend,
	}
}

// PositionSteps returns the current position in microsteps via an atomic
// load (safe to call from either core).
func (a *Axis) PositionSteps() int32 {
	return int32(atomic.LoadInt64(&a.position))
}

func (a *Axis) addSteps(delta int32) {
	atomic.AddInt64(&a.position, int64(delta))
}

// setPositionForTest directly sets position (tests only).
func (a *Axis) setPositionForTest(p int32) {
	atomic.StoreInt64(&a.position, int64(p))
}

// direction returns the last commanded logical direction: false=forward
// (position increments), true=reverse (position decrements).
func (a *Axis) direction() bool {
	return atomic.LoadInt32(&a.lastDirection) != 0
}

// setDirection updates the direction pin (and mirrored pin for X, handled
// by the backend itself) if it changed, recording the change timestamp for
// the DIR_SETUP_US gate. Returns true if the direction actually changed.
func (a *Axis) setDirection(nowUS uint32, reverse bool) bool {
	want := int32(0)
	if reverse {
		want = 1
	}
	if a.dirInitialized && atomic.LoadInt32(&a.lastDirection) == want {
		return false
	}
	atomic.StoreInt32(&a.lastDirection, want)
	a.dirInitialized = true
	a.backend.SetDirection(reverse)
	a.lastDirChangeUS = nowUS
	return true
}

// step emits one pulse and advances position by ±1 according to dir
// (false=forward/increment, true=reverse/decrement).
func (a *Axis) step(nowUS uint32, reverse bool) {
	a.backend.Step()
	if reverse {
		a.addSteps(-1)
	} else {
		a.addSteps(1)
	}
	a.lastStepUS = nowUS
	a.steppedOnce = true
}
