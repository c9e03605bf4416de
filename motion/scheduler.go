package motion

import (
	"sync/atomic"

	"github.com/skywatch/mountfw/config"
	"github.com/skywatch/mountfw/diag"
	"github.com/skywatch/mountfw/hal"
	"github.com/skywatch/mountfw/kinematics"
	"github.com/skywatch/mountfw/timebase"
)

// Scheduler owns the three axes, their command slots, and the tracking
// record, and runs the motion loop on the dedicated worker core (spec.md
// §4.2, §5, §9). It never blocks on the link; shared fields are plain
// atomics written by dispatch (main core) and read here.
type Scheduler struct {
	axes  [config.NumAxes]*Axis
	slots [config.NumAxes]CommandSlot
	track TrackingState

	enabled int32 // atomic bool, driver output-enable (active-low at the pin)
	paused  int32 // atomic bool
}

// NewScheduler wires a scheduler to the three axis backends. Power-on state
// is disabled + paused (spec.md §6 "Power-on").
func NewScheduler(xBackend, yBackend, zBackend hal.StepperBackend) *Scheduler {
	s := &Scheduler{
		axes: [config.NumAxes]*Axis{
			NewAxis(config.AxisX, xBackend),
			NewAxis(config.AxisY, yBackend),
			NewAxis(config.AxisZ, zBackend),
		},
	}
	atomic.StoreInt32(&s.paused, 1)
	return s
}

// --- Commands invoked by dispatch (main core) ---

// SetEnable flips the enable flag. Disabling abandons any active move with
// position held at its last known count (spec.md §5 "Cancellation").
func (s *Scheduler) SetEnable(enable bool) {
	v := int32(0)
	if enable {
		v = 1
	}
	atomic.StoreInt32(&s.enabled, v)
}

// Enabled reports the current enable state.
func (s *Scheduler) Enabled() bool { return atomic.LoadInt32(&s.enabled) != 0 }

// Pause engages the pause gate.
func (s *Scheduler) Pause() { atomic.StoreInt32(&s.paused, 1) }

// Resume disengages pause and implicitly enables (spec.md §4.2 "Resume
// implicitly enables if disabled").
func (s *Scheduler) Resume() {
	atomic.StoreInt32(&s.paused, 0)
	s.SetEnable(true)
}

// Paused reports the current pause state.
func (s *Scheduler) Paused() bool { return atomic.LoadInt32(&s.paused) != 0 }

// QueueStaticMove publishes an absolute-move target for axis a, clearing
// tracking first so a static move always cancels tracking (spec.md §4.2
// "Mode transitions"). Rejected (no-op) if the axis index is invalid or
// motors are disabled (spec.md §4.2 "Failure semantics").
func (s *Scheduler) QueueStaticMove(a config.Axis, targetArcsec int32) error {
	if int(a) >= len(s.axes) {
		diag.Println("motion: reject MOVE_STATIC, invalid axis")
		return errInvalidAxis
	}
	if !s.Enabled() {
		diag.Println("motion: reject MOVE_STATIC, motors disabled")
		return errDisabled
	}
	s.track.SetActive(false)
	s.slots[a].Publish(targetArcsec)
	return nil
}

// StartTracking clears all three command slots and engages tracking with
// the given per-axis rates, setting direction pins once from each rate's
// sign (spec.md §4.2 "Tracking mode", §3 "Starting tracking clears all
// three command slots").
func (s *Scheduler) StartTracking(rx, ry, rz float32) error {
	if !s.Enabled() {
		diag.Println("motion: reject MOVE_TRACKING, motors disabled")
		return errDisabled
	}
	for i := range s.slots {
		s.slots[i].Clear()
	}
	rates := [config.NumAxes]float32{rx, ry, rz}
	now := timebase.NowUS()
	for i, r := range rates {
		s.track.SetRate(config.Axis(i), r)
		s.axes[i].setDirection(now, r < 0)
	}
	s.track.SetActive(true)
	return nil
}

// StopAllMoves clears all three command slots and leaves tracking untouched
// (spec.md §4.2 "Mode transitions").
func (s *Scheduler) StopAllMoves() {
	for i := range s.slots {
		s.slots[i].Clear()
	}
}

// PositionArcsec returns axis a's position converted to arc-seconds.
func (s *Scheduler) PositionArcsec(a config.Axis) int32 {
	ax := s.axes[a]
	return kinematics.StepsToArcsec(ax.PositionSteps(), ax.gearRatio)
}

// --- The motion loop itself (runs on the worker core) ---

// Run is the unbounded worker-core loop (spec.md §4.2). It never returns.
func (s *Scheduler) Run() {
	for {
		stepped := s.RunOnce(timebase.NowUS())
		if !s.Enabled() || s.Paused() {
			timebase.SleepUS(config.IdleSleep)
		} else if stepped {
			timebase.SleepUS(config.ActiveSleep)
		} else {
			timebase.SleepUS(config.InactiveSleep)
		}
	}
}

// RunOnce executes a single pass over all three axes at time nowUS and
// reports whether any axis stepped. Split out from Run so tests can drive
// the loop deterministically against a simulated clock.
func (s *Scheduler) RunOnce(nowUS uint32) bool {
	if !s.Enabled() || s.Paused() {
		return false
	}

	stepped := false
	if s.track.Active() {
		for i := range s.axes {
			if s.runTrackingAxis(config.Axis(i), nowUS) {
				stepped = true
			}
		}
	} else {
		// Fixed order X, Y, Z within a pass (spec.md §4.2 "Tie-breaking").
		for i := range s.axes {
			if s.runStaticAxis(config.Axis(i), nowUS) {
				stepped = true
			}
		}
	}
	return stepped
}

func (s *Scheduler) runTrackingAxis(a config.Axis, nowUS uint32) bool {
	rate := s.track.Rate(a)
	if rate == 0 {
		return false
	}
	ax := s.axes[a]

	absRate := rate
	if absRate < 0 {
		absRate = -absRate
	}
	stepsPerSec := float64(absRate) * (float64(config.StepsPerRev) * float64(config.Microstepping) * ax.gearRatio) / float64(config.ArcsecPerRev)
	if stepsPerSec <= 0 {
		return false
	}
	intervalUS := uint32(1_000_000.0 / stepsPerSec)

	if ax.steppedOnce && timebase.Elapsed(nowUS, ax.lastStepUS) < intervalUS {
		return false
	}
	reverse := rate < 0
	ax.step(nowUS, reverse)
	diag.Record(diag.EvtStep, uint8(a), nowUS, 1, 0)
	return true
}

func (s *Scheduler) runStaticAxis(a config.Axis, nowUS uint32) bool {
	slot := &s.slots[a]
	targetArcsec, ok := slot.Take()
	if !ok {
		return false
	}
	ax := s.axes[a]

	targetSteps := kinematics.ArcsecToSteps(targetArcsec, ax.gearRatio)
	remaining := targetSteps - ax.PositionSteps()
	if remaining == 0 {
		slot.Clear()
		return false
	}

	reverse := remaining < 0
	if ax.setDirection(nowUS, reverse) {
		diag.Record(diag.EvtDirChange, uint8(a), nowUS, 0, 0)
	}

	if ax.dirInitialized && timebase.Elapsed(nowUS, ax.lastDirChangeUS) < config.DirSetupUS {
		return false
	}
	if ax.steppedOnce && timebase.Elapsed(nowUS, ax.lastStepUS) < config.StepIntervalUS {
		return false
	}

	ax.step(nowUS, reverse)
	diag.Record(diag.EvtStep, uint8(a), nowUS, 1, 0)
	return true
}
