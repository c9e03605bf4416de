// Package timebase provides the monotonic microsecond counter shared by the
// motion scheduler and the link engine, and the wrap-safe comparison helper
// both rely on for interval/timeout arithmetic.
package timebase

import "time"

// hardwareNowUS is set by platform init code to read the real hardware
// counter. When nil (plain "go test" builds), NowUS falls back to the
// process-local counter manipulated by SetUS, mirroring the teacher's
// core/timer_tinygo.go / core/timer_go.go split (core/timer.go: "falls back
// to cached value (for testing or platforms without direct access)").
var hardwareNowUS func() uint32

var simulatedUS uint32

// NowUS returns the current monotonic time in microseconds as a free-running
// 32-bit counter. Callers must compare times with Elapsed/SinceAtLeast, never with
// plain subtraction, so a wrap at 2^32 us (~71 minutes) is handled correctly.
func NowUS() uint32 {
	if hardwareNowUS != nil {
		return hardwareNowUS()
	}
	return simulatedUS
}

// SetHardwareClock registers the platform-specific hardware time source.
// Must be called once during boot, before any motion or link code runs.
func SetHardwareClock(f func() uint32) {
	hardwareNowUS = f
}

// SetUS sets the simulated clock (testing only; no-op once a hardware clock
// is registered).
func SetUS(us uint32) {
	simulatedUS = us
}

// AdvanceUS advances the simulated clock (testing only).
func AdvanceUS(delta uint32) {
	simulatedUS += delta
}

// Elapsed returns now-since in microseconds, correct across a 32-bit wrap.
func Elapsed(now, since uint32) uint32 {
	return uint32(int32(now - since))
}

// SinceAtLeast reports whether at least d has elapsed since `since`.
func SinceAtLeast(now, since uint32, d time.Duration) bool {
	return int32(now-since) >= int32(d.Microseconds())
}

// SleepUS suspends the caller for approximately d. On tinygo targets this is
// a cooperative yield (time.Sleep); callers in the motion/link loops never
// hold any lock across this call (spec.md §5 "No component may hold a lock
// across a sleep").
func SleepUS(d time.Duration) {
	time.Sleep(d)
}
