// Package kinematics implements the pure arc-second/microstep conversions
// used by the motion scheduler. Conversions are parameterised by gear ratio
// so the same functions serve all three axes.
package kinematics

import "github.com/skywatch/mountfw/config"

// ArcsecToSteps converts a target angle in arc-seconds to motor microsteps
// for an axis with the given gear ratio, rounding half away from zero.
func ArcsecToSteps(arcsec int32, gearRatio float64) int32 {
	scale := float64(config.StepsPerRev) * float64(config.Microstepping) * gearRatio / float64(config.ArcsecPerRev)
	return roundHalfAwayFromZero(float64(arcsec) * scale)
}

// StepsToArcsec converts a microstep count back to arc-seconds for an axis
// with the given gear ratio. Not an exact inverse of ArcsecToSteps, but the
// two round-trip to within ±1 step/arc-second.
func StepsToArcsec(steps int32, gearRatio float64) int32 {
	scale := float64(config.ArcsecPerRev) / (float64(config.StepsPerRev) * float64(config.Microstepping) * gearRatio)
	return roundHalfAwayFromZero(float64(steps) * scale)
}

// roundHalfAwayFromZero adds/subtracts 0.5 before truncating, per spec.md §4.1.
func roundHalfAwayFromZero(v float64) int32 {
	if v >= 0 {
		return int32(v + 0.5)
	}
	return int32(v - 0.5)
}
