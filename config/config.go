// Package config centralizes the compile-time tunables for the mount firmware:
// axis kinematics constants and the motion/link timing constants named in the
// firmware's timing budget.
package config

import "time"

// Axis identifies one of the three physical motion channels.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	NumAxes
)

// Mechanical constants shared by every axis.
const (
	StepsPerRev   = 400
	Microstepping = 16

	// ArcsecPerRev is the number of arc-seconds in one full revolution
	// (60 arcsec/arcmin * 60 arcmin/deg * 360 deg).
	ArcsecPerRev = 1_296_000
)

// GearRatio returns the motor-to-axis gear ratio for the given axis.
func GearRatio(a Axis) float64 {
	switch a {
	case AxisX:
		return 28.5714285714 // 400:14
	case AxisY:
		return 23.5714285714 // 330:14
	case AxisZ:
		return 30.0 // 420:14
	default:
		return 0
	}
}

// Motion timing constants (spec.md §4.2 "Timing constants (defaults)").
const (
	StepPulseWidthUS = 1
	StepIntervalUS   = 1000 // 1kHz step rate in static mode
	DirSetupUS       = 1

	IdleSleep     = 10 * time.Millisecond
	ActiveSleep   = 50 * time.Microsecond
	InactiveSleep = 1 * time.Millisecond
)

// Link timing constants (spec.md §4.5).
const (
	AckTimeout      = 300 * time.Millisecond
	MaxRetransmits  = 3
	MaxMissedAcks   = 2
	StatusPeriod    = 2 * time.Second
	RXAccumMax         = 128
	ResponseQueueSz    = 4
	MaxPendingPayload  = 64 // pending outbound message (§3 "Pending outbound message")
	MaxResponsePayload = 32 // response queue slot (§3 "Response queue")
)

// Link transport constants (spec.md §6).
const (
	BaudRate = 9600
	DataBits = 8
	StopBits = 1
)
