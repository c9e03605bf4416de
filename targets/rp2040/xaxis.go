//go:build rp2040 || rp2350

package main

import (
	"machine"

	"github.com/skywatch/mountfw/hal"
)

// mirroredDirBackend wraps a StepperBackend and drives a second, inverted
// direction pin in lockstep with the first — the X axis's direction signal
// is physically duplicated onto a mirror pin for an external polarity-
// reversing cable run (spec.md §3 "X's direction signal is physically
// duplicated onto a second, inverted pin").
type mirroredDirBackend struct {
	hal.StepperBackend
	mirrorPin machine.Pin
}

// newMirroredDirBackend wraps inner so SetDirection also drives mirrorPin,
// inverted.
func newMirroredDirBackend(inner hal.StepperBackend, mirrorPin hal.Pin) hal.StepperBackend {
	pin := machine.Pin(mirrorPin)
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Low()
	return &mirroredDirBackend{StepperBackend: inner, mirrorPin: pin}
}

func (b *mirroredDirBackend) SetDirection(dir bool) {
	b.StepperBackend.SetDirection(dir)
	b.mirrorPin.Set(!dir)
}
