//go:build rp2040 || rp2350

// Package pio supplies the RP2040/RP2350 stepper backends: a direct-SIO
// GPIO fallback (this file) and a PIO-accelerated implementation
// (stepper_pio.go), both satisfying hal.StepperBackend. Selection between
// them is done by stepper_init.go.
package pio

import (
	"device/arm"
	"device/rp"
	"machine"

	"github.com/skywatch/mountfw/config"
	"github.com/skywatch/mountfw/hal"
)

// GPIOStepperBackend drives a step/dir pair with direct SIO register writes
// for minimum-jitter pulse generation without PIO hardware (the universal
// fallback), adapted from the teacher's direct-register GPIO backend.
type GPIOStepperBackend struct {
	stepPin machine.Pin
	dirPin  machine.Pin

	invertStep bool

	stepSetMask   uint32
	stepClearMask uint32
}

// cpuClockHz is the RP2040/RP2350 system clock the busy-wait loop below is
// timed against.
const cpuClockHz = 125_000_000

// pulseWidthCycles and dirSetupCycles are the minimum loop counts needed to
// hold a line for config.StepPulseWidthUS/config.DirSetupUS at cpuClockHz.
// Each busyWait iteration costs more than one cycle (branch plus decrement),
// so looping this many times always holds the line at least as long as the
// spec constant requires, even though it's a generous over-count.
var (
	pulseWidthCycles = cyclesFor(config.StepPulseWidthUS)
	dirSetupCycles   = cyclesFor(config.DirSetupUS)
)

// cyclesFor converts a microsecond duration to a cpuClockHz cycle count.
func cyclesFor(us int64) int {
	n := int(us * cpuClockHz / 1_000_000)
	if n < 1 {
		n = 1
	}
	return n
}

// busyWait spins for at least n CPU cycles using single-instruction NOPs,
// the same technique the teacher's backend used with a fixed literal count.
func busyWait(n int) {
	for i := 0; i < n; i++ {
		arm.Asm("nop")
	}
}

// NewGPIOStepperBackend constructs an unconfigured GPIO backend.
func NewGPIOStepperBackend() *GPIOStepperBackend {
	return &GPIOStepperBackend{}
}

// Init configures the step/dir pins (hal.StepperBackend).
func (b *GPIOStepperBackend) Init(stepPin, dirPin hal.Pin, invertStep bool) error {
	b.stepPin = machine.Pin(stepPin)
	b.dirPin = machine.Pin(dirPin)
	b.invertStep = invertStep

	b.stepPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	b.stepPin.Low()
	b.dirPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	b.dirPin.Low()

	b.stepSetMask = 1 << uint32(stepPin)
	b.stepClearMask = b.stepSetMask
	if invertStep {
		b.stepSetMask, b.stepClearMask = b.stepClearMask, b.stepSetMask
	}
	return nil
}

// Step emits one pulse at least config.StepPulseWidthUS wide.
func (b *GPIOStepperBackend) Step() {
	rp.SIO.GPIO_OUT_SET.Set(b.stepSetMask)
	busyWait(pulseWidthCycles)
	rp.SIO.GPIO_OUT_CLR.Set(b.stepClearMask)
}

// SetDirection sets the direction output; dir=true reverses the axis. Holds
// the new level for at least config.DirSetupUS before returning, since the
// scheduler's own dir-setup gate (motion/scheduler.go) only bounds the time
// until the *next* Step() call, not this call's own duration.
func (b *GPIOStepperBackend) SetDirection(dir bool) {
	mask := uint32(1) << uint32(b.dirPin)
	if dir {
		rp.SIO.GPIO_OUT_SET.Set(mask)
	} else {
		rp.SIO.GPIO_OUT_CLR.Set(mask)
	}
	busyWait(dirSetupCycles)
}

// Stop forces the step output low.
func (b *GPIOStepperBackend) Stop() {
	rp.SIO.GPIO_OUT_CLR.Set(b.stepClearMask)
}

// GetName identifies this backend in diagnostics.
func (b *GPIOStepperBackend) GetName() string { return "GPIO" }
