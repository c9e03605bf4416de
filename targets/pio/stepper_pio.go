//go:build rp2040

package pio

// PIO-accelerated stepper backend using tinygo-org/pio's assembler and
// state-machine wrappers (adapted from the teacher's PIO stepper backend;
// same program, retargeted to hal.StepperBackend's single-step call shape
// instead of the teacher's queued-move interface — motion profiling and
// batched step queues are out of scope here, spec.md §1 Non-goals).

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"github.com/skywatch/mountfw/config"
	"github.com/skywatch/mountfw/hal"
)

// smClkDivInt is the state machine clock divider applied in Init via
// SetClkDivIntFrac, pulled out to a named constant so the pulse-width check
// below stays in sync with it.
const smClkDivInt = 1000

// pulseHighCycles is the number of state-machine cycles buildStepperProgram
// holds the step pin high: 1 for the "set pins,1" instruction itself plus
// its Delay(7).
const pulseHighCycles = 8

func init() {
	smClockHz := cpuClockHz / smClkDivInt
	pulseHighNs := pulseHighCycles * 1_000_000_000 / smClockHz
	if pulseHighNs < int(config.StepPulseWidthUS)*1000 {
		panic("targets/pio: PIO pulse program too short for config.StepPulseWidthUS")
	}
}

// buildStepperProgram assembles a tiny PIO program that pulls one 32-bit
// command word (pulse count | delay cycles | direction bit) per step and
// emits the pulse in hardware, eliminating CPU-side jitter.
func buildStepperProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		asm.Pull(false, true).Encode(),
		asm.Out(rp2pio.OutDestX, 16).Encode(),
		asm.Out(rp2pio.OutDestY, 8).Encode(),
		asm.Out(rp2pio.OutDestPins, 1).Encode(),
		asm.Set(rp2pio.SetDestPins, 1).Delay(7).Encode(),
		asm.Set(rp2pio.SetDestPins, 0).Encode(),
		asm.Jmp(6, rp2pio.JmpYNZeroDec).Encode(),
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Encode(),
	}
}

const stepperPIOOrigin = 0

// PIOStepperBackend drives one axis's step/dir pair through a PIO state
// machine. Direction is latched in software and folded into the next
// command word, since the spec's single-step-at-a-time model (no
// acceleration ramps, spec.md §1 Non-goals) never needs the queued
// multi-pulse path the teacher's QueueSteps exposed.
type PIOStepperBackend struct {
	pio       *rp2pio.PIO
	sm        rp2pio.StateMachine
	stepPin   machine.Pin
	dirPin    machine.Pin
	direction bool
	pioNum    uint8
	smNum     uint8
}

// NewPIOStepperBackend binds to PIO block pioNum, state machine smNum.
func NewPIOStepperBackend(pioNum, smNum uint8) *PIOStepperBackend {
	pioHW := rp2pio.PIO0
	if pioNum == 1 {
		pioHW = rp2pio.PIO1
	}
	return &PIOStepperBackend{
		pio:    pioHW,
		sm:     pioHW.StateMachine(smNum),
		pioNum: pioNum,
		smNum:  smNum,
	}
}

// Init configures and enables the state machine (hal.StepperBackend).
// invertStep is not honored here: the PIO program's pulse polarity is
// fixed, matching the teacher's PIO backend (raw-register inversion only
// applies to the GPIO fallback).
func (b *PIOStepperBackend) Init(stepPin, dirPin hal.Pin, invertStep bool) error {
	b.stepPin = machine.Pin(stepPin)
	b.dirPin = machine.Pin(dirPin)

	b.sm.TryClaim()

	program := buildStepperProgram()
	offset, err := b.pio.AddProgram(program, stepperPIOOrigin)
	if err != nil {
		return err
	}

	b.stepPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})
	b.dirPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(b.stepPin, 1)
	cfg.SetOutPins(b.dirPin, 1)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(smClkDivInt, 0)

	b.sm.Init(offset, cfg)
	b.sm.SetPindirsConsecutive(b.stepPin, 1, true)
	b.sm.SetPindirsConsecutive(b.dirPin, 1, true)
	b.sm.SetPinsConsecutive(b.stepPin, 1, false)
	b.sm.SetPinsConsecutive(b.dirPin, 1, false)
	b.sm.SetEnabled(true)
	return nil
}

// Step pushes one pulse command (count=1) in the currently latched direction.
func (b *PIOStepperBackend) Step() {
	cmd := uint32(1) | (1 << 16)
	if b.direction {
		cmd |= 1 << 24 // shifted out to the dir pin after the 16+8 bits above
	}
	for b.sm.IsTxFIFOFull() {
	}
	b.sm.TxPut(cmd)
}

// SetDirection latches the direction bit folded into the next Step command.
func (b *PIOStepperBackend) SetDirection(dir bool) { b.direction = dir }

// Stop disables and restarts the state machine, discarding any queued pulse.
func (b *PIOStepperBackend) Stop() {
	b.sm.SetEnabled(false)
	b.sm.ClearFIFOs()
	b.sm.Restart()
	b.sm.SetEnabled(true)
}

// GetName identifies this backend in diagnostics.
func (b *PIOStepperBackend) GetName() string {
	return "PIO" + utoa8(b.pioNum) + "-SM" + utoa8(b.smNum)
}

func utoa8(n uint8) string {
	if n == 0 {
		return "0"
	}
	buf := make([]byte, 3)
	pos := 2
	for n > 0 {
		buf[pos] = '0' + n%10
		n /= 10
		pos--
	}
	return string(buf[pos+1:])
}
