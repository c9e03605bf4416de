//go:build rp2040

package pio

import "github.com/skywatch/mountfw/hal"

// RP2040 has 2 PIO blocks with 4 state machines each; three axes comfortably
// fit without exhausting either block.
var (
	pioAllocations = [2][4]bool{}
	nextPIONum     = uint8(0)
	nextSMNum      = uint8(0)
)

// NewAxisBackend returns a PIO-accelerated backend if a state machine is
// still free, falling back to direct-GPIO stepping otherwise (spec.md §9
// "Backend selection" is silent on policy; PIO-first matches the teacher's
// default and gives the lowest step jitter).
func NewAxisBackend() hal.StepperBackend {
	if pioNum, smNum, ok := allocatePIO(); ok {
		return NewPIOStepperBackend(pioNum, smNum)
	}
	return NewGPIOStepperBackend()
}

func allocatePIO() (uint8, uint8, bool) {
	for i := 0; i < 8; i++ {
		pioNum, smNum := nextPIONum, nextSMNum
		nextSMNum++
		if nextSMNum >= 4 {
			nextSMNum = 0
			nextPIONum = (nextPIONum + 1) % 2
		}
		if !pioAllocations[pioNum][smNum] {
			pioAllocations[pioNum][smNum] = true
			return pioNum, smNum, true
		}
	}
	return 0, 0, false
}
