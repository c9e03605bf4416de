//go:build rp2040 || rp2350

package main

import (
	"runtime/volatile"
	"unsafe"

	"github.com/skywatch/mountfw/timebase"
)

// RP2040/RP2350 timer peripheral: a free-running 1MHz 64-bit counter.
const (
	timerBase    = 0x40054000
	timerRAWLReg = timerBase + 0x0C // low 32 bits of the microsecond counter
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerRAWLReg)))

// InitClock registers the hardware timer as the firmware's monotonic clock
// (spec.md §3 "Timebase"), replacing timebase's simulated-clock fallback.
func InitClock() {
	timebase.SetHardwareClock(readHardwareUS)
}

func readHardwareUS() uint32 {
	return timerRAWL.Get()
}
