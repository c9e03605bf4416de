//go:build !tinygo

package link

// On plain Go (tests, host tooling) there is no interrupt controller to
// mask; these are no-ops mirroring the teacher's core/interrupt_go.go.
type irqState = uintptr

func disableIRQ() irqState  { return 0 }
func restoreIRQ(s irqState) {}
