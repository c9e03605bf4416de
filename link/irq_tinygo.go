//go:build tinygo

package link

import "runtime/interrupt"

// irqState mirrors the teacher's core/interrupt_tinygo.go: a short,
// bounded interrupt-disable window guarding the RX accumulator / response
// queue hand-off between the UART RX interrupt and the main-loop dequeue
// (spec.md §3 "Ownership").
type irqState = interrupt.State

func disableIRQ() irqState   { return interrupt.Disable() }
func restoreIRQ(s irqState)  { interrupt.Restore(s) }
