package motion

import "sync/atomic"

// CommandSlot is a single-slot mailbox for an absolute-move command,
// supporting non-blocking publish and non-blocking take — the source's
// volatile "valid" boolean reimagined as a mailbox to eliminate its data
// race (spec.md §9 "Command ownership").
type CommandSlot struct {
	valid  int32 // atomic
	target int32 // arc-seconds; only meaningful while valid
}

// Publish stores a new target, making the slot valid. Setting a slot while
// tracking is active is the caller's (Scheduler's) responsibility to pair
// with cancelling tracking atomically (spec.md §3).
func (s *CommandSlot) Publish(targetArcsec int32) {
	atomic.StoreInt32(&s.target, targetArcsec)
	atomic.StoreInt32(&s.valid, 1)
}

// Take returns (target, true) if the slot is valid, without clearing it;
// the motion loop clears the slot itself via Clear once the move
// completes, since "valid" must stay set while a move is in progress.
func (s *CommandSlot) Take() (int32, bool) {
	if atomic.LoadInt32(&s.valid) == 0 {
		return 0, false
	}
	return atomic.LoadInt32(&s.target), true
}

// Clear invalidates the slot.
func (s *CommandSlot) Clear() {
	atomic.StoreInt32(&s.valid, 0)
}

// Valid reports whether the slot currently holds a pending target.
func (s *CommandSlot) Valid() bool {
	return atomic.LoadInt32(&s.valid) != 0
}
