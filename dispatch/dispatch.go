// Package dispatch translates link-layer command frames into motion
// scheduler calls (spec.md §4.6). It is registered with a link.Engine as
// its Handler and owns no state of its own beyond the two collaborators it
// closes over.
package dispatch

import (
	"github.com/skywatch/mountfw/config"
	"github.com/skywatch/mountfw/diag"
	"github.com/skywatch/mountfw/link"
	"github.com/skywatch/mountfw/motion"
	"github.com/skywatch/mountfw/wire"
)

// Dispatcher wires a link engine's inbound frames to a motion scheduler.
type Dispatcher struct {
	sched *motion.Scheduler
	eng   *link.Engine
}

// New returns a Dispatcher and registers its Handle method as eng's handler
// via eng.SetHandler.
func New(sched *motion.Scheduler, eng *link.Engine) *Dispatcher {
	d := &Dispatcher{sched: sched, eng: eng}
	eng.SetHandler(d.Handle)
	return d
}

// Handle is the link.Handler entry point (spec.md §4.6 table). Payload
// length errors are logged and the command is dropped; the frame's ACK was
// already sent by the link engine regardless (spec.md §4.6 footnote, §7
// "Protocol errors").
func (d *Dispatcher) Handle(cmdCode uint8, payload []byte) {
	switch cmdCode {
	case wire.CmdMoveStatic:
		d.moveStatic(payload)
	case wire.CmdMoveTracking:
		d.moveTracking(payload)
	case wire.CmdPause:
		d.sched.Pause()
	case wire.CmdResume:
		d.sched.Resume()
	case wire.CmdStop:
		d.sched.SetEnable(false)
	case wire.CmdGetPos:
		d.getPos()
	default:
		diag.Println("dispatch: unknown command code")
	}
}

func (d *Dispatcher) moveStatic(payload []byte) {
	if len(payload) < 5 {
		diag.Println("dispatch: MOVE_STATIC payload too short")
		return
	}
	axis := config.Axis(payload[0])
	target := wire.Int32LE(payload[1:5])
	if err := d.sched.QueueStaticMove(axis, target); err != nil {
		diag.Println("dispatch: MOVE_STATIC rejected")
	}
}

func (d *Dispatcher) moveTracking(payload []byte) {
	if len(payload) < 12 {
		diag.Println("dispatch: MOVE_TRACKING payload too short")
		return
	}
	rx := wire.Float32LE(payload[0:4])
	ry := wire.Float32LE(payload[4:8])
	rz := wire.Float32LE(payload[8:12])
	if err := d.sched.StartTracking(rx, ry, rz); err != nil {
		diag.Println("dispatch: MOVE_TRACKING rejected")
	}
}

func (d *Dispatcher) getPos() {
	payload := make([]byte, wire.PositionPayloadLen)
	wire.PutInt32LE(payload[0:4], d.sched.PositionArcsec(config.AxisX))
	wire.PutInt32LE(payload[4:8], d.sched.PositionArcsec(config.AxisY))
	wire.PutInt32LE(payload[8:12], d.sched.PositionArcsec(config.AxisZ))
	d.eng.EnqueueResponse(wire.CmdPosition, payload)
}
