package link

import (
	"testing"

	"github.com/skywatch/mountfw/cobs"
	"github.com/skywatch/mountfw/config"
	"github.com/skywatch/mountfw/crc8"
	"github.com/skywatch/mountfw/timebase"
	"github.com/skywatch/mountfw/wire"
)

// feedFrame builds a valid frame for (cmd, id, data) and feeds it byte by
// byte to the engine, as the real UART RX interrupt would.
func feedFrame(e *Engine, cmd, id uint8, data []byte) {
	raw := append([]byte{cmd, id, uint8(len(data))}, data...)
	raw = append(raw, crc8.Compute(raw))
	encoded := make([]byte, cobs.EncodedLen(len(raw)))
	n := cobs.Encode(encoded, raw)
	for _, b := range encoded[:n] {
		e.ReceiveByte(b)
	}
}

// loopbackEngine wires transmit to complete synchronously, as a host-side
// DMA-less test double would.
func loopbackEngine() (*Engine, *[][]byte) {
	var sent [][]byte
	var e *Engine
	e = NewEngine(func(frame []byte) {
		sent = append(sent, frame)
		e.NotifyTXComplete()
	})
	return e, &sent
}

func TestDuplicateSuppressedAndReACKed(t *testing.T) {
	e, sent := loopbackEngine()
	var handled int
	e.SetHandler(func(cmd uint8, payload []byte) { handled++ })

	feedFrame(e, wire.CmdStop, 0x11, nil)
	feedFrame(e, wire.CmdStop, 0x11, nil)

	if handled != 1 {
		t.Fatalf("expected command to execute exactly once, got %d", handled)
	}
	if len(*sent) != 2 {
		t.Fatalf("expected two ACKs (one per frame, including the duplicate), got %d", len(*sent))
	}
	if e.LastReceivedID() != 0x11 {
		t.Fatalf("last received id = %#x, want 0x11", e.LastReceivedID())
	}
}

func TestFrameDispatchesOncePerNewID(t *testing.T) {
	e, _ := loopbackEngine()
	var handled []uint8
	e.SetHandler(func(cmd uint8, payload []byte) { handled = append(handled, cmd) })

	feedFrame(e, wire.CmdPause, 0x01, nil)
	feedFrame(e, wire.CmdResume, 0x02, nil)

	if len(handled) != 2 || handled[0] != wire.CmdPause || handled[1] != wire.CmdResume {
		t.Fatalf("unexpected handled sequence: %v", handled)
	}
}

func TestCRCMismatchDropsSilently(t *testing.T) {
	e, sent := loopbackEngine()
	var handled int
	e.SetHandler(func(cmd uint8, payload []byte) { handled++ })

	raw := []byte{wire.CmdStop, 0x05, 0}
	raw = append(raw, crc8.Compute(raw)^0xFF) // corrupt the CRC byte
	encoded := make([]byte, cobs.EncodedLen(len(raw)))
	n := cobs.Encode(encoded, raw)
	for _, b := range encoded[:n] {
		e.ReceiveByte(b)
	}

	if handled != 0 {
		t.Fatalf("corrupt frame should not dispatch, got %d calls", handled)
	}
	if len(*sent) != 0 {
		t.Fatalf("corrupt frame should not be ACKed, got %d sends", len(*sent))
	}
}

func TestLengthMismatchRejected(t *testing.T) {
	e, _ := loopbackEngine()
	var handled int
	e.SetHandler(func(cmd uint8, payload []byte) { handled++ })

	raw := []byte{wire.CmdStop, 0x05, 9} // claims 9 bytes of data, has none
	raw = append(raw, crc8.Compute(raw))
	encoded := make([]byte, cobs.EncodedLen(len(raw)))
	n := cobs.Encode(encoded, raw)
	for _, b := range encoded[:n] {
		e.ReceiveByte(b)
	}

	if handled != 0 {
		t.Fatalf("length-mismatched frame should not dispatch, got %d calls", handled)
	}
}

func TestFramingRobustnessStrayZeroDropsOneFrame(t *testing.T) {
	e, _ := loopbackEngine()
	var handled []uint8
	e.SetHandler(func(cmd uint8, payload []byte) { handled = append(handled, cmd) })

	raw := []byte{wire.CmdPause, 0x07, 0}
	raw = append(raw, crc8.Compute(raw))
	encoded := make([]byte, cobs.EncodedLen(len(raw)))
	n := cobs.Encode(encoded, raw)

	// Inject a stray zero mid-frame: everything fed before it is treated as
	// one (malformed, dropped) frame, then feed the well-formed frame.
	e.ReceiveByte(encoded[0])
	e.ReceiveByte(0x00) // stray delimiter: ends a bogus short frame

	for _, b := range encoded[:n] {
		e.ReceiveByte(b)
	}

	if len(handled) != 1 || handled[0] != wire.CmdPause {
		t.Fatalf("expected exactly one dispatched frame after the stray zero, got %v", handled)
	}
}

func TestACKClearsPendingAndResetsMissedAcks(t *testing.T) {
	e, sent := loopbackEngine()
	timebase.SetUS(0)

	e.EnqueueResponse(wire.CmdPosition, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	e.Tick(timebase.NowUS())

	if !e.PendingInUse() {
		t.Fatal("expected a pending message after promotion")
	}
	if len(*sent) != 1 {
		t.Fatalf("expected one transmitted frame, got %d", len(*sent))
	}

	id := pendingMsgID(e)
	feedFrame(e, wire.CmdACK, 0x99, []byte{id})

	if e.PendingInUse() {
		t.Fatal("expected pending to clear once the matching ACK arrived")
	}
	if e.MissedAcks() != 0 {
		t.Fatalf("missed acks = %d, want 0", e.MissedAcks())
	}
}

func pendingMsgID(e *Engine) uint8 { return e.pending.msgID }

func TestRetransmitOnTimeoutThenSucceedsOnThirdAttempt(t *testing.T) {
	e, sent := loopbackEngine()
	timebase.SetUS(0)

	e.EnqueueResponse(wire.CmdStatus, make([]byte, wire.StatusPayloadLen))
	e.Tick(timebase.NowUS())
	if len(*sent) != 1 {
		t.Fatalf("expected initial send, got %d", len(*sent))
	}
	id := pendingMsgID(e)

	step := uint32(config.AckTimeout.Microseconds()) + 1
	for i := 0; i < 3; i++ {
		timebase.AdvanceUS(step)
		e.Tick(timebase.NowUS())
	}
	if len(*sent) != 4 {
		t.Fatalf("expected 1 initial + 3 retransmits = 4 sends, got %d", len(*sent))
	}
	if !e.PendingInUse() {
		t.Fatal("message should still be pending before the ack arrives")
	}

	feedFrame(e, wire.CmdACK, 0x50, []byte{id})
	if e.PendingInUse() {
		t.Fatal("expected pending to clear on ack")
	}
	if e.MissedAcks() != 0 {
		t.Fatalf("missed acks = %d, want 0 (ack arrived before exhaustion)", e.MissedAcks())
	}
}

func TestMissedAcksExhaustionResetsLinkState(t *testing.T) {
	e, _ := loopbackEngine()
	timebase.SetUS(0)

	step := uint32(config.AckTimeout.Microseconds()) + 1

	for round := 0; round < config.MaxMissedAcks; round++ {
		e.EnqueueResponse(wire.CmdStatus, make([]byte, wire.StatusPayloadLen))
		e.Tick(timebase.NowUS())
		for i := 0; i < config.MaxRetransmits; i++ {
			timebase.AdvanceUS(step)
			e.Tick(timebase.NowUS())
		}
		timebase.AdvanceUS(step)
		e.Tick(timebase.NowUS()) // exhausts retries, drops pending, counts a missed ack
	}

	if e.PendingInUse() {
		t.Fatal("expected link reset to clear pending")
	}
	if e.MissedAcks() != 0 {
		t.Fatalf("missed acks = %d, want 0 after reset", e.MissedAcks())
	}
}

func TestResponseQueueFIFOOrderAndOverflowDropsNewest(t *testing.T) {
	e, sent := loopbackEngine()
	timebase.SetUS(0)

	for i := uint8(0); i < config.ResponseQueueSz; i++ {
		if !e.EnqueueResponse(wire.CmdPosition, []byte{i}) {
			t.Fatalf("enqueue %d should have succeeded", i)
		}
	}
	if e.EnqueueResponse(wire.CmdPosition, []byte{99}) {
		t.Fatal("expected overflow enqueue to be dropped")
	}

	for i := uint8(0); i < config.ResponseQueueSz; i++ {
		e.Tick(timebase.NowUS())
		if len(*sent) != int(i)+1 {
			t.Fatalf("round %d: expected %d sends, got %d", i, i+1, len(*sent))
		}

		decoded := make([]byte, len((*sent)[i])+2)
		n := cobs.Decode(decoded, (*sent)[i])
		decoded = decoded[:n]
		if decoded[3] != i {
			t.Fatalf("round %d: response FIFO order violated, payload byte = %d", i, decoded[3])
		}

		id := pendingMsgID(e)
		feedFrame(e, wire.CmdACK, 0x80+i, []byte{id})
	}
}

func TestOnlyOnePendingMessageAtATime(t *testing.T) {
	e, sent := loopbackEngine()
	timebase.SetUS(0)

	e.EnqueueResponse(wire.CmdPosition, []byte{1, 2, 3})
	e.EnqueueResponse(wire.CmdPosition, []byte{4, 5, 6})
	e.Tick(timebase.NowUS())

	if !e.PendingInUse() {
		t.Fatal("expected a pending message")
	}
	if len(*sent) != 1 {
		t.Fatalf("second response must not be sent while one is pending, got %d sends", len(*sent))
	}
}

func TestACKFramesAreNotThemselvesACKed(t *testing.T) {
	e, sent := loopbackEngine()
	e.SetHandler(func(cmd uint8, payload []byte) {
		t.Fatalf("an inbound ACK must never reach the command handler")
	})

	feedFrame(e, wire.CmdACK, 0x30, []byte{0x00})

	if len(*sent) != 0 {
		t.Fatalf("an ACK frame must not itself be acknowledged, got %d sends", len(*sent))
	}
}

func TestPingStyleACKScenario(t *testing.T) {
	e, sent := loopbackEngine()
	var stopped bool
	e.SetHandler(func(cmd uint8, payload []byte) {
		if cmd == wire.CmdStop {
			stopped = true
		}
	})

	feedFrame(e, wire.CmdStop, 0x42, nil)

	if !stopped {
		t.Fatal("expected STOP to reach the handler")
	}
	if len(*sent) != 1 {
		t.Fatalf("expected exactly one ACK frame, got %d", len(*sent))
	}

	decoded := make([]byte, len((*sent)[0])+2)
	n := cobs.Decode(decoded, (*sent)[0])
	decoded = decoded[:n]
	if decoded[0] != wire.CmdACK {
		t.Fatalf("ack frame cmd = %#x, want CmdACK", decoded[0])
	}
	if decoded[1] == 0 {
		t.Fatal("ack frame id must be nonzero (spec.md §8 scenario 1)")
	}
	if int(decoded[2]) != 1 || decoded[3] != 0x42 {
		t.Fatalf("ack payload should carry the acked id 0x42, got %v", decoded[3:3+decoded[2]])
	}
}

func TestAccumulatorOverflowResetsAndDrops(t *testing.T) {
	e, sent := loopbackEngine()
	var handled int
	e.SetHandler(func(cmd uint8, payload []byte) { handled++ })

	for i := 0; i < config.RXAccumMax+10; i++ {
		e.ReceiveByte(0x41) // never zero, never terminates
	}
	e.ReceiveByte(0x00) // flush whatever partial garbage remains after overflow
	// Now send one well-formed frame; the overflow must not have corrupted
	// subsequent framing.
	feedFrame(e, wire.CmdPause, 0x09, nil)

	if handled != 1 {
		t.Fatalf("expected exactly one dispatched frame after overflow recovery, got %d", handled)
	}
	if len(*sent) != 1 {
		t.Fatalf("expected exactly one ACK after overflow recovery, got %d", len(*sent))
	}
}
