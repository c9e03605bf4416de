// Package link implements the framed, single-outstanding stop-and-wait
// reliable protocol over the asynchronous serial byte stream (spec.md
// §4.5). It owns the RX byte accumulator, the single pending outbound
// message, the retransmit timer, the duplicate-ID filter, and the bounded
// response queue, and invokes a registered command handler on valid
// inbound frames (spec.md §4.6 hands off to the dispatch package).
//
// Structurally this follows the teacher's protocol/transport.go: one
// Engine struct owning sync state, a byte-at-a-time Receive path, and a
// short interrupt-disable window guarding state shared with the UART RX
// interrupt (spec.md §3 "Ownership"). The algorithm itself — COBS framing,
// CRC-8, stop-and-wait ACK/retry instead of the teacher's Klipper
// sync-byte+sequence scheme — is the spec's, per "Keep HOW, replace WHAT".
package link

import (
	"errors"

	"github.com/skywatch/mountfw/cobs"
	"github.com/skywatch/mountfw/config"
	"github.com/skywatch/mountfw/crc8"
	"github.com/skywatch/mountfw/diag"
	"github.com/skywatch/mountfw/timebase"
	"github.com/skywatch/mountfw/wire"
)

// ErrBusy reports that a message is already pending. No function in this
// package currently returns it: outbound messages go through
// EnqueueResponse, which queues instead of failing.
var ErrBusy = errors.New("link: message already pending")

// Handler is invoked for every valid, non-ACK, non-duplicate inbound frame.
// Implementations (the dispatch package) decode their own payload and may
// call back into EnqueueResponse for replies.
type Handler func(cmdCode uint8, payload []byte)

// Transmit hands a fully framed (COBS-encoded, trailing-zero-terminated)
// byte sequence to the platform's DMA-driven UART TX. The engine marks the
// message busy until NotifyTXComplete is called from the DMA completion
// interrupt.
type Transmit func(frame []byte)

type pendingMessage struct {
	inUse   bool
	msgID   uint8
	cmdCode uint8
	payload [config.MaxPendingPayload]byte
	length  int
	sentAt  uint32
	retries int
}

type responseSlot struct {
	ready   bool
	cmdCode uint8
	payload [config.MaxResponsePayload]byte
	length  int
}

// Engine is the link subsystem's single instance: one per UART.
type Engine struct {
	rxAccum    []byte
	lastRxID   uint8
	pending    pendingMessage
	lastTxID   uint8
	missedAcks int

	responses   [config.ResponseQueueSz]responseSlot
	respHead    int // oldest
	respCount   int

	txBusy  bool
	txQueue [][]byte

	transmit Transmit
	handler  Handler
}

// NewEngine constructs a link engine that hands encoded frames to transmit.
func NewEngine(transmit Transmit) *Engine {
	return &Engine{
		rxAccum:  make([]byte, 0, config.RXAccumMax),
		transmit: transmit,
	}
}

// SetHandler registers the command dispatch callback.
func (e *Engine) SetHandler(h Handler) { e.handler = h }

// --- RX path (interrupt-driven) ---

// ReceiveByte feeds one received byte to the frame accumulator. Called from
// the UART RX interrupt context (spec.md §4.5 "RX path").
func (e *Engine) ReceiveByte(b byte) {
	state := disableIRQ()
	defer restoreIRQ(state)

	if b == 0x00 {
		frame := make([]byte, len(e.rxAccum))
		copy(frame, e.rxAccum)
		e.rxAccum = e.rxAccum[:0]
		e.handleFrame(frame)
		return
	}

	if len(e.rxAccum) >= config.RXAccumMax {
		diag.Record(diag.EvtAccumOflow, 0, timebase.NowUS(), 0, 0)
		e.rxAccum = e.rxAccum[:0]
		return
	}
	e.rxAccum = append(e.rxAccum, b)
}

// handleFrame decodes one COBS-stuffed frame body (the bytes collected
// before the terminating zero) and validates/dispatches it.
func (e *Engine) handleFrame(cobsFrame []byte) {
	if len(cobsFrame) == 0 {
		return
	}

	decoded := make([]byte, len(cobsFrame))
	n := cobs.Decode(decoded, cobsFrame)
	decoded = decoded[:n]

	if n < 4 {
		return // framing error: drop silently
	}

	cmdCode := decoded[0]
	msgID := decoded[1]
	length := int(decoded[2])

	if n != length+4 {
		return // length mismatch, spec.md §4.5 / §8
	}
	if !crc8.Verify(decoded) {
		diag.Record(diag.EvtCRCFail, 0, timebase.NowUS(), uint32(cmdCode), uint32(msgID))
		return // integrity error: drop, no ACK, rely on sender retransmit
	}

	data := decoded[3 : 3+length]

	if msgID == e.lastRxID {
		diag.Record(diag.EvtDuplicate, 0, timebase.NowUS(), uint32(msgID), 0)
		e.sendACK(msgID)
		return
	}
	e.lastRxID = msgID

	if cmdCode == wire.CmdACK {
		e.handleInboundACK(data)
		return
	}

	e.sendACK(msgID)

	if e.handler != nil {
		e.handler(cmdCode, data)
	}
}

// handleInboundACK processes the host's ACK of our own pending message
// (spec.md §4.6 command 0x01).
func (e *Engine) handleInboundACK(payload []byte) {
	if len(payload) < 1 {
		return
	}
	ackedID := payload[0]
	if e.pending.inUse && e.pending.msgID == ackedID {
		e.pending.inUse = false
		e.missedAcks = 0
	}
}

// sendACK transmits a fire-and-forget ACK frame: untracked, never occupies
// the pending slot, and may be sent even while another message is pending
// (spec.md §4.5 "ACK-on-ACK policy"). Its own id field is freshly assigned
// but never tracked or retried (spec.md §8 scenario 1: "id=random≠0").
func (e *Engine) sendACK(ackedID uint8) {
	e.sendRaw(e.buildFrame(wire.CmdACK, e.nextMessageID(), []byte{ackedID}))
}

// --- TX path ---

// EnqueueResponse deposits a response generated by a command handler into
// the bounded FIFO queue (spec.md §4.5 "Response queue"). A full queue
// drops the newest response.
func (e *Engine) EnqueueResponse(cmdCode uint8, payload []byte) bool {
	state := disableIRQ()
	defer restoreIRQ(state)

	if e.respCount >= config.ResponseQueueSz {
		diag.Record(diag.EvtRespDropped, 0, timebase.NowUS(), uint32(cmdCode), 0)
		return false
	}
	idx := (e.respHead + e.respCount) % config.ResponseQueueSz
	slot := &e.responses[idx]
	slot.ready = true
	slot.cmdCode = cmdCode
	n := copy(slot.payload[:], payload)
	slot.length = n
	e.respCount++
	return true
}

// Tick services the retransmit timer and the response-queue promotion;
// call once per main-loop pass (spec.md §4.5 "Retransmission", "Response
// queue").
func (e *Engine) Tick(nowUS uint32) {
	state := disableIRQ()
	defer restoreIRQ(state)

	if e.pending.inUse {
		if timebase.SinceAtLeast(nowUS, e.pending.sentAt, config.AckTimeout) {
			if e.pending.retries < config.MaxRetransmits {
				e.pending.retries++
				e.pending.sentAt = nowUS
				diag.Record(diag.EvtRetransmit, 0, nowUS, uint32(e.pending.msgID), uint32(e.pending.retries))
				e.sendRaw(e.encodePending())
			} else {
				e.pending.inUse = false
				e.missedAcks++
				if e.missedAcks >= config.MaxMissedAcks {
					e.resetLinkState()
				}
			}
		}
		return
	}

	if e.respCount == 0 {
		return
	}
	slot := &e.responses[e.respHead]
	if !slot.ready {
		return
	}
	e.promote(slot.cmdCode, slot.payload[:slot.length], nowUS)
	slot.ready = false
	e.respHead = (e.respHead + 1) % config.ResponseQueueSz
	e.respCount--
}

func (e *Engine) resetLinkState() {
	e.pending = pendingMessage{}
	e.lastRxID = 0
	e.missedAcks = 0
	diag.Record(diag.EvtLinkReset, 0, timebase.NowUS(), 0, 0)
}

// promote assigns a fresh message ID and moves (cmdCode, payload) into the
// pending slot, transmitting it for the first time.
func (e *Engine) promote(cmdCode uint8, payload []byte, nowUS uint32) {
	id := e.nextMessageID()
	e.pending = pendingMessage{
		inUse:   true,
		msgID:   id,
		cmdCode: cmdCode,
		sentAt:  nowUS,
		retries: 0,
	}
	e.pending.length = copy(e.pending.payload[:], payload)
	e.sendRaw(e.encodePending())
}

// nextMessageID returns a deterministic ID distinct from 0 and from the
// previously assigned ID (spec.md §9 "Random message IDs" — a counter is an
// equally valid implementation; duplicate detection is what the protocol
// needs, not unpredictability).
func (e *Engine) nextMessageID() uint8 {
	id := e.lastTxID + 1
	if id == 0 {
		id = 1
	}
	e.lastTxID = id
	return id
}

func (e *Engine) encodePending() []byte {
	return e.buildFrame(e.pending.cmdCode, e.pending.msgID, e.pending.payload[:e.pending.length])
}

// txQueueDepth bounds the number of frames that may queue up behind a busy
// UART TX (ACKs racing a slow pending send); small because the link never
// has more than one pending message plus a handful of fire-and-forget ACKs
// in flight.
const txQueueDepth = 4

// sendRaw hands a fully encoded frame to the platform transmitter, queuing
// it if the UART is already busy with a previous frame (spec.md §4.5 "TX
// path": "A subsequent send waits ... for tx_busy to clear").
func (e *Engine) sendRaw(frame []byte) {
	if !e.txBusy {
		e.txBusy = true
		e.transmit(frame)
		return
	}
	if len(e.txQueue) >= txQueueDepth {
		return // drop: sustained TX starvation, nothing sane to do here
	}
	e.txQueue = append(e.txQueue, frame)
}

// buildFrame assembles cmd||id||len||data||crc8 and COBS-encodes it with
// its trailing zero delimiter (spec.md §4.5 "Frame layout").
func (e *Engine) buildFrame(cmdCode, msgID uint8, payload []byte) []byte {
	raw := make([]byte, 0, 4+len(payload))
	raw = append(raw, cmdCode, msgID, uint8(len(payload)))
	raw = append(raw, payload...)
	raw = append(raw, crc8.Compute(raw))

	encoded := make([]byte, cobs.EncodedLen(len(raw)))
	n := cobs.Encode(encoded, raw)
	return encoded[:n]
}

// NotifyTXComplete is called from the DMA completion interrupt. It clears
// tx_busy and, if any frame queued up behind it (an ACK racing a pending
// send), kicks off the next one (spec.md §5 "DMA completion interrupt
// clears tx_busy").
func (e *Engine) NotifyTXComplete() {
	state := disableIRQ()
	defer restoreIRQ(state)

	e.txBusy = false
	if len(e.txQueue) == 0 {
		return
	}
	next := e.txQueue[0]
	e.txQueue = e.txQueue[1:]
	e.txBusy = true
	e.transmit(next)
}

// MissedAcks reports the current missed-ACK count (tests/diagnostics).
func (e *Engine) MissedAcks() int { return e.missedAcks }

// PendingInUse reports whether a message is currently awaiting ACK (tests).
func (e *Engine) PendingInUse() bool { return e.pending.inUse }

// LastReceivedID exposes the duplicate-detection cursor (tests).
func (e *Engine) LastReceivedID() uint8 { return e.lastRxID }
