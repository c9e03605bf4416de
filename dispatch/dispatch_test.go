package dispatch

import (
	"testing"

	"github.com/skywatch/mountfw/cobs"
	"github.com/skywatch/mountfw/config"
	"github.com/skywatch/mountfw/crc8"
	"github.com/skywatch/mountfw/hal"
	"github.com/skywatch/mountfw/kinematics"
	"github.com/skywatch/mountfw/link"
	"github.com/skywatch/mountfw/motion"
	"github.com/skywatch/mountfw/timebase"
	"github.com/skywatch/mountfw/wire"
)

// mockBackend is a minimal hal.StepperBackend stub, kept local to this
// package rather than reusing motion's own (unexported) test double.
type mockBackend struct{ steps int }

func (m *mockBackend) Init(stepPin, dirPin hal.Pin, invertStep bool) error { return nil }
func (m *mockBackend) Step()                                              { m.steps++ }
func (m *mockBackend) SetDirection(dir bool)                              {}
func (m *mockBackend) Stop()                                              {}
func (m *mockBackend) GetName() string                                    { return "mock" }

func newHarness() (*Dispatcher, *motion.Scheduler, *link.Engine, *[][]byte) {
	sched := motion.NewScheduler(&mockBackend{}, &mockBackend{}, &mockBackend{})
	sent := &[][]byte{}
	var eng *link.Engine
	eng = link.NewEngine(func(frame []byte) {
		*sent = append(*sent, frame)
		eng.NotifyTXComplete()
	})
	d := New(sched, eng)
	timebase.SetUS(0)
	return d, sched, eng, sent
}

// decodeFrame reverses a link frame the way the host would: strip the
// trailing COBS delimiter, decode, and verify the CRC-8 trailer.
func decodeFrame(t *testing.T, frame []byte) (cmd uint8, payload []byte) {
	t.Helper()
	decoded := make([]byte, len(frame))
	n := cobs.Decode(decoded, frame)
	decoded = decoded[:n]
	if n < 4 {
		t.Fatalf("frame too short after COBS decode: %d bytes", n)
	}
	if !crc8.Verify(decoded) {
		t.Fatalf("frame failed CRC-8 check")
	}
	length := int(decoded[2])
	return decoded[0], decoded[3 : 3+length]
}

func TestMoveStaticShortPayloadDropped(t *testing.T) {
	d, sched, _, _ := newHarness()
	sched.Resume()

	d.Handle(wire.CmdMoveStatic, []byte{0x00, 0x01, 0x02, 0x03}) // needs 5 bytes

	for us := uint32(0); us < 10*config.StepIntervalUS; us += config.StepIntervalUS {
		sched.RunOnce(us)
	}
	if got := sched.PositionArcsec(config.AxisX); got != 0 {
		t.Fatalf("short MOVE_STATIC payload should be dropped, position = %d", got)
	}
}

func TestMoveStaticValidPayloadQueuesMove(t *testing.T) {
	d, sched, _, _ := newHarness()
	sched.Resume()

	const targetArcsec = 3600
	payload := make([]byte, 5)
	payload[0] = byte(config.AxisX)
	wire.PutInt32LE(payload[1:5], targetArcsec)
	d.Handle(wire.CmdMoveStatic, payload)

	gearRatio := config.GearRatio(config.AxisX)
	wantArcsec := kinematics.StepsToArcsec(kinematics.ArcsecToSteps(targetArcsec, gearRatio), gearRatio)

	var us uint32
	for i := 0; i < 200000 && sched.PositionArcsec(config.AxisX) != wantArcsec; i++ {
		us += config.StepIntervalUS + config.DirSetupUS + 10
		sched.RunOnce(us)
	}
	if got := sched.PositionArcsec(config.AxisX); got != wantArcsec {
		t.Fatalf("expected axis to reach %d arcsec, got %d", wantArcsec, got)
	}
}

func TestMoveTrackingShortPayloadDropped(t *testing.T) {
	d, sched, _, _ := newHarness()
	sched.Resume()

	d.Handle(wire.CmdMoveTracking, make([]byte, 11)) // needs 12 bytes

	for us := uint32(0); us < 10_000_000; us += config.StepIntervalUS {
		sched.RunOnce(us)
	}
	for a := config.Axis(0); a < config.NumAxes; a++ {
		if got := sched.PositionArcsec(a); got != 0 {
			t.Fatalf("axis %d moved despite a too-short MOVE_TRACKING payload: %d", a, got)
		}
	}
}

func TestMoveTrackingValidPayloadStartsTracking(t *testing.T) {
	d, sched, _, _ := newHarness()
	sched.Resume()

	payload := make([]byte, 12)
	wire.PutFloat32LE(payload[0:4], 15.0) // arcsec/sec, X only
	wire.PutFloat32LE(payload[4:8], 0)
	wire.PutFloat32LE(payload[8:12], 0)
	d.Handle(wire.CmdMoveTracking, payload)

	var us uint32
	for i := 0; i < 2000; i++ {
		us += 100_000 // 100ms per pass
		sched.RunOnce(us)
	}
	if got := sched.PositionArcsec(config.AxisX); got <= 0 {
		t.Fatalf("expected X axis to accumulate positive position under tracking, got %d", got)
	}
	if got := sched.PositionArcsec(config.AxisY); got != 0 {
		t.Fatalf("expected Y axis untouched by a zero rate, got %d", got)
	}
}

func TestPauseResumeStopCommandsReachScheduler(t *testing.T) {
	d, sched, _, _ := newHarness()

	d.Handle(wire.CmdResume, nil)
	if !sched.Enabled() || sched.Paused() {
		t.Fatal("RESUME should enable and unpause the scheduler")
	}

	d.Handle(wire.CmdPause, nil)
	if !sched.Paused() {
		t.Fatal("PAUSE should engage the pause gate")
	}

	d.Handle(wire.CmdStop, nil)
	if sched.Enabled() {
		t.Fatal("STOP should disable the scheduler")
	}
}

func TestGetPosEnqueuesPositionResponse(t *testing.T) {
	d, _, eng, sent := newHarness()

	d.Handle(wire.CmdGetPos, nil)
	eng.Tick(0)

	if len(*sent) != 1 {
		t.Fatalf("expected exactly one frame sent, got %d", len(*sent))
	}
	cmd, payload := decodeFrame(t, (*sent)[0])
	if cmd != wire.CmdPosition {
		t.Fatalf("expected CmdPosition, got %#x", cmd)
	}
	if len(payload) != wire.PositionPayloadLen {
		t.Fatalf("expected %d byte payload, got %d", wire.PositionPayloadLen, len(payload))
	}
	if got := wire.Int32LE(payload[0:4]); got != 0 {
		t.Fatalf("expected X position 0 at power-on, got %d", got)
	}
}

func TestUnknownCommandCodeIsIgnored(t *testing.T) {
	d, _, _, _ := newHarness()
	d.Handle(0xFF, []byte{1, 2, 3}) // must not panic
}
