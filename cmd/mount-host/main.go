// Command mount-host is the host-side CLI for driving the mount firmware's
// link protocol over a serial connection (spec.md §6 "Link transport").
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/skywatch/mountfw/config"
	"github.com/skywatch/mountfw/host/serial"
	"github.com/skywatch/mountfw/link"
	"github.com/skywatch/mountfw/timebase"
	"github.com/skywatch/mountfw/wire"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", config.BaudRate, "Baud rate")
	verbose = flag.Bool("verbose", false, "Log every frame sent and received")
)

func main() {
	flag.Parse()

	fmt.Println("Mount Host - Link Protocol Console")
	fmt.Println("===================================")

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	fmt.Printf("Connecting to %s at %d baud...\n", *device, *baud)
	port, err := serial.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer port.Close()
	fmt.Println("Connected.")

	start := time.Now()
	timebase.SetHardwareClock(func() uint32 { return uint32(time.Since(start).Microseconds()) })

	var eng *link.Engine
	eng = link.NewEngine(func(frame []byte) {
		if *verbose {
			fmt.Printf("-> %d bytes\n", len(frame))
		}
		port.Write(frame)
		eng.NotifyTXComplete()
	})
	eng.SetHandler(func(cmd uint8, payload []byte) {
		printInbound(cmd, payload)
	})

	go readLoop(port, eng)
	go tickLoop(eng)

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !dispatchLine(port, eng, line) {
			return
		}
	}
}

// readLoop continuously feeds serial bytes to the link engine; this is the
// host-side counterpart to the firmware's UART RX interrupt.
func readLoop(port serial.Port, eng *link.Engine) {
	buf := make([]byte, 256)
	for {
		n, err := port.Read(buf)
		if err != nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		for i := 0; i < n; i++ {
			eng.ReceiveByte(buf[i])
		}
	}
}

// tickLoop services the link engine's retransmit timer and response-queue
// promotion, mirroring the firmware's main-loop Tick cadence (spec.md §4.5).
func tickLoop(eng *link.Engine) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		eng.Tick(timebase.NowUS())
	}
}

func dispatchLine(port serial.Port, eng *link.Engine, line string) bool {
	parts := strings.Fields(line)
	switch parts[0] {
	case "quit", "exit", "q":
		fmt.Println("Goodbye!")
		return false
	case "help", "?":
		printHelp()
	case "move":
		cmdMove(eng, parts)
	case "track":
		cmdTrack(eng, parts)
	case "pause":
		sendEmpty(eng, wire.CmdPause)
	case "resume":
		sendEmpty(eng, wire.CmdResume)
	case "stop":
		sendEmpty(eng, wire.CmdStop)
	case "getpos":
		sendEmpty(eng, wire.CmdGetPos)
	case "stats":
		printStats(port)
	default:
		fmt.Println("unknown command, try 'help'")
	}
	return true
}

// statsPort is implemented by serial.Port backends that track cumulative
// byte counts (currently only serial.NativePort); WebSerial/mock ports just
// don't support the 'stats' command.
type statsPort interface {
	Stats() (written, read uint64)
}

func printStats(port serial.Port) {
	sp, ok := port.(statsPort)
	if !ok {
		fmt.Println("stats not available for this port")
		return
	}
	written, read := sp.Stats()
	fmt.Printf("bytes written=%d read=%d\n", written, read)
}

func cmdMove(eng *link.Engine, parts []string) {
	if len(parts) != 3 {
		fmt.Println("usage: move <axis:x|y|z> <arcsec>")
		return
	}
	axis, ok := parseAxis(parts[1])
	if !ok {
		fmt.Println("axis must be x, y, or z")
		return
	}
	target, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		fmt.Println("invalid target arc-seconds:", err)
		return
	}
	payload := make([]byte, 5)
	payload[0] = uint8(axis)
	wire.PutInt32LE(payload[1:5], int32(target))
	eng.EnqueueResponse(wire.CmdMoveStatic, payload)
}

func cmdTrack(eng *link.Engine, parts []string) {
	if len(parts) != 4 {
		fmt.Println("usage: track <rate_x> <rate_y> <rate_z>  (arcsec/sec)")
		return
	}
	payload := make([]byte, 12)
	for i, s := range parts[1:4] {
		r, err := strconv.ParseFloat(s, 32)
		if err != nil {
			fmt.Println("invalid rate:", err)
			return
		}
		wire.PutFloat32LE(payload[i*4:i*4+4], float32(r))
	}
	eng.EnqueueResponse(wire.CmdMoveTracking, payload)
}

func sendEmpty(eng *link.Engine, cmd uint8) {
	eng.EnqueueResponse(cmd, nil)
}

func parseAxis(s string) (config.Axis, bool) {
	switch strings.ToLower(s) {
	case "x":
		return config.AxisX, true
	case "y":
		return config.AxisY, true
	case "z":
		return config.AxisZ, true
	default:
		return 0, false
	}
}

func printInbound(cmd uint8, payload []byte) {
	switch cmd {
	case wire.CmdPosition:
		if len(payload) < wire.PositionPayloadLen {
			return
		}
		fmt.Printf("position: x=%d y=%d z=%d arcsec\n",
			wire.Int32LE(payload[0:4]), wire.Int32LE(payload[4:8]), wire.Int32LE(payload[8:12]))
	case wire.CmdStatus:
		if len(payload) < wire.StatusPayloadLen {
			return
		}
		fmt.Printf("status: temp=%.1fC x=%d y=%d z=%d enabled=%v paused=%v fan=%d%%\n",
			wire.Float32LE(payload[0:4]),
			wire.Int32LE(payload[4:8]), wire.Int32LE(payload[8:12]), wire.Int32LE(payload[12:16]),
			payload[16] != 0, payload[17] != 0, payload[18])
	default:
		fmt.Printf("frame: cmd=%#x payload=%v\n", cmd, payload)
	}
}

func printHelp() {
	fmt.Println(`Commands:
  move <axis> <arcsec>        queue an absolute move (axis: x, y, z)
  track <rx> <ry> <rz>        start tracking at the given arcsec/sec rates
  pause                       pause motion
  resume                      resume motion (implicitly enables)
  stop                        disable drivers
  getpos                      request current position
  stats                       show cumulative bytes written/read over the link
  help                        show this text
  quit                        exit`)
}
