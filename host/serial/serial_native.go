//go:build !wasm

package serial

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// NativePort drives the mount link over a real serial device via
// tarm/serial, tracking cumulative byte counters for the link engine's
// retransmit diagnostics (spec.md §4.5's "Retransmission" and "Response
// queue" counters are kept on the device side; this is the host-side
// equivalent so a dropped connection shows up as a byte-count stall rather
// than a silent hang in the REPL).
type NativePort struct {
	port *serial.Port
	cfg  *Config

	bytesWritten uint64
	bytesRead    uint64
}

// Open opens a native serial port configured for the mount link (9600 baud
// by default, see DefaultConfig).
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mountfw/serial: config cannot be nil")
	}

	serialConfig := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	}

	port, err := serial.OpenPort(serialConfig)
	if err != nil {
		return nil, fmt.Errorf("mountfw/serial: open %s: %w", cfg.Device, err)
	}

	return &NativePort{
		port: port,
		cfg:  cfg,
	}, nil
}

// Read reads whatever mount-link bytes are currently available. A timeout
// with no bytes read is the link engine's normal idle case (spec.md §4.5's
// RX path is byte-at-a-time and tolerates arbitrary inter-byte gaps), so it
// is passed through as (0, nil) rather than surfaced as an error; any other
// failure is wrapped with the device path for the CLI to report.
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	p.bytesRead += uint64(n)
	if n == 0 && err == io.EOF {
		return 0, nil // read timeout with no bytes
	}
	if err != nil {
		return n, fmt.Errorf("mountfw/serial: read from %s: %w", p.cfg.Device, err)
	}
	return n, nil
}

// Write sends a fully COBS-framed mount-link frame. tarm/serial does not
// guarantee a short write returns an error, so this loops until every byte
// of the frame has gone out or a write fails partway through — a half-sent
// frame would otherwise desync the device's COBS accumulator until the next
// zero delimiter happens to resync it.
func (p *NativePort) Write(b []byte) (int, error) {
	written := 0
	for written < len(b) {
		n, err := p.port.Write(b[written:])
		written += n
		p.bytesWritten += uint64(n)
		if err != nil {
			return written, fmt.Errorf("mountfw/serial: write to %s: %w", p.cfg.Device, err)
		}
		if n == 0 {
			return written, fmt.Errorf("mountfw/serial: write to %s: no progress", p.cfg.Device)
		}
	}
	return written, nil
}

// Close closes the serial port.
func (p *NativePort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Flush is a no-op: tarm/serial does not expose a buffer flush, and Write
// already blocks until every frame byte has been accepted by the driver.
func (p *NativePort) Flush() error {
	return nil
}

// Stats reports cumulative bytes moved over the link, surfaced by the CLI's
// 'stats' command.
func (p *NativePort) Stats() (written, read uint64) {
	return p.bytesWritten, p.bytesRead
}
