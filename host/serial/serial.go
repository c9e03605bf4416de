package serial

import (
	"io"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - WebSerial (for TinyGo WASM builds)
// - Mock serial (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (9600 for the mount link, spec.md §6)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns a default configuration for the mount link.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        9600, // mount link baud rate (spec.md §6)
		ReadTimeout: 100,  // 100ms read timeout
	}
}
