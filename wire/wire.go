// Package wire defines the link subsystem's command codes and the
// little-endian scalar encodings used in frame payloads (spec.md §4.6, §6).
package wire

import (
	"encoding/binary"
	"math"
)

// Command codes (spec.md §4.6).
const (
	CmdACK          uint8 = 0x01
	CmdMoveStatic   uint8 = 0x10
	CmdMoveTracking uint8 = 0x11
	CmdPause        uint8 = 0x12
	CmdResume       uint8 = 0x13
	CmdStop         uint8 = 0x14
	CmdGetPos       uint8 = 0x20
	CmdPosition     uint8 = 0x21
	CmdStatus       uint8 = 0x22
)

// Payload sizes (spec.md §4.6, §6).
const (
	StatusPayloadLen   = 19
	PositionPayloadLen = 12
)

// PutInt32LE writes v little-endian into dst[0:4].
func PutInt32LE(dst []byte, v int32) {
	binary.LittleEndian.PutUint32(dst, uint32(v))
}

// Int32LE reads a little-endian int32 from src[0:4].
func Int32LE(src []byte) int32 {
	return int32(binary.LittleEndian.Uint32(src))
}

// PutFloat32LE writes v little-endian (IEEE-754 binary32) into dst[0:4].
func PutFloat32LE(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}

// Float32LE reads a little-endian IEEE-754 binary32 from src[0:4].
func Float32LE(src []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(src))
}
