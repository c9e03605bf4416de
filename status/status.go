// Package status assembles the periodic STATUS telemetry frame aggregating
// temperature, per-axis positions, enable/pause state, and fan duty
// (spec.md §6 "STATUS telemetry").
package status

import (
	"github.com/skywatch/mountfw/config"
	"github.com/skywatch/mountfw/hal"
	"github.com/skywatch/mountfw/motion"
	"github.com/skywatch/mountfw/wire"
)

// Build serializes one STATUS payload (spec.md §6, 19 bytes) for sched,
// reading temperature and fan duty through the hal singletons.
func Build(sched *motion.Scheduler) []byte {
	payload := make([]byte, wire.StatusPayloadLen)

	wire.PutFloat32LE(payload[0:4], hal.ReadTemperatureC())
	wire.PutInt32LE(payload[4:8], sched.PositionArcsec(config.AxisX))
	wire.PutInt32LE(payload[8:12], sched.PositionArcsec(config.AxisY))
	wire.PutInt32LE(payload[12:16], sched.PositionArcsec(config.AxisZ))

	if sched.Enabled() {
		payload[16] = 1
	}
	if sched.Paused() {
		payload[17] = 1
	}
	payload[18] = hal.Fan().DutyPercent()
	return payload
}
