//go:build rp2040 || rp2350

package main

import (
	"machine"

	"github.com/skywatch/mountfw/hal"
)

// rp2040GPIODriver implements hal.GPIODriver over machine.Pin, used for the
// discrete driver-enable output (spec.md §5 "enable flag").
type rp2040GPIODriver struct{}

func newRP2040GPIODriver() *rp2040GPIODriver { return &rp2040GPIODriver{} }

func (d *rp2040GPIODriver) ConfigureOutput(pin hal.Pin) error {
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return nil
}

func (d *rp2040GPIODriver) SetPin(pin hal.Pin, high bool) error {
	machine.Pin(pin).Set(high)
	return nil
}

func (d *rp2040GPIODriver) GetPin(pin hal.Pin) (bool, error) {
	return machine.Pin(pin).Get(), nil
}
