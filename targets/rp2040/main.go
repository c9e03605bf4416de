//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"tinygo.org/x/drivers/tmc2209"

	"github.com/skywatch/mountfw/config"
	"github.com/skywatch/mountfw/diag"
	"github.com/skywatch/mountfw/dispatch"
	"github.com/skywatch/mountfw/hal"
	"github.com/skywatch/mountfw/link"
	"github.com/skywatch/mountfw/motion"
	"github.com/skywatch/mountfw/status"
	"github.com/skywatch/mountfw/targets/pio"
	"github.com/skywatch/mountfw/timebase"
	"github.com/skywatch/mountfw/wire"
)

// Pin assignments. Concrete GPIO numbers are a board-bringup detail the
// spec leaves unconstrained; these are the values this firmware ships with.
const (
	pinStepX, pinDirX, pinDirXMirror hal.Pin = 2, 3, 4
	pinStepY, pinDirY                hal.Pin = 5, 6
	pinStepZ, pinDirZ                hal.Pin = 7, 8
	pinEnable                        hal.Pin = 9 // active-low driver enable
)

var (
	linkEngine *link.Engine
	scheduler  *motion.Scheduler

	lastStatusUS uint32
	linkErrors   uint32
)

func main() {
	_ = machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})

	InitClock()

	gpioDriver := newRP2040GPIODriver()
	hal.SetGPIODriver(gpioDriver)
	_ = gpioDriver.ConfigureOutput(pinEnable)
	_ = gpioDriver.SetPin(pinEnable, true) // active-low: start disabled

	xBackend := newMirroredDirBackend(pio.NewAxisBackend(), pinDirXMirror)
	if err := xBackend.Init(pinStepX, pinDirX, false); err != nil {
		diag.Println("main: X backend init failed")
	}
	yBackend := pio.NewAxisBackend()
	if err := yBackend.Init(pinStepY, pinDirY, false); err != nil {
		diag.Println("main: Y backend init failed")
	}
	zBackend := pio.NewAxisBackend()
	if err := zBackend.Init(pinStepZ, pinDirZ, false); err != nil {
		diag.Println("main: Z backend init failed")
	}

	scheduler = motion.NewScheduler(xBackend, yBackend, zBackend)

	configureDrivers()

	uart := machine.UART0
	uart.Configure(machine.UARTConfig{BaudRate: config.BaudRate})

	linkEngine = link.NewEngine(func(frame []byte) {
		uart.Write(frame)
		linkEngine.NotifyTXComplete()
	})
	dispatch.New(scheduler, linkEngine)

	machine.Core1.Start(scheduler.Run)

	go uartReaderLoop(uart)

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					linkErrors++
				}
			}()

			now := timebase.NowUS()
			linkEngine.Tick(now)
			driveEnablePin(gpioDriver)
			emitStatusIfDue(now)
		}()
		time.Sleep(1 * time.Millisecond)
	}
}

// uartReaderLoop feeds received bytes to the link engine's RX accumulator,
// mirroring the teacher's goroutine-based reader loop (targets/rp2040's
// original USB reader ran the same way; this is the UART analogue).
func uartReaderLoop(uart *machine.UART) {
	defer func() {
		if r := recover(); r != nil {
			linkErrors++
			time.Sleep(100 * time.Millisecond)
			go uartReaderLoop(uart)
		}
	}()

	for {
		for uart.Buffered() > 0 {
			b, err := uart.ReadByte()
			if err != nil {
				break
			}
			linkEngine.ReceiveByte(b)
		}
		time.Sleep(100 * time.Microsecond)
	}
}

func driveEnablePin(g hal.GPIODriver) {
	_ = g.SetPin(pinEnable, !scheduler.Enabled()) // active-low
}

// driverMicrostepsReg and driverMicrostepsVal configure the TMC2209's
// microstep resolution register to match config.Microstepping so the
// driver's own indexing agrees with the firmware's step accounting.
const (
	driverMicrostepsReg = 0x6C // CHOPCONF
	driverMicrostepsVal = 0x040100C3 // MRES (bits 24..27) = 4: 16 microsteps
)

// configureDrivers pushes the shared microstepping configuration to each
// axis's TMC2209 over a dedicated UART, separate from the host link UART
// (spec.md §1: UART-based stepper driver configuration protocol is out of
// scope for the host-facing interface but not for bring-up itself).
func configureDrivers() {
	driverUART := machine.UART1
	driverUART.Configure(machine.UARTConfig{BaudRate: 115200})

	for addr := uint8(0); addr < uint8(config.NumAxes); addr++ {
		comm := tmc2209.NewUARTComm(*driverUART, addr)
		driver := tmc2209.NewTMC2209(comm, addr)
		if err := driver.Setup(); err != nil {
			diag.Println("main: TMC2209 setup failed")
			continue
		}
		if err := driver.WriteRegister(driverMicrostepsReg, driverMicrostepsVal); err != nil {
			diag.Println("main: TMC2209 microstep config failed")
		}
	}
}

func emitStatusIfDue(now uint32) {
	if timebase.Elapsed(now, lastStatusUS) < uint32(config.StatusPeriod.Microseconds()) {
		return
	}
	lastStatusUS = now
	linkEngine.EnqueueResponse(wire.CmdStatus, status.Build(scheduler))
}
