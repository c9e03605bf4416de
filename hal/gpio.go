// Package hal defines the hardware-abstraction interfaces the core firmware
// programs against. Platform code (targets/rp2040, targets/pio) supplies the
// concrete implementations; GPIO bring-up itself, PWM fan control, LED
// indication, one-wire temperature sensing, and TMC2209 UART configuration
// are out of scope per spec.md §1 and are represented here only as the
// minimal interfaces the firmware calls through.
package hal

// Pin identifies a hardware GPIO pin number.
type Pin uint32

// GPIODriver is the abstract digital-output interface core code uses to
// drive direction pins and any auxiliary discrete outputs.
type GPIODriver interface {
	ConfigureOutput(pin Pin) error
	SetPin(pin Pin, high bool) error
	GetPin(pin Pin) (bool, error)
}

var driver GPIODriver

// SetGPIODriver registers the platform's GPIO driver. Called once at boot.
func SetGPIODriver(d GPIODriver) { driver = d }

// MustGPIO returns the configured driver or panics if none was registered.
func MustGPIO() GPIODriver {
	if driver == nil {
		panic("hal: GPIO driver not configured")
	}
	return driver
}

// TempSensor is the minimal one-wire temperature sensor collaborator
// interface (spec.md §1: "one-wire temperature sensor protocol" is out of
// scope beyond this stated interface).
type TempSensor interface {
	ReadCelsius() (float32, error)
}

// FanController is the minimal PWM fan collaborator interface (spec.md §1,
// §9: "Fan control is currently fixed to 100%; ... Implementations should
// leave a hook but need not expose it").
type FanController interface {
	SetDutyPercent(pct uint8)
	DutyPercent() uint8
}

// fixedFan is the default FanController. It drives no hardware: it starts at
// 100% duty, matching the source firmware's current behavior, and reports
// whatever SetDutyPercent last stored.
type fixedFan struct{ duty uint8 }

func (f *fixedFan) SetDutyPercent(pct uint8) { f.duty = pct }
func (f *fixedFan) DutyPercent() uint8        { return f.duty }

var fan FanController = &fixedFan{duty: 100}

// SetFanController overrides the default fixed-100% fan hook.
func SetFanController(f FanController) {
	if f != nil {
		fan = f
	}
}

// Fan returns the currently configured fan controller.
func Fan() FanController { return fan }

var tempSensor TempSensor

// SetTempSensor registers the platform's one-wire temperature sensor.
func SetTempSensor(t TempSensor) { tempSensor = t }

// ReadTemperatureC returns the current temperature, or 0 if no sensor is
// configured (e.g. in host-side tests).
func ReadTemperatureC() float32 {
	if tempSensor == nil {
		return 0
	}
	v, err := tempSensor.ReadCelsius()
	if err != nil {
		return 0
	}
	return v
}
