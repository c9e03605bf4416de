package hal

// StepperBackend is the hardware abstraction for a single axis's step/dir
// output. Implementations can drive plain GPIO or an RP2040 PIO state
// machine for jitter-free pulse generation (both live in targets/pio);
// both satisfy the same interface so the motion scheduler is backend
// agnostic.
type StepperBackend interface {
	// Init configures the step/dir pins. X's direction signal is physically
	// duplicated onto a second, inverted pin (spec.md §3); backends that
	// need a second dir pin accept it via a platform-specific constructor,
	// not through this interface.
	Init(stepPin, dirPin Pin, invertStep bool) error

	// Step emits a single step pulse of at least config.StepPulseWidthUS.
	Step()

	// SetDirection sets the direction output. dir=true means "reverse"
	// (position decrements); must guarantee config.DirSetupUS before the
	// next Step() if direction changed.
	SetDirection(dir bool)

	// Stop immediately silences the step output (used when motors are
	// disabled or paused).
	Stop()

	GetName() string
}
