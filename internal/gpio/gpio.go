// Package gpio provides the probe inputs and pump relay output with hardware
// abstraction.
// The real implementation uses the Linux GPIO character device; a periph.io
// backend covers boards whose pins are registered with periph drivers.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/tank-pump/internal/logic"

// Pins is the hardware surface the control loop needs.
//
// Reads and writes have no error path: backends log IO failures and fall back
// to failSafeLevel, which biases the pump toward OFF.
type Pins interface {
	// ReadProbe returns the raw level of a probe (true = high).
	ReadProbe(p logic.Probe) bool

	// WriteRelay energizes (true) or releases (false) the pump relay.
	WriteRelay(on bool)

	// WriteLED lights (true) or clears the status LED. It does nothing when
	// no LED is configured.
	WriteLED(on bool)

	// Close drives the relay and LED off and releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinLow   = 4  // low-water probe
	DefaultPinHigh  = 5  // high-water probe
	DefaultPinRelay = 14 // pump relay

	// NoPin leaves an optional output (the status LED) unconnected.
	NoPin = -1
)

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// PinConfig selects the lines used by a backend.
type PinConfig struct {
	Chip           string
	Low            int
	High           int
	Relay          int
	RelayActiveLow bool
	LED            int // NoPin (or any negative) disables the status LED
	LEDActiveLow   bool
}

// DefaultPinConfig returns the default wiring.
func DefaultPinConfig() PinConfig {
	return PinConfig{
		Chip:  DefaultChip,
		Low:   DefaultPinLow,
		High:  DefaultPinHigh,
		Relay: DefaultPinRelay,
		LED:   NoPin,
	}
}

// failSafeLevel is reported when a probe cannot be read: a stuck high probe
// reads as asserted and a stuck low probe as clear, so the automaton turns
// the pump off rather than on.
func failSafeLevel(p logic.Probe) bool {
	return p == logic.ProbeHigh
}

// lineLevel maps the logical state of an output (relay, LED) to the raw line
// value.
func lineLevel(on, activeLow bool) int {
	if on != activeLow {
		return 1
	}
	return 0
}
