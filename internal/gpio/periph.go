package gpio

import (
	"fmt"
	"log"

	"github.com/sweeney/tank-pump/internal/logic"
	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// driverInit loads the periph host drivers, which register the board's pins
// with gpioreg. Replaced in tests.
var driverInit = func() error {
	_, err := host.Init()
	return err
}

// PeriphPins drives the probes and relay through periph.io pin interfaces.
type PeriphPins struct {
	low       pgpio.PinIn
	high      pgpio.PinIn
	relay     pgpio.PinOut
	activeLow bool

	led          pgpio.PinOut // nil without a status LED
	ledActiveLow bool
}

// PeriphNames names the pins to look up in the periph registry.
type PeriphNames struct {
	Low            string
	High           string
	Relay          string
	RelayActiveLow bool
	LED            string // empty disables the status LED
	LEDActiveLow   bool
}

// PeriphNamesFor maps BCM numbers to the "GPIOn" names periph host drivers
// register.
func PeriphNamesFor(cfg PinConfig) PeriphNames {
	n := PeriphNames{
		Low:            fmt.Sprintf("GPIO%d", cfg.Low),
		High:           fmt.Sprintf("GPIO%d", cfg.High),
		Relay:          fmt.Sprintf("GPIO%d", cfg.Relay),
		RelayActiveLow: cfg.RelayActiveLow,
	}
	if cfg.LED >= 0 {
		n.LED = fmt.Sprintf("GPIO%d", cfg.LED)
		n.LEDActiveLow = cfg.LEDActiveLow
	}
	return n
}

// OpenPeriphPins initializes the periph host drivers and looks the pins up in
// gpioreg.
func OpenPeriphPins(names PeriphNames) (*PeriphPins, error) {
	if err := driverInit(); err != nil {
		return nil, fmt.Errorf("init periph drivers: %w", err)
	}
	lookup := func(role, name string) (pgpio.PinIO, error) {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("%s pin %q not registered", role, name)
		}
		return p, nil
	}
	low, err := lookup("low probe", names.Low)
	if err != nil {
		return nil, err
	}
	high, err := lookup("high probe", names.High)
	if err != nil {
		return nil, err
	}
	relay, err := lookup("relay", names.Relay)
	if err != nil {
		return nil, err
	}
	p, err := NewPeriphPins(low, high, relay, names.RelayActiveLow)
	if err != nil {
		return nil, err
	}
	if names.LED != "" {
		led, err := lookup("status led", names.LED)
		if err != nil {
			return nil, err
		}
		if err := p.AttachLED(led, names.LEDActiveLow); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewPeriphPins configures the probes as pulled-down inputs and the relay as
// an output driven off.
func NewPeriphPins(low, high pgpio.PinIn, relay pgpio.PinOut, relayActiveLow bool) (*PeriphPins, error) {
	if err := low.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure low probe %s: %w", low, err)
	}
	if err := high.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure high probe %s: %w", high, err)
	}
	p := &PeriphPins{low: low, high: high, relay: relay, activeLow: relayActiveLow}
	if err := relay.Out(p.level(false)); err != nil {
		return nil, fmt.Errorf("configure relay %s: %w", relay, err)
	}
	return p, nil
}

// AttachLED adds a status LED output, driven off.
func (p *PeriphPins) AttachLED(led pgpio.PinOut, activeLow bool) error {
	if err := led.Out(periphLevel(false, activeLow)); err != nil {
		return fmt.Errorf("configure status led %s: %w", led, err)
	}
	p.led, p.ledActiveLow = led, activeLow
	return nil
}

func (p *PeriphPins) level(on bool) pgpio.Level {
	return periphLevel(on, p.activeLow)
}

func periphLevel(on, activeLow bool) pgpio.Level {
	return lineLevel(on, activeLow) == 1
}

// ReadProbe returns the raw level of a probe pin.
func (p *PeriphPins) ReadProbe(probe logic.Probe) bool {
	pin := p.low
	if probe == logic.ProbeHigh {
		pin = p.high
	}
	return pin.Read() == pgpio.High
}

// WriteRelay sets the relay pin. Write failures are logged.
func (p *PeriphPins) WriteRelay(on bool) {
	if err := p.relay.Out(p.level(on)); err != nil {
		log.Printf("gpio: write relay %v: %v", on, err)
	}
}

// WriteLED sets the status LED, if one is attached.
func (p *PeriphPins) WriteLED(on bool) {
	if p.led == nil {
		return
	}
	if err := p.led.Out(periphLevel(on, p.ledActiveLow)); err != nil {
		log.Printf("gpio: write status led %v: %v", on, err)
	}
}

// Close drives the relay and LED off. The pins themselves belong to the
// registry.
func (p *PeriphPins) Close() error {
	p.WriteLED(false)
	if err := p.relay.Out(p.level(false)); err != nil {
		return fmt.Errorf("release relay: %w", err)
	}
	return nil
}
