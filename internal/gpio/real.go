//go:build linux

package gpio

import (
	"fmt"
	"log"

	"github.com/sweeney/tank-pump/internal/logic"
	"github.com/warthog618/go-gpiocdev"
)

// RealPins drives the probes and relay using the Linux GPIO character device.
type RealPins struct {
	chip      *gpiocdev.Chip
	lowPin    *gpiocdev.Line
	highPin   *gpiocdev.Line
	relayPin  *gpiocdev.Line
	activeLow bool

	ledPin       *gpiocdev.Line // nil without a status LED
	ledActiveLow bool
}

// NewRealPins requests the probe and relay lines on the configured chip.
// The relay line starts de-energized.
func NewRealPins(cfg PinConfig) (*RealPins, error) {
	if cfg.Chip == "" {
		cfg.Chip = DefaultChip
	}
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", cfg.Chip, err)
	}

	// Probes are inputs with pull-down so a disconnected probe reads low.
	lowLine, err := chip.RequestLine(cfg.Low, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request low probe pin %d: %w", cfg.Low, err)
	}

	highLine, err := chip.RequestLine(cfg.High, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		lowLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request high probe pin %d: %w", cfg.High, err)
	}

	relayLine, err := chip.RequestLine(cfg.Relay, gpiocdev.AsOutput(lineLevel(false, cfg.RelayActiveLow)))
	if err != nil {
		highLine.Close()
		lowLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request relay pin %d: %w", cfg.Relay, err)
	}

	r := &RealPins{
		chip:         chip,
		lowPin:       lowLine,
		highPin:      highLine,
		relayPin:     relayLine,
		activeLow:    cfg.RelayActiveLow,
		ledActiveLow: cfg.LEDActiveLow,
	}
	if cfg.LED >= 0 {
		r.ledPin, err = chip.RequestLine(cfg.LED, gpiocdev.AsOutput(lineLevel(false, cfg.LEDActiveLow)))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request status led pin %d: %w", cfg.LED, err)
		}
	}
	return r, nil
}

// ReadProbe returns the raw level of a probe line.
// Read failures are logged and reported as the fail-safe level.
func (r *RealPins) ReadProbe(p logic.Probe) bool {
	line := r.lowPin
	if p == logic.ProbeHigh {
		line = r.highPin
	}
	v, err := line.Value()
	if err != nil {
		log.Printf("gpio: read %s probe: %v", p, err)
		return failSafeLevel(p)
	}
	return v == 1
}

// WriteRelay sets the relay line. Write failures are logged.
func (r *RealPins) WriteRelay(on bool) {
	if err := r.relayPin.SetValue(lineLevel(on, r.activeLow)); err != nil {
		log.Printf("gpio: write relay %v: %v", on, err)
	}
}

// WriteLED sets the status LED line, if one was requested.
func (r *RealPins) WriteLED(on bool) {
	if r.ledPin == nil {
		return
	}
	if err := r.ledPin.SetValue(lineLevel(on, r.ledActiveLow)); err != nil {
		log.Printf("gpio: write status led %v: %v", on, err)
	}
}

// Close releases GPIO resources.
// The relay and LED are driven off first. Probe lines are reconfigured to input with
// pull-down (matching Pi boot defaults) before closing so the board comes up
// in a clean state on reboot.
func (r *RealPins) Close() error {
	var errs []error

	if r.relayPin != nil {
		if err := r.relayPin.SetValue(lineLevel(false, r.activeLow)); err != nil {
			errs = append(errs, fmt.Errorf("release relay: %w", err))
		}
		if err := r.relayPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay pin: %w", err))
		}
	}
	if r.ledPin != nil {
		if err := r.ledPin.SetValue(lineLevel(false, r.ledActiveLow)); err != nil {
			errs = append(errs, fmt.Errorf("clear status led: %w", err))
		}
		if err := r.ledPin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close status led pin: %w", err))
		}
	}
	for name, line := range map[string]*gpiocdev.Line{"low": r.lowPin, "high": r.highPin} {
		if line == nil {
			continue
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
