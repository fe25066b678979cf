//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/tank-pump/internal/logic"
)

// RealPins is not available on non-Linux platforms.
type RealPins struct{}

// NewRealPins returns an error on non-Linux platforms.
func NewRealPins(cfg PinConfig) (*RealPins, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// ReadProbe reports the fail-safe level.
func (r *RealPins) ReadProbe(p logic.Probe) bool {
	return failSafeLevel(p)
}

// WriteRelay does nothing on non-Linux platforms.
func (r *RealPins) WriteRelay(on bool) {}

// WriteLED does nothing on non-Linux platforms.
func (r *RealPins) WriteLED(on bool) {}

// Close is not implemented on non-Linux platforms.
func (r *RealPins) Close() error {
	return nil
}
