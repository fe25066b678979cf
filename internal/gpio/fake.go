package gpio

import (
	"sync"

	"github.com/sweeney/tank-pump/internal/logic"
)

// FakePins is a test double that returns scripted probe levels and records
// relay and LED writes. LED writes may come from another goroutine and are
// guarded; everything else belongs to the caller's goroutine.
type FakePins struct {
	// Low and High contain scripted raw levels for each probe.
	// Each ReadProbe call consumes the next value; when a script is
	// exhausted its last value repeats. An empty script reads fail-safe.
	Low  []bool
	High []bool

	lowIdx  int
	highIdx int

	// RelayWrites records every WriteRelay call in order.
	RelayWrites []bool

	// Closed tracks if Close was called.
	Closed bool

	mu        sync.Mutex
	ledWrites []bool
}

// NewFakePins creates FakePins with the given probe scripts.
func NewFakePins(low, high []bool) *FakePins {
	return &FakePins{Low: low, High: high}
}

// ReadProbe returns the next scripted level for the probe.
func (f *FakePins) ReadProbe(p logic.Probe) bool {
	script, idx := f.Low, &f.lowIdx
	if p == logic.ProbeHigh {
		script, idx = f.High, &f.highIdx
	}
	if len(script) == 0 {
		return failSafeLevel(p)
	}
	v := script[*idx]
	if *idx < len(script)-1 {
		*idx++
	}
	return v
}

// SetLevels replaces both scripts with constant levels.
func (f *FakePins) SetLevels(low, high bool) {
	f.Low = []bool{low}
	f.High = []bool{high}
	f.lowIdx = 0
	f.highIdx = 0
}

// WriteRelay records the relay write.
func (f *FakePins) WriteRelay(on bool) {
	f.RelayWrites = append(f.RelayWrites, on)
}

// Relay returns the last written relay state (false if never written).
func (f *FakePins) Relay() bool {
	if len(f.RelayWrites) == 0 {
		return false
	}
	return f.RelayWrites[len(f.RelayWrites)-1]
}

// WriteLED records the LED write.
func (f *FakePins) WriteLED(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ledWrites = append(f.ledWrites, on)
}

// LEDWrites returns a copy of every WriteLED call in order.
func (f *FakePins) LEDWrites() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.ledWrites...)
}

// Close drives the relay and LED off and marks the pins as closed.
func (f *FakePins) Close() error {
	f.WriteRelay(false)
	f.WriteLED(false)
	f.Closed = true
	return nil
}

// Reset rewinds the scripts and clears recorded writes.
func (f *FakePins) Reset() {
	f.lowIdx = 0
	f.highIdx = 0
	f.RelayWrites = nil
	f.Closed = false
	f.mu.Lock()
	f.ledWrites = nil
	f.mu.Unlock()
}
