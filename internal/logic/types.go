// Package logic contains the pure control logic for the tank pump: probe
// debouncing, the pump automaton and the monotonic/wall clock bridge.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Pin reads, relay writes, sleeps and clocks are always injected.
package logic

// State represents the logical state of the pump relay.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

func stateFor(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// On reports whether the state energizes the relay.
func (s State) On() bool {
	return s == StateOn
}

// Probe identifies one of the two water-level probes.
type Probe int

const (
	ProbeLow Probe = iota
	ProbeHigh
)

func (p Probe) String() string {
	switch p {
	case ProbeLow:
		return "low"
	case ProbeHigh:
		return "high"
	}
	return "unknown"
}

// ProbeReading is the debounced value of one probe plus the value last
// committed by ResetChangeFlags.
type ProbeReading struct {
	Asserted bool
	Previous bool
}

// Changed reports whether the reading differs from the committed value.
func (r ProbeReading) Changed() bool {
	return r.Asserted != r.Previous
}

// ProbeReadings is a point-in-time copy of both probes.
type ProbeReadings struct {
	Low  ProbeReading
	High ProbeReading
}

// Override is a manual control directive. The zero value is inactive with an
// OFF desired state, so a missing directive never turns the pump on.
type Override struct {
	Active  bool
	Desired bool
}

// DesiredState returns the state the directive asks for.
func (o Override) DesiredState() State {
	return stateFor(o.Desired)
}

// Transition records when the pump last made one edge (ON or OFF).
type Transition struct {
	// Millis is the monotonic clock at the transition.
	Millis Millis
	// Epoch is the wall clock in seconds. Only meaningful when
	// Recorded && !EpochPending.
	Epoch int64
	// Recorded is false until the edge has happened at least once.
	Recorded bool
	// EpochPending is set when the wall clock was not valid at the
	// transition; it is cleared once the epoch has been back-filled.
	EpochPending bool
}

// EpochKnown reports whether Epoch holds a usable wall clock value.
func (t Transition) EpochKnown() bool {
	return t.Recorded && !t.EpochPending
}

// TransitionCounts tracks the number of pump transitions since startup.
type TransitionCounts struct {
	On  int
	Off int
}

// PumpStatus is a value snapshot of the automaton for reporting.
type PumpStatus struct {
	State    State
	Override Override
	LastOn   Transition
	LastOff  Transition
	Counts   TransitionCounts
}
