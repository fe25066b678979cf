package logic

// RelayFunc drives the pump relay (true = energized).
type RelayFunc func(on bool)

// Decide returns the target pump state. Rules, in priority order:
//
//  1. An active override wins unconditionally, including over the high-water
//     probe. HAZARD: a manual ON override will keep pumping into a full tank.
//     This is kept as-is pending product review.
//  2. High probe asserted: OFF (overfill protection beats the low probe).
//  3. Low probe asserted: ON.
//  4. Neither: hold the current state (hysteresis band).
func Decide(current State, o Override, low, high bool) State {
	switch {
	case o.Active:
		return stateFor(o.Desired)
	case high:
		return StateOff
	case low:
		return StateOn
	default:
		return current
	}
}

// Automaton owns the pump state and its transition records.
// Not safe for concurrent use; the control loop is its only caller.
type Automaton struct {
	tb    *TimeBasis
	relay RelayFunc

	state    State
	override Override
	changed  bool
	lastOn   Transition
	lastOff  Transition
	counts   TransitionCounts
}

// NewAutomaton creates an automaton in the OFF state and drives the relay OFF.
func NewAutomaton(tb *TimeBasis, relay RelayFunc) *Automaton {
	if relay == nil {
		relay = func(bool) {}
	}
	a := &Automaton{tb: tb, relay: relay, state: StateOff}
	relay(false)
	return a
}

// SetOverride stores a directive. It is read by the next Evaluate, never
// applied immediately.
func (a *Automaton) SetOverride(active, desired bool) {
	a.override = Override{Active: active, Desired: desired}
}

// Evaluate runs one control cycle with the given debounced probe values and
// returns the resulting state.
func (a *Automaton) Evaluate(low, high bool) State {
	now := a.tb.Sample()
	a.changed = false

	a.backfill(&a.lastOn)
	a.backfill(&a.lastOff)

	target := Decide(a.state, a.override, low, high)
	if target == a.state {
		return a.state
	}

	a.relay(target.On())
	a.state = target
	a.changed = true

	rec := Transition{Millis: now.Millis, Recorded: true}
	if now.Valid() {
		rec.Epoch = now.Epoch
	} else if epoch, ok := a.tb.Project(now.Millis); ok {
		// Synced earlier but this read was bad: project from the anchor.
		rec.Epoch = epoch
	} else {
		rec.EpochPending = true
	}
	if target == StateOn {
		a.lastOn = rec
		a.counts.On++
	} else {
		a.lastOff = rec
		a.counts.Off++
	}
	return a.state
}

// backfill replaces a pending epoch with one reconciled against the latest
// anchor, once the wall clock has synced. It runs at most once per transition.
func (a *Automaton) backfill(t *Transition) {
	if !t.Recorded || !t.EpochPending {
		return
	}
	epoch, ok := a.tb.ReconcileMark(t.Millis)
	if !ok {
		return
	}
	t.Epoch = epoch
	t.EpochPending = false
}

// State returns the current pump state.
func (a *Automaton) State() State { return a.state }

// OverrideActive reports whether manual override is in force.
func (a *Automaton) OverrideActive() bool { return a.override.Active }

// Override returns the stored directive.
func (a *Automaton) Override() Override { return a.override }

// Changed reports whether the most recent Evaluate made a transition.
func (a *Automaton) Changed() bool { return a.changed }

// LastOn returns the record of the last OFF→ON transition.
func (a *Automaton) LastOn() Transition { return a.lastOn }

// LastOff returns the record of the last ON→OFF transition.
func (a *Automaton) LastOff() Transition { return a.lastOff }

// LastOnTime returns the monotonic time of the last ON transition (0 if none).
func (a *Automaton) LastOnTime() Millis { return a.lastOn.Millis }

// LastOffTime returns the monotonic time of the last OFF transition (0 if none).
func (a *Automaton) LastOffTime() Millis { return a.lastOff.Millis }

// LastOnEpoch returns the wall clock of the last ON transition. ok is false
// if there was none or its epoch is still pending.
func (a *Automaton) LastOnEpoch() (int64, bool) {
	return a.lastOn.Epoch, a.lastOn.EpochKnown()
}

// LastOffEpoch returns the wall clock of the last OFF transition. ok is false
// if there was none or its epoch is still pending.
func (a *Automaton) LastOffEpoch() (int64, bool) {
	return a.lastOff.Epoch, a.lastOff.EpochKnown()
}

// Counts returns the number of transitions since startup.
func (a *Automaton) Counts() TransitionCounts { return a.counts }

// Status returns a value snapshot for reporting.
func (a *Automaton) Status() PumpStatus {
	return PumpStatus{
		State:    a.state,
		Override: a.override,
		LastOn:   a.lastOn,
		LastOff:  a.lastOff,
		Counts:   a.counts,
	}
}
