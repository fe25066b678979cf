package logic

// LEDPattern is what the status LED shows.
type LEDPattern int

const (
	LEDSolid     LEDPattern = iota // connected, automatic control
	LEDSlowBlink                   // connected, override active
	LEDFastBlink                   // broker unreachable
)

// Blink half-periods: the LED toggles once per half-period.
const (
	FastBlinkMillis Millis = 200
	SlowBlinkMillis Millis = 1000
)

// PatternFor picks the LED pattern. A lost connection outranks an override.
func PatternFor(connected, override bool) LEDPattern {
	switch {
	case !connected:
		return LEDFastBlink
	case override:
		return LEDSlowBlink
	default:
		return LEDSolid
	}
}

func (p LEDPattern) String() string {
	switch p {
	case LEDSolid:
		return "solid"
	case LEDSlowBlink:
		return "slow-blink"
	case LEDFastBlink:
		return "fast-blink"
	}
	return "unknown"
}

// Indicator tracks the blink phase of the status LED.
// Not safe for concurrent use.
type Indicator struct {
	lit     bool
	toggled Millis // when lit last changed
}

// Step returns whether the LED should be lit at now. Blinking patterns
// toggle once at least a half-period has elapsed since the last toggle;
// the solid pattern is always lit.
func (ind *Indicator) Step(now Millis, p LEDPattern) bool {
	var half Millis
	switch p {
	case LEDFastBlink:
		half = FastBlinkMillis
	case LEDSlowBlink:
		half = SlowBlinkMillis
	default:
		ind.lit = true
		ind.toggled = now
		return true
	}
	if ElapsedSince(ind.toggled, now) >= half {
		ind.lit = !ind.lit
		ind.toggled = now
	}
	return ind.lit
}
