package logic

import "time"

// ReadFunc returns the raw level of a probe pin (true = high).
type ReadFunc func(Probe) bool

// SleepFunc blocks for d. The control loop passes time.Sleep; tests pass nil.
type SleepFunc func(d time.Duration)

// SensorConfig controls the majority-vote debounce.
type SensorConfig struct {
	Samples   int           // reads per probe per Update
	Threshold int           // high reads needed to assert
	Interval  time.Duration // delay between consecutive reads
}

// DefaultSensorConfig returns 3-of-5 reads spaced 10ms apart.
func DefaultSensorConfig() SensorConfig {
	return SensorConfig{
		Samples:   5,
		Threshold: 3,
		Interval:  10 * time.Millisecond,
	}
}

// Window returns how long one probe's sampling blocks.
func (c SensorConfig) Window() time.Duration {
	if c.Samples <= 1 {
		return 0
	}
	return time.Duration(c.Samples-1) * c.Interval
}

// Majority reports whether at least threshold samples are high.
func Majority(samples []bool, threshold int) bool {
	n := 0
	for _, s := range samples {
		if s {
			n++
		}
	}
	return n >= threshold
}

// Monitor debounces the low and high probes.
//
// Update refreshes the asserted values but does not touch the committed
// previous values; change flags therefore compare against whatever was last
// committed by ResetChangeFlags. Callers that want per-cycle edges call
// ResetChangeFlags exactly once per cycle after consuming the flags.
type Monitor struct {
	read  ReadFunc
	sleep SleepFunc
	cfg   SensorConfig

	low  ProbeReading
	high ProbeReading
}

// NewMonitor creates a Monitor. Zero fields in cfg take their defaults.
func NewMonitor(read ReadFunc, sleep SleepFunc, cfg SensorConfig) *Monitor {
	def := DefaultSensorConfig()
	if cfg.Samples <= 0 {
		cfg.Samples = def.Samples
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = cfg.Samples/2 + 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	return &Monitor{read: read, sleep: sleep, cfg: cfg}
}

// Config returns the effective debounce configuration.
func (m *Monitor) Config() SensorConfig {
	return m.cfg
}

// Update samples both probes. It blocks for the debounce window of each probe.
func (m *Monitor) Update() {
	m.low.Asserted = m.sample(ProbeLow)
	m.high.Asserted = m.sample(ProbeHigh)
}

// Prime takes an initial reading and commits it, so the first cycle does not
// report changes from the zero value.
func (m *Monitor) Prime() {
	m.Update()
	m.ResetChangeFlags()
}

func (m *Monitor) sample(p Probe) bool {
	reads := make([]bool, m.cfg.Samples)
	for i := range reads {
		if i > 0 && m.sleep != nil {
			m.sleep(m.cfg.Interval)
		}
		reads[i] = m.read(p)
	}
	return Majority(reads, m.cfg.Threshold)
}

// LowAsserted reports whether the low probe is asserted (water below it).
func (m *Monitor) LowAsserted() bool { return m.low.Asserted }

// HighAsserted reports whether the high probe is asserted (water reached it).
func (m *Monitor) HighAsserted() bool { return m.high.Asserted }

// LowChanged reports whether the low probe differs from the committed value.
func (m *Monitor) LowChanged() bool { return m.low.Changed() }

// HighChanged reports whether the high probe differs from the committed value.
func (m *Monitor) HighChanged() bool { return m.high.Changed() }

// ResetChangeFlags commits the current readings as the previous values.
func (m *Monitor) ResetChangeFlags() {
	m.low.Previous = m.low.Asserted
	m.high.Previous = m.high.Asserted
}

// Readings returns a copy of both probe readings.
func (m *Monitor) Readings() ProbeReadings {
	return ProbeReadings{Low: m.low, High: m.high}
}
