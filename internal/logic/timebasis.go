package logic

// Millis is a free-running millisecond counter since boot. It wraps to zero
// after about 49.7 days.
type Millis uint32

// WallClockSentinel is the smallest epoch (exclusive) treated as a synced wall
// clock: 1,000,000,000 seconds is September 2001. Anything at or below it
// means the clock has not been set by NTP yet.
const WallClockSentinel int64 = 1_000_000_000

// MonotonicFunc returns the current monotonic counter.
type MonotonicFunc func() Millis

// WallFunc returns the current wall clock in seconds since the Unix epoch.
type WallFunc func() int64

type unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// ElapsedSince returns now-mark in the counter's own width, so the result is
// correct across a single wrap of the counter.
func ElapsedSince[T unsigned](mark, now T) T {
	return now - mark
}

// WallClockValid reports whether epoch is past the sentinel.
func WallClockValid(epoch int64) bool {
	return epoch > WallClockSentinel
}

// Reconcile estimates the wall clock at monotonic mark, given that the wall
// clock reads wallNow at monotonic now. Both clocks are assumed to have run at
// the same rate in between; drift is not modelled.
func Reconcile(mark, now Millis, wallNow int64) int64 {
	return wallNow - int64(ElapsedSince(mark, now)/1000)
}

// ClockSample is a monotonic reading paired with the wall clock read at the
// same moment.
type ClockSample struct {
	Millis Millis
	Epoch  int64
}

// Valid reports whether the sample's wall clock is past the sentinel.
func (s ClockSample) Valid() bool {
	return WallClockValid(s.Epoch)
}

// TimeBasis bridges the monotonic counter and the wall clock. Validity is
// sticky: once the wall clock has reported a synced value, IsWallClockValid
// stays true. The latest valid sample is kept as the reconciliation anchor.
type TimeBasis struct {
	mono MonotonicFunc
	wall WallFunc

	valid    bool
	anchor   ClockSample
	syncedAt ClockSample
}

// NewTimeBasis creates a TimeBasis over the given clocks.
func NewTimeBasis(mono MonotonicFunc, wall WallFunc) *TimeBasis {
	return &TimeBasis{mono: mono, wall: wall}
}

// Sample reads both clocks. A valid wall clock reading latches validity and
// becomes the new anchor.
func (tb *TimeBasis) Sample() ClockSample {
	s := ClockSample{Millis: tb.mono(), Epoch: tb.wall()}
	if s.Valid() {
		if !tb.valid {
			tb.syncedAt = s
		}
		tb.valid = true
		tb.anchor = s
	}
	return s
}

// IsWallClockValid reports whether the wall clock has ever been valid.
func (tb *TimeBasis) IsWallClockValid() bool {
	return tb.valid
}

// Anchor returns the latest valid sample. ok is false before the first one.
func (tb *TimeBasis) Anchor() (ClockSample, bool) {
	return tb.anchor, tb.valid
}

// SyncedAt returns the first valid sample, i.e. when the wall clock came up.
func (tb *TimeBasis) SyncedAt() (ClockSample, bool) {
	return tb.syncedAt, tb.valid
}

// Project estimates the epoch at a monotonic reading taken at or after the
// latest anchor. It covers samples whose own wall clock read was bad after
// the clock had already synced.
func (tb *TimeBasis) Project(now Millis) (int64, bool) {
	if !tb.valid {
		return 0, false
	}
	return tb.anchor.Epoch + int64(ElapsedSince(tb.anchor.Millis, now)/1000), true
}

// ReconcileMark derives the epoch of a monotonic mark taken at or before the
// current anchor.
func (tb *TimeBasis) ReconcileMark(mark Millis) (int64, bool) {
	if !tb.valid {
		return 0, false
	}
	return Reconcile(mark, tb.anchor.Millis, tb.anchor.Epoch), true
}
