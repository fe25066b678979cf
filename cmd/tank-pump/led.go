package main

import (
	"log"
	"time"

	"github.com/sweeney/tank-pump/internal/logic"
)

// ledInterval is how often the status LED is refreshed. It must be well
// under the fast blink half-period.
const ledInterval = 100 * time.Millisecond

// statusLED blinks the status LED from its own goroutine so the blink rate
// does not depend on the poll interval. It only reads thread-safe state.
type statusLED struct {
	write func(on bool)
	state func() (connected, override bool)
	mono  logic.MonotonicFunc

	ind     logic.Indicator
	pattern logic.LEDPattern
	lit     bool
	started bool
}

func (s *statusLED) run(done <-chan struct{}, tick <-chan time.Time) error {
	for {
		select {
		case <-done:
			return nil
		case <-tick:
			s.step()
		}
	}
}

func (s *statusLED) step() {
	connected, override := s.state()
	p := logic.PatternFor(connected, override)
	if !s.started || p != s.pattern {
		log.Printf("status led: %s", p)
		s.pattern = p
	}
	lit := s.ind.Step(s.mono(), p)
	if !s.started || lit != s.lit {
		s.write(lit)
		s.lit = lit
	}
	s.started = true
}
