package main

import (
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/tank-pump/internal/logic"
	"github.com/sweeney/tank-pump/internal/mqtt"
	"github.com/sweeney/tank-pump/internal/status"
)

// controlLoop owns the monitor and automaton. Everything it touches is used
// from the run goroutine only; other goroutines reach it through the
// commands channel and read results through the tracker.
type controlLoop struct {
	monitor    *logic.Monitor
	pump       *logic.Automaton
	clock      *logic.TimeBasis
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // may be nil
	tracker    *status.Tracker       // may be nil
	network    func() *status.NetworkInfo

	statusEvery time.Duration
	heartbeat   time.Duration // 0 disables
	now         func() time.Time

	lastStatus    time.Time
	lastHeartbeat time.Time
	hazard        bool
	clockSynced   bool
}

// run processes ticks until a signal arrives or done is closed. A signal
// publishes SHUTDOWN; done (a sibling goroutine failed) returns silently.
func (l *controlLoop) run(done <-chan struct{}, commands <-chan logic.Override, tick <-chan time.Time, sig <-chan os.Signal) error {
	l.lastHeartbeat = l.now()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			l.shutdown(signalName(s))
			return nil

		case <-done:
			log.Printf("control loop stopping")
			return nil

		case o := <-commands:
			l.applyOverride(o)

		case <-tick:
			// A directive that arrived alongside the tick still takes
			// effect in this cycle's evaluation.
			select {
			case o := <-commands:
				l.applyOverride(o)
			default:
			}
			l.step(l.now())
		}
	}
}

func (l *controlLoop) applyOverride(o logic.Override) {
	prev := l.pump.Override()
	l.pump.SetOverride(o.Active, o.Desired)
	if o.Active {
		log.Printf("override: manual %s (effective next cycle)", o.DesiredState())
	} else {
		log.Printf("override: released, automatic control resumes next cycle")
	}
	if prev != l.pump.Override() {
		l.publishPump()
	}
}

// step runs one control cycle: sample, evaluate, report.
func (l *controlLoop) step(t time.Time) {
	l.monitor.Update()
	low, high := l.monitor.LowAsserted(), l.monitor.HighAsserted()

	prev := l.pump.State()
	state := l.pump.Evaluate(low, high)

	if l.monitor.LowChanged() || l.monitor.HighChanged() {
		log.Printf("probes: low=%v high=%v", low, high)
		if err := l.publisher.PublishSensors(l.monitor.Readings()); err != nil {
			log.Printf("sensor publish error: %v", err)
		}
	}
	l.monitor.ResetChangeFlags()

	if l.pump.Changed() {
		log.Printf("pump: %s -> %s (low=%v high=%v override=%v)", prev, state, low, high, l.pump.OverrideActive())
		l.publishPump()
	}

	l.checkHazard(high)
	l.checkClockSync()

	if t.Sub(l.lastStatus) >= l.statusEvery {
		l.lastStatus = t
		if err := l.publisher.PublishSensors(l.monitor.Readings()); err != nil {
			log.Printf("status publish error: %v", err)
		}
		l.publishPump()
	}

	l.updateTracker()

	if l.heartbeat > 0 && t.Sub(l.lastHeartbeat) >= l.heartbeat {
		l.lastHeartbeat = t
		l.publishHeartbeat(t)
	}
}

// checkHazard warns once each time a forced-ON override meets a full tank.
// The override still wins; the warning exists so the condition is visible.
func (l *controlLoop) checkHazard(high bool) {
	o := l.pump.Override()
	hazard := o.Active && o.Desired && high
	if hazard && !l.hazard {
		log.Printf("WARNING: override holds pump ON with high-water probe asserted")
	}
	l.hazard = hazard
}

func (l *controlLoop) checkClockSync() {
	if l.clockSynced {
		return
	}
	if at, ok := l.clock.SyncedAt(); ok {
		l.clockSynced = true
		log.Printf("wall clock synced at %s (%dms after boot)", time.Unix(at.Epoch, 0).UTC().Format(time.RFC3339), at.Millis)
	}
}

func (l *controlLoop) publishPump() {
	if err := l.publisher.PublishPump(l.pump.Status()); err != nil {
		log.Printf("pump publish error: %v", err)
	}
}

func (l *controlLoop) updateTracker() {
	if l.tracker == nil {
		return
	}
	l.tracker.Update(l.pump.Status(), l.monitor.Readings(), l.clock.IsWallClockValid())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *controlLoop) publishHeartbeat(t time.Time) {
	c := l.pump.Counts()
	log.Printf("heartbeat: pump=%s on=%d off=%d", l.pump.State(), c.On, c.Off)

	event := mqtt.SystemEvent{Timestamp: t, Event: "HEARTBEAT"}
	if l.tracker != nil {
		if l.network != nil {
			if net := l.network(); net != nil {
				l.tracker.SetNetwork(net)
			}
		}
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

func (l *controlLoop) shutdown(reason string) {
	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if l.tracker != nil {
		l.updateTracker()
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", reason)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
