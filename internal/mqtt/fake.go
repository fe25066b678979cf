package mqtt

import (
	"github.com/sweeney/tank-pump/internal/logic"
)

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// PumpStatuses contains every pump status that was published.
	PumpStatuses []logic.PumpStatus

	// PumpPayloads contains the JSON payloads for pump statuses.
	PumpPayloads [][]byte

	// Sensors contains every probe reading that was published.
	Sensors []logic.ProbeReadings

	// SensorPayloads contains the JSON payloads for probe readings.
	SensorPayloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishPump and PublishSensors.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishPump records the pump status.
func (f *FakePublisher) PublishPump(status logic.PumpStatus) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPumpPayload(status)
	if err != nil {
		return err
	}
	f.PumpStatuses = append(f.PumpStatuses, status)
	f.PumpPayloads = append(f.PumpPayloads, payload)
	return nil
}

// PublishSensors records the probe readings.
func (f *FakePublisher) PublishSensors(readings logic.ProbeReadings) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatSensorPayload(readings)
	if err != nil {
		return err
	}
	f.Sensors = append(f.Sensors, readings)
	f.SensorPayloads = append(f.SensorPayloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// SystemEventNames returns the Event field of each recorded system event.
func (f *FakePublisher) SystemEventNames() []string {
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.PumpStatuses = nil
	f.PumpPayloads = nil
	f.Sensors = nil
	f.SensorPayloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
