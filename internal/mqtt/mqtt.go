// Package mqtt provides MQTT publishing and command delivery with abstraction
// for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/tank-pump/internal/logic"
)

// DeviceID names the controller on the broker.
const DeviceID = "water_tank_controller"

// Topics. The state topic layout follows zigbee2mqtt so the tank appears next
// to other devices in home automation dashboards.
const (
	TopicState   = "zigbee2mqtt/" + DeviceID
	TopicPump    = TopicState + "/pump"
	TopicCommand = TopicState + "/set"
	TopicSystem  = TopicState + "/system"
)

// Publisher publishes controller state to MQTT.
type Publisher interface {
	// PublishPump sends the pump status (retained).
	// Returns error if publishing fails (should not crash the process).
	PublishPump(status logic.PumpStatus) error

	// PublishSensors sends the probe readings (retained).
	PublishSensors(readings logic.ProbeReadings) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SensorPayload is the state topic payload. Field names match the
// zigbee2mqtt contact and water leak sensor conventions.
type SensorPayload struct {
	Contact   bool `json:"contact"`    // low probe asserted
	WaterLeak bool `json:"water_leak"` // high probe asserted
}

// FormatSensorPayload creates the JSON payload for the probe readings.
func FormatSensorPayload(r logic.ProbeReadings) ([]byte, error) {
	return json.Marshal(SensorPayload{
		Contact:   r.Low.Asserted,
		WaterLeak: r.High.Asserted,
	})
}

// PumpPayload is the pump topic payload.
type PumpPayload struct {
	State    string `json:"state"`
	Override bool   `json:"override"`
	// LastOn and LastOff are only present once the wall clock time of the
	// transition is known.
	LastOn  string `json:"last_on,omitempty"`
	LastOff string `json:"last_off,omitempty"`
	// Runtime fields are milliseconds since boot.
	RuntimeLastOn  uint32 `json:"runtime_last_on"`
	RuntimeLastOff uint32 `json:"runtime_last_off"`
}

// FormatPumpPayload creates the JSON payload for a pump status.
func FormatPumpPayload(s logic.PumpStatus) ([]byte, error) {
	payload := PumpPayload{
		State:          string(s.State),
		Override:       s.Override.Active,
		LastOn:         formatEpoch(s.LastOn),
		LastOff:        formatEpoch(s.LastOff),
		RuntimeLastOn:  uint32(s.LastOn.Millis),
		RuntimeLastOff: uint32(s.LastOff.Millis),
	}
	return json.Marshal(payload)
}

func formatEpoch(t logic.Transition) string {
	if !t.EpochKnown() || !logic.WallClockValid(t.Epoch) {
		return ""
	}
	return time.Unix(t.Epoch, 0).UTC().Format(time.RFC3339)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is the last-will message the broker publishes if the
// controller drops off without a clean shutdown.
func WillPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE"})
	return data
}
