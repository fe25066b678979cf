package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/tank-pump/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string       `json:"event,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	Pump           PumpJSON     `json:"pump"`
	Probes         ProbesJSON   `json:"probes"`
	Ready          bool         `json:"ready"`
	WallClockValid bool         `json:"wall_clock_valid"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	StartTime      string       `json:"start_time"`
	Timestamp      string       `json:"timestamp"`
	MQTT           MQTTStatus   `json:"mqtt"`
	Network        *NetworkJSON `json:"network,omitempty"`
	Config         ConfigJSON   `json:"config"`
}

// PumpJSON is the JSON representation of the pump automaton.
type PumpJSON struct {
	State    string         `json:"state"`
	Override OverrideJSON   `json:"override"`
	LastOn   TransitionJSON `json:"last_on"`
	LastOff  TransitionJSON `json:"last_off"`
	Counts   CountsJSON     `json:"transition_counts"`
}

// OverrideJSON reports the manual override directive.
type OverrideJSON struct {
	Active bool   `json:"active"`
	State  string `json:"state"`
}

// TransitionJSON reports one transition record. Epoch is omitted until known.
type TransitionJSON struct {
	Recorded     bool   `json:"recorded"`
	UptimeMs     uint32 `json:"uptime_ms"`
	Epoch        int64  `json:"epoch,omitempty"`
	Time         string `json:"time,omitempty"`
	EpochPending bool   `json:"epoch_pending,omitempty"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	On  int `json:"on"`
	Off int `json:"off"`
}

// ProbesJSON reports the debounced probe values.
type ProbesJSON struct {
	Low  bool `json:"low"`
	High bool `json:"high"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs           int64  `json:"poll_ms"`
	SampleIntervalMs int64  `json:"sample_interval_ms"`
	Samples          int    `json:"samples"`
	Threshold        int    `json:"threshold"`
	StatusMs         int64  `json:"status_ms"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	Broker           string `json:"broker"`
	HTTPAddr         string `json:"http_addr"`
	GPIO             string `json:"gpio"`
}

func buildTransition(t logic.Transition) TransitionJSON {
	tj := TransitionJSON{
		Recorded:     t.Recorded,
		UptimeMs:     uint32(t.Millis),
		EpochPending: t.Recorded && t.EpochPending,
	}
	if t.EpochKnown() {
		tj.Epoch = t.Epoch
		tj.Time = time.Unix(t.Epoch, 0).UTC().Format(time.RFC3339)
	}
	return tj
}

// StateOrUnknown renders a state, or UNKNOWN before the first cycle.
func StateOrUnknown(s logic.State, ready bool) string {
	if !ready || s == "" {
		return "UNKNOWN"
	}
	return string(s)
}

func buildInner(snap Snapshot) StatusInner {
	p := snap.Pump
	inner := StatusInner{
		Pump: PumpJSON{
			State: StateOrUnknown(p.State, snap.Ready),
			Override: OverrideJSON{
				Active: p.Override.Active,
				State:  string(p.Override.DesiredState()),
			},
			LastOn:  buildTransition(p.LastOn),
			LastOff: buildTransition(p.LastOff),
			Counts:  CountsJSON{On: p.Counts.On, Off: p.Counts.Off},
		},
		Probes: ProbesJSON{
			Low:  snap.Probes.Low.Asserted,
			High: snap.Probes.High.Asserted,
		},
		Ready:          snap.Ready,
		WallClockValid: snap.WallClockValid,
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		MQTT:           MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:           snap.Config.PollMs,
			SampleIntervalMs: snap.Config.SampleIntervalMs,
			Samples:          snap.Config.Samples,
			Threshold:        snap.Config.Threshold,
			StatusMs:         snap.Config.StatusMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
			GPIO:             snap.Config.GPIO,
		},
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
