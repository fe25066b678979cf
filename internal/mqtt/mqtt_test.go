package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/tank-pump/internal/logic"
)

const syncedEpoch int64 = 1_770_070_692 // 2026-02-02T22:18:12Z

func TestTopics(t *testing.T) {
	tests := map[string]string{
		TopicState:   "zigbee2mqtt/water_tank_controller",
		TopicPump:    "zigbee2mqtt/water_tank_controller/pump",
		TopicCommand: "zigbee2mqtt/water_tank_controller/set",
		TopicSystem:  "zigbee2mqtt/water_tank_controller/system",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("topic: got %q, want %q", got, want)
		}
	}
}

func TestFormatSensorPayload(t *testing.T) {
	payload, err := FormatSensorPayload(logic.ProbeReadings{
		Low:  logic.ProbeReading{Asserted: true},
		High: logic.ProbeReading{Asserted: false},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != `{"contact":true,"water_leak":false}` {
		t.Errorf("payload: got %s", payload)
	}
}

func TestFormatPumpPayloadKnownEpochs(t *testing.T) {
	status := logic.PumpStatus{
		State:   logic.StateOn,
		LastOn:  logic.Transition{Millis: 120000, Epoch: syncedEpoch, Recorded: true},
		LastOff: logic.Transition{Millis: 60000, Epoch: syncedEpoch - 60, Recorded: true},
	}

	payload, err := FormatPumpPayload(status)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed PumpPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.State != "ON" {
		t.Errorf("state: got %q, want ON", parsed.State)
	}
	if parsed.LastOn != "2026-02-02T22:18:12Z" {
		t.Errorf("last_on: got %q", parsed.LastOn)
	}
	if parsed.LastOff != "2026-02-02T22:17:12Z" {
		t.Errorf("last_off: got %q", parsed.LastOff)
	}
	if parsed.RuntimeLastOn != 120000 || parsed.RuntimeLastOff != 60000 {
		t.Errorf("runtime: got on=%d off=%d", parsed.RuntimeLastOn, parsed.RuntimeLastOff)
	}
}

func TestFormatPumpPayloadOmitsPendingEpoch(t *testing.T) {
	status := logic.PumpStatus{
		State:  logic.StateOn,
		LastOn: logic.Transition{Millis: 1000, Recorded: true, EpochPending: true},
	}

	payload, err := FormatPumpPayload(status)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(payload)
	if strings.Contains(s, "last_on") || strings.Contains(s, "last_off") {
		t.Errorf("pending/unrecorded epochs should be omitted: %s", s)
	}
	if !strings.Contains(s, `"runtime_last_on":1000`) {
		t.Errorf("runtime should be present: %s", s)
	}
}

func TestFormatPumpPayloadExactJSON(t *testing.T) {
	status := logic.PumpStatus{
		State:    logic.StateOff,
		Override: logic.Override{Active: true},
	}
	payload, err := FormatPumpPayload(status)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"state":"OFF","override":true,"runtime_last_on":0,"runtime_last_off":0}`
	if string(payload) != want {
		t.Errorf("payload:\n got %s\nwant %s", payload, want)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"system":{"timestamp":"2026-02-02T22:18:12Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != want {
		t.Errorf("payload:\n got %s\nwant %s", payload, want)
	}
}

func TestFormatSystemPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	event := SystemEvent{Timestamp: time.Date(2026, 2, 2, 17, 18, 12, 0, loc), Event: "STARTUP"}

	payload, _ := FormatSystemPayload(event)
	var parsed SystemPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("timestamp: got %s, want UTC", parsed.System.Timestamp)
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload, got %s", payload)
	}
}

func TestWillPayload(t *testing.T) {
	if got := string(WillPayload()); got != `{"system":{"event":"OFFLINE"}}` {
		t.Errorf("will payload: got %s", got)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    logic.Override
		ok      bool
		wantErr bool
	}{
		{"override on", `{"override":true,"state":"ON"}`, logic.Override{Active: true, Desired: true}, true, false},
		{"override off", `{"override":true,"state":"OFF"}`, logic.Override{Active: true}, true, false},
		{"lowercase state is not ON", `{"override":true,"state":"on"}`, logic.Override{Active: true, Desired: false}, true, false},
		{"padded state is not ON", `{"override":true,"state":" ON "}`, logic.Override{Active: true, Desired: false}, true, false},
		{"missing state is off", `{"override":true}`, logic.Override{Active: true}, true, false},
		{"garbage state is off", `{"override":true,"state":"MAYBE"}`, logic.Override{Active: true}, true, false},
		{"disable override", `{"override":false}`, logic.Override{}, true, false},
		{"disable keeps state", `{"override":false,"state":"ON"}`, logic.Override{Desired: true}, true, false},
		{"no override key", `{"state":"ON"}`, logic.Override{}, false, false},
		{"invalid json", `{override`, logic.Override{}, false, true},
		{"wrong type", `{"override":"yes"}`, logic.Override{}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ParseCommand([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.ok {
				t.Errorf("ok: got %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("override: got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCommandQueueLatestWins(t *testing.T) {
	q := NewCommandQueue()
	q.Deliver(logic.Override{Active: true, Desired: true})
	q.Deliver(logic.Override{Active: true, Desired: false})

	select {
	case got := <-q.C():
		if got != (logic.Override{Active: true, Desired: false}) {
			t.Errorf("got %+v, want latest directive", got)
		}
	default:
		t.Fatal("expected a queued directive")
	}

	select {
	case got := <-q.C():
		t.Errorf("queue should hold one directive, got extra %+v", got)
	default:
	}
}

func TestCommandQueueHandleCommand(t *testing.T) {
	q := NewCommandQueue()

	if err := q.HandleCommand([]byte(`not json`)); err == nil {
		t.Error("expected parse error")
	}
	if err := q.HandleCommand([]byte(`{"state":"ON"}`)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	select {
	case got := <-q.C():
		t.Fatalf("no directive expected, got %+v", got)
	default:
	}

	if err := q.HandleCommand([]byte(`{"override":true,"state":"ON"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := <-q.C(); !got.Active || !got.Desired {
		t.Errorf("got %+v", got)
	}
}

func TestNewClientID(t *testing.T) {
	a, b := NewClientID(), NewClientID()
	if !strings.HasPrefix(a, DeviceID+"_") {
		t.Errorf("client id %q missing device prefix", a)
	}
	if len(a) != len(DeviceID)+9 {
		t.Errorf("client id %q: unexpected length", a)
	}
	if a == b {
		t.Error("client ids should differ")
	}
}

func TestFakePublisherRecords(t *testing.T) {
	f := NewFakePublisher()

	if err := f.PublishPump(logic.PumpStatus{State: logic.StateOn}); err != nil {
		t.Fatalf("PublishPump: %v", err)
	}
	if err := f.PublishSensors(logic.ProbeReadings{}); err != nil {
		t.Fatalf("PublishSensors: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	if len(f.PumpStatuses) != 1 || len(f.PumpPayloads) != 1 {
		t.Errorf("pump: got %d statuses, %d payloads", len(f.PumpStatuses), len(f.PumpPayloads))
	}
	if len(f.Sensors) != 1 || len(f.SensorPayloads) != 1 {
		t.Errorf("sensors: got %d readings, %d payloads", len(f.Sensors), len(f.SensorPayloads))
	}
	if names := f.SystemEventNames(); len(names) != 1 || names[0] != "STARTUP" {
		t.Errorf("system events: got %v", names)
	}
	if !f.SystemEvents[0].Retained {
		t.Error("retained flag not recorded")
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker unavailable")
	f.PublishSystemError = errors.New("broker unavailable")

	if f.PublishPump(logic.PumpStatus{}) == nil {
		t.Error("expected PublishPump error")
	}
	if f.PublishSensors(logic.ProbeReadings{}) == nil {
		t.Error("expected PublishSensors error")
	}
	if f.PublishSystem(SystemEvent{Event: "HEARTBEAT"}) == nil {
		t.Error("expected PublishSystem error")
	}
	if len(f.PumpStatuses)+len(f.Sensors)+len(f.SystemEvents) != 0 {
		t.Error("nothing should be recorded on error")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.PublishPump(logic.PumpStatus{})
	f.Connected = true
	f.Close()

	f.Reset()
	if len(f.PumpStatuses) != 0 || f.Closed || f.Connected {
		t.Errorf("reset incomplete: %+v", f)
	}
}
