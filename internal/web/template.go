package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/tank-pump/internal/logic"
	"github.com/sweeney/tank-pump/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime":    formatUptime,
	"pumpState": status.StateOrUnknown,
	"stateClass": func(s string) string {
		switch s {
		case "ON":
			return "on"
		case "OFF":
			return "off"
		}
		return "unknown"
	},
	"transition": formatTransition,
	"level": func(asserted bool) string {
		if asserted {
			return "wet"
		}
		return "dry"
	},
}).Parse(indexHTML))

func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
	}
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func formatTransition(t logic.Transition) string {
	switch {
	case !t.Recorded:
		return "never"
	case t.EpochPending:
		return fmt.Sprintf("%dms after boot (clock not synced)", t.Millis)
	}
	return time.Unix(t.Epoch, 0).UTC().Format(time.RFC3339)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Water Tank Pump</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
form { display: inline; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.override { color: #b60; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Water Tank Pump</h1>

<h2>Pump</h2>
<table>
{{$state := pumpState .Pump.State .Ready}}<tr><th>State</th><td class="{{stateClass $state}}">{{$state}}</td></tr>
<tr><th>Mode</th><td>{{if .Pump.Override.Active}}<span class="override">manual override ({{.Pump.Override.DesiredState}})</span>{{else}}automatic{{end}}</td></tr>
<tr><th>Last ON</th><td>{{transition .Pump.LastOn}}</td></tr>
<tr><th>Last OFF</th><td>{{transition .Pump.LastOff}}</td></tr>
<tr><th>Starts / Stops</th><td>{{.Pump.Counts.On}} / {{.Pump.Counts.Off}}</td></tr>
</table>
{{if .Controls}}
<p>
<form method="post" action="/override"><input type="hidden" name="override" value="true"><input type="hidden" name="state" value="ON"><button>Force ON</button></form>
<form method="post" action="/override"><input type="hidden" name="override" value="true"><input type="hidden" name="state" value="OFF"><button>Force OFF</button></form>
<form method="post" action="/override"><input type="hidden" name="override" value="false"><button>Automatic</button></form>
</p>
{{end}}
<h2>Probes</h2>
<table>
<tr><th>Low</th><td>{{level .Probes.Low.Asserted}}</td></tr>
<tr><th>High</th><td>{{level .Probes.High.Asserted}}</td></tr>
<tr><th>Wall clock</th><td>{{if .WallClockValid}}synced{{else}}not synced{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.Threshold}} of {{.Config.Samples}} samples, {{.Config.SampleIntervalMs}}ms apart</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>GPIO</th><td>{{.Config.GPIO}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, controls bool) error {
	// Snapshot has an Uptime method but the template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Controls bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Controls: controls,
	}
	return indexTmpl.Execute(w, data)
}
