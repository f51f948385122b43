package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/oualline/orange-empire/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
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
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"clock": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("15:04:05")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Signal Garden</title>
<style>
body { font-family: monospace; max-width: 700px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.rest { color: #888; }
.busy { color: green; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.lownoise { color: orange; font-weight: bold; }
</style>
</head>
<body>
<h1>Signal Garden</h1>

<h2>Mode</h2>
<table>
<tr><th>Mode</th><td class="{{if eq .Mode.String "LOW_NOISE"}}lownoise{{end}}">{{.Mode}}</td></tr>
<tr><th>Noise run requested</th><td>{{if .NoiseActive}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Signals</h2>
<table>
<tr><th>Handler</th><th>State</th><th>Since</th><th>Presses</th><th>Runs</th></tr>
{{range .Handlers}}<tr><td>{{.ID}}</td><td class="{{if eq (stateOrUnknown (printf "%s" .State)) "REST"}}rest{{else if eq (stateOrUnknown (printf "%s" .State)) "UNKNOWN"}}unknown{{else}}busy{{end}}">{{stateOrUnknown (printf "%s" .State)}}</td><td>{{clock .Since}}</td><td>{{.Presses}}</td><td>{{.Runs}}</td></tr>
{{end}}</table>

<h2>Relays</h2>
<table>
<tr><th>#</th><th>Relay</th><th>State</th><th>Last set by</th><th>At</th></tr>
{{range .Relays}}<tr><td>{{printf "%d" .Relay}}</td><td>{{.Relay.Label}}</td>{{if .Changed.IsZero}}<td class="unknown">UNKNOWN</td>{{else}}<td class="{{if eq .State.String "On"}}on{{else}}off{{end}}">{{.State}}</td>{{end}}<td>{{.Actor}}</td><td>{{clock .Changed}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Relay board</th><td>{{.Config.Device}}{{if .Firmware}} (firmware {{.Firmware}}){{end}}</td></tr>
<tr><th>Control socket</th><td>{{.Config.Socket}}</td></tr>
<tr><th>Button pipe</th><td>{{.Config.Pipe}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
