package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/pins"
	"github.com/sweeney/shuttle-console/internal/status"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Shuttle Console</title>
<style>
body { font-family: monospace; max-width: 760px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.pins td { width: 1.4em; text-align: center; padding: 2px; }
.lo { background: #2a2; color: #fff; }
.hi { color: #888; }
.na { color: #ccc; }
.connected { color: green; }
.disconnected { color: red; }
#log { height: 12em; overflow-y: scroll; border: 1px solid #ddd; padding: 4px; white-space: pre; }
</style>
</head>
<body>
<h1>Shuttle Console{{if not .Ready}} (starting){{end}}</h1>

<h2>Digital</h2>
<table class="pins">
{{range .Rows}}<tr>{{range .}}<td id="d{{.Addr}}" title="{{.Addr}}" class="{{.Class}}">{{.Addr}}</td>{{end}}</tr>
{{end}}</table>

<h2>Analog</h2>
<table>
{{range .AnalogRows}}<tr><th>{{.Addr}}</th><td id="a{{.Addr}}">{{.Value}}</td></tr>
{{end}}</table>

{{if .Encoders}}<h2>Encoders</h2>
<table>
{{range $pin, $pos := .Encoders}}<tr><th>pins {{$pin}}</th><td>{{$pos}}</td></tr>
{{end}}</table>{{end}}

<h2>Event Counts</h2>
<table>
{{range .Kinds}}<tr><th>{{.}}</th><td>{{index $.Counts .}}</td></tr>
{{else}}<tr><td>none yet</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Dropped</th><td>{{.MQTTDropped}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sample</th><td>{{.Config.SampleMs}}ms</td></tr>
<tr><th>Passes</th><td>{{.Pins.Passes}} (last {{.Pins.LastPass}})</td></tr>
<tr><th>Read failures</th><td>{{.Pins.ReadFailures}}</td></tr>
<tr><th>Listener faults</th><td>{{.Bus.ListenerFaults}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Mode</th><td>{{if .Config.Sim}}simulated{{else}}{{.Config.I2C}}{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Live}}
<h2>Live</h2>
<div id="log"></div>
<script>
(function() {
  var log = document.getElementById("log");
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/events");
  ws.onmessage = function(m) {
    try {
      var ev = JSON.parse(m.data);
      if (ev.kind === "DigitalChange") {
        var el = document.getElementById("d" + ev.address);
        if (el) { el.className = ev.data.value ? "hi" : "lo"; }
      } else if (ev.kind === "AnalogChange") {
        var a = document.getElementById("a" + ev.address);
        if (a) { a.textContent = ev.data.value; }
      }
      log.textContent = ev.key + " " + JSON.stringify(ev.data || "") + "\n" + log.textContent.slice(0, 4000);
    } catch (e) {}
  };
})();
</script>
{{end}}
</body>
</html>
`

type pinCell struct {
	Addr  int
	Class string
}

type analogRow struct {
	Addr  int
	Value string
}

func renderHTML(w io.Writer, snap status.Snapshot, live bool) {
	rows := make([][]pinCell, 0, pins.MaxDigital/16)
	for base := 1; base <= pins.MaxDigital; base += 16 {
		row := make([]pinCell, 0, 16)
		for addr := base; addr < base+16; addr++ {
			cls := "na"
			if v, ok := snap.Digital[addr]; ok {
				cls = "hi"
				if !v {
					cls = "lo"
				}
			}
			row = append(row, pinCell{Addr: addr, Class: cls})
		}
		rows = append(rows, row)
	}
	var analog []analogRow
	for _, addr := range pins.AnalogAddresses {
		val := "-"
		if v, ok := snap.Analog[addr]; ok {
			val = fmt.Sprint(v)
		}
		analog = append(analog, analogRow{Addr: addr, Value: val})
	}

	// Snapshot has Uptime() and Kinds() methods but the template needs fields.
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		Kinds      []event.Kind
		Rows       [][]pinCell
		AnalogRows []analogRow
		Live       bool
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		Rows:       rows,
		AnalogRows: analog,
		Kinds:      snap.Kinds(),
		Live:       live,
	}
	indexTmpl.Execute(w, data)
}
