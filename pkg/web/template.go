package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/itohio/microclimate/pkg/state"
)

var pageTmpl = template.Must(template.New("page").Funcs(template.FuncMap{
	"fixed": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
	"onoff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
}).Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Microclimate Controller</title>
<style>
body { font-family: sans-serif; max-width: 640px; margin: 1em auto; padding: 0 1em; background: #f5f5f5; }
h1 { font-size: 1.4em; }
.card { background: #fff; border-radius: 6px; padding: 1em; margin: 1em 0; box-shadow: 0 1px 3px rgba(0,0,0,.15); }
.value { font-size: 2em; font-weight: bold; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.alarm { color: red; font-weight: bold; }
table { border-collapse: collapse; width: 100%; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
button { padding: 6px 12px; margin: 2px; }
input { width: 5em; }
footer { color: #666; font-size: .9em; }
</style>
</head>
<body>
<h1>Microclimate Controller</h1>

<div class="card">
<h2>Current</h2>
<div>Temperature: <span class="value" id="temp">{{fixed .Status.Reading.Temperature}}</span> &deg;C</div>
<div>Humidity: <span class="value" id="hum">{{fixed .Status.Reading.Humidity}}</span> %</div>
<div>Heating: <span id="heating" class="{{if .Status.HeatingActive}}on{{else}}off{{end}}">{{onoff .Status.HeatingActive}}</span></div>
<div>Humidification: <span id="humidification" class="{{if .Status.HumidificationActive}}on{{else}}off{{end}}">{{onoff .Status.HumidificationActive}}</span></div>
{{if .Status.HumidifierAlarm}}<div class="alarm">Humidifier alarm</div>{{end}}
{{if .Status.HumidifierService}}<div class="alarm">Humidifier needs service</div>{{end}}
</div>

<div class="card">
<h2>Control</h2>
<div>Mode: <b id="mode">{{if .Status.Settings.AutoMode}}automatic{{else}}manual{{end}}</b>
<button onclick="send('/control?mode=1')">Auto</button>
<button onclick="send('/control?mode=0')">Manual</button></div>
<div>Heating: {{onoff .Status.Settings.HeatingEnabled}}
<button onclick="send('/control?heating=1')">On</button>
<button onclick="send('/control?heating=0')">Off</button></div>
<div>Humidification: {{onoff .Status.Settings.HumidificationEnabled}}
<button onclick="send('/control?humidification=1')">On</button>
<button onclick="send('/control?humidification=0')">Off</button></div>
</div>

<div class="card">
<h2>Settings</h2>
<div>Temperature setpoint: <input id="heat_setpoint" type="number" step="0.1" value="{{fixed .Status.Settings.TemperatureSetpoint}}"> &deg;C
<button onclick="send('/settings?heat_setpoint=' + document.getElementById('heat_setpoint').value)">Save</button></div>
<div>Humidity setpoint: <input id="hum_setpoint" type="number" step="0.1" value="{{fixed .Status.Settings.HumiditySetpoint}}"> %
<button onclick="send('/settings?hum_setpoint=' + document.getElementById('hum_setpoint').value)">Save</button></div>
</div>

<div class="card">
<h2>History</h2>
<table>
<tr><th>Time</th><th>Temperature</th><th>Humidity</th></tr>
{{range .History}}<tr><td>{{.Timestamp}}</td><td>{{fixed .Temperature}}&deg;C</td><td>{{fixed .Humidity}}%</td></tr>
{{else}}<tr><td colspan="3">No records yet</td></tr>
{{end}}</table>
</div>

<footer>
<div>{{.Now.Format "2006-01-02 15:04:05"}}</div>
<div>Wi-Fi: <span id="wifi">{{if .Status.Connected}}connected{{else}}disconnected{{end}}</span></div>
</footer>

<script>
function send(url) {
  fetch(url).then(function() { setTimeout(function() { location.reload(); }, 1500); });
}
function refresh() {
  fetch('/data').then(function(r) { return r.json(); }).then(function(d) {
    document.getElementById('temp').textContent = d.temp.toFixed(1);
    document.getElementById('hum').textContent = d.hum.toFixed(1);
    document.getElementById('heating').textContent = d.heating_active ? 'ON' : 'OFF';
    document.getElementById('humidification').textContent = d.humidification_active ? 'ON' : 'OFF';
    document.getElementById('mode').textContent = d.auto_mode ? 'automatic' : 'manual';
    document.getElementById('wifi').textContent = d.wifi ? 'connected' : 'disconnected';
  }).catch(function() {});
}
setInterval(refresh, 3000);
</script>
</body>
</html>
`

type pageData struct {
	Status  state.Status
	History []historyRow
	Now     time.Time
}

type historyRow struct {
	Timestamp   string
	Temperature float64
	Humidity    float64
}

func renderPage(w io.Writer, st state.Status, history []historyRow, now time.Time) error {
	return pageTmpl.Execute(w, pageData{Status: st, History: history, Now: now})
}
