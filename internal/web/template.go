package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/pothole-guard/internal/logic"
	"github.com/sweeney/pothole-guard/internal/status"
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
	"meters": func(r logic.Reading[float64]) string {
		if !r.Valid {
			return "--"
		}
		return fmt.Sprintf("%.2f m", r.Value)
	},
	"reading": func(r logic.Reading[float64], format string) string {
		if !r.Valid {
			return "--"
		}
		return fmt.Sprintf(format, r.Value)
	},
	"orDash": func(s string) string {
		if s == "" || s == string(logic.DirectionNone) {
			return "--"
		}
		return s
	},
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Pothole Guard</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
img { width: 100%; background: #111; }
.clear { color: green; font-weight: bold; }
.caution { color: #d98e04; font-weight: bold; }
.danger { color: red; font-weight: bold; }
.unknown { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Pothole Guard<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<img src="/video" alt="camera">

<h2>Guidance</h2>
<table>
<tr><th>Distance</th><td id="distance" class="{{.Guidance.Level}}">{{meters .Distance.Reading}}</td></tr>
<tr><th>Level</th><td id="level" class="{{.Guidance.Level}}">{{.Guidance.Level}}</td></tr>
<tr><th>Direction</th><td id="direction">{{orDash (printf "%s" .Guidance.Direction)}}</td></tr>
<tr><th>Last cue</th><td id="last-audio">{{orDash (printf "%s" .Guidance.LastAudio)}}</td></tr>
<tr><th>Alerts</th><td id="alerts">{{.Guidance.Alerts}}</td></tr>
<tr><th>FPS</th><td id="fps">{{printf "%.1f" .Frames.FPS}}</td></tr>
</table>

<h2>Detector</h2>
<table>
<tr><th>Detection</th><td id="detect">{{if .DetectEnabled}}on{{else}}off{{end}}</td></tr>
<tr><th>Model</th><td>{{.Config.Model}}</td></tr>
<tr><th>Confidence</th><td>{{.Params.Conf}}</td></tr>
<tr><th>Input size</th><td>{{.Params.ImgSz}}</td></tr>
<tr><th>Every Nth frame</th><td>{{.Params.ProcessEveryN}}</td></tr>
</table>
<form method="post" action="/toggle"><button type="submit" id="toggle">Toggle detection</button></form>

<h2>Sensors</h2>
<table>
<tr><th>Ultrasonic</th><td>{{yesno .Distance.Ready}}</td></tr>
<tr><th>GPS</th><td>{{yesno .GPS.Ready}}{{if .GPS.Ready}} ({{if .GPS.Valid}}fix{{else}}no fix{{end}}){{end}}</td></tr>
{{if .GPS.HasPosition}}<tr><th>Position</th><td id="position">{{printf "%.6f" .GPS.Lat}}, {{printf "%.6f" .GPS.Lon}}</td></tr>{{end}}
{{if .GPS.HasSpeed}}<tr><th>Speed</th><td>{{printf "%.1f" .GPS.SpeedKmh}} km/h</td></tr>{{end}}
<tr><th>Heart rate</th><td id="bpm">{{yesno .HeartRate.Ready}}{{if .HeartRate.Ready}} ({{reading .HeartRate.BPM "%.0f bpm"}}, SpO2 {{reading .HeartRate.SpO2 "%.0f%%"}}){{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Camera</th><td>{{.Config.Camera}}</td></tr>
<tr><th>Thresholds</th><td>{{.Config.LeftThresh}} / {{.Config.RightThresh}}</td></tr>
<tr><th>Persistence</th><td>{{.Config.MinPersist}} frames</td></tr>
<tr><th>Warn</th><td>{{.Config.Warn1}} m / {{.Config.Warn2}} m</td></tr>
<tr><th>Cooldown</th><td>{{.Config.CooldownMs}}ms</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/snapshot">Snapshot</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }
  function text(id, v) {
    var el = document.getElementById(id);
    if (el) el.textContent = v;
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var j = JSON.parse(ev.data);
        text("distance", j.distance_m === null ? "--" : j.distance_m.toFixed(2) + " m");
        text("level", j.level);
        document.getElementById("distance").className = j.level;
        document.getElementById("level").className = j.level;
        text("direction", j.direction || "--");
        text("last-audio", j.last_audio || "--");
        text("alerts", j.alerts);
        text("fps", j.fps.toFixed(1));
        text("detect", j.detect_enabled ? "on" : "off");
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
