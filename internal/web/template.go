package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/attention-sensor/internal/status"
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
	"pct": func(v float64) string {
		return fmt.Sprintf("%.0f%%", v*100)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Attention Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.engaged { color: green; font-weight: bold; }
.disengaged { color: red; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Attention Sensor<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Attention</h2>
<table>
<tr><th>Tracking</th><td id="tracking">{{.Sample.Status}}</td></tr>
<tr><th>Score</th><td id="score">{{pct .Sample.Score}}</td></tr>
<tr><th>Focus stability</th><td id="stability">{{pct .Sample.FocusStability}}</td></tr>
<tr><th>Cognitive load</th><td id="load">{{pct .Sample.CognitiveLoad}}</td></tr>
<tr><th>Gaze</th><td id="gaze">{{printf "%.0f, %.0f" .Sample.Gaze.X .Sample.Gaze.Y}}</td></tr>
<tr><th>Engagement</th><td class="{{if eq (stateOrUnknown (printf "%s" .Engagement)) "ENGAGED"}}engaged{{else if eq (stateOrUnknown (printf "%s" .Engagement)) "DISENGAGED"}}disengaged{{else}}unknown{{end}}">{{stateOrUnknown (printf "%s" .Engagement)}}</td></tr>
<tr><th>Ready</th><td>{{if .Baselined}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Capture</th><td>{{.Config.Capture}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Disengaged</th><td>{{.Counts.Disengaged}}</td></tr>
<tr><th>Re-engaged</th><td>{{.Counts.Reengaged}}</td></tr>
<tr><th>Ticks</th><td>{{.Ticks}}</td></tr>
<tr><th>Observer errors</th><td>{{.ObserverErrors}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{if .SessionID}}<tr><th>Session</th><td>{{.SessionID}}</td></tr>{{end}}
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>History</th><td>{{.Config.HistorySize}} samples</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/api/sample">Sample</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function pct(v) { return Math.round(v * 100) + "%"; }
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
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
        var s = JSON.parse(ev.data);
        document.getElementById("tracking").textContent = s.status;
        document.getElementById("score").textContent = pct(s.score);
        document.getElementById("stability").textContent = pct(s.focusStability);
        document.getElementById("load").textContent = pct(s.cognitiveLoad);
        document.getElementById("gaze").textContent = Math.round(s.gazePoint.x) + ", " + Math.round(s.gazePoint.y);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
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
