package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string     `json:"event,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	Tracking       string     `json:"tracking"`
	Engagement     string     `json:"engagement"`
	Ready          bool       `json:"ready"`
	Sample         SampleJSON `json:"sample"`
	Ticks          int64      `json:"ticks"`
	ObserverErrors int64      `json:"observer_errors"`
	UptimeSeconds  int64      `json:"uptime_seconds"`
	StartTime      string     `json:"start_time"`
	Timestamp      string     `json:"timestamp"`
	UserID         string     `json:"user_id,omitempty"`
	SessionID      string     `json:"session_id,omitempty"`
	MQTT           MQTTStatus `json:"mqtt"`
	Counts         CountsJSON `json:"event_counts"`
	Config         ConfigJSON `json:"config"`
}

// SampleJSON is the JSON representation of the latest attention sample.
type SampleJSON struct {
	Score          float64 `json:"score"`
	FocusStability float64 `json:"focus_stability"`
	CognitiveLoad  float64 `json:"cognitive_load"`
	GazeX          float64 `json:"gaze_x"`
	GazeY          float64 `json:"gaze_y"`
	Timestamp      string  `json:"timestamp,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of engagement event counts.
type CountsJSON struct {
	Disengaged int `json:"disengaged"`
	Reengaged  int `json:"reengaged"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	IntervalMs  int64  `json:"interval_ms"`
	HistorySize int    `json:"history_size"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	Capture     string `json:"capture"`
}

func buildInner(snap Snapshot) StatusInner {
	tracking := string(snap.Sample.Status)
	if tracking == "" {
		tracking = "inactive"
	}
	eng := string(snap.Engagement)
	if eng == "" {
		eng = "UNKNOWN"
	}

	sample := SampleJSON{
		Score:          snap.Sample.Score,
		FocusStability: snap.Sample.FocusStability,
		CognitiveLoad:  snap.Sample.CognitiveLoad,
		GazeX:          snap.Sample.Gaze.X,
		GazeY:          snap.Sample.Gaze.Y,
	}
	if !snap.Sample.Timestamp.IsZero() {
		sample.Timestamp = snap.Sample.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	return StatusInner{
		Tracking:       tracking,
		Engagement:     eng,
		Ready:          snap.Baselined,
		Sample:         sample,
		Ticks:          snap.Ticks,
		ObserverErrors: snap.ObserverErrors,
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		UserID:         snap.UserID,
		SessionID:      snap.SessionID,
		MQTT:           MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Disengaged: snap.Counts.Disengaged,
			Reengaged:  snap.Counts.Reengaged,
		},
		Config: ConfigJSON{
			IntervalMs:  snap.Config.IntervalMs,
			HistorySize: snap.Config.HistorySize,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			Capture:     snap.Config.Capture,
		},
	}
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
