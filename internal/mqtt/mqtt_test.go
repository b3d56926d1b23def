package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/attention-sensor/internal/attention"
	"github.com/sweeney/attention-sensor/internal/engagement"
)

var testID = Identity{UserID: "learner-7", SessionID: "0b6f3c2e-1111-2222-3333-444455556666"}

func testSample() attention.Sample {
	return attention.Sample{
		Score:          0.62,
		FocusStability: 0.9955,
		CognitiveLoad:  0.5,
		Gaze:           attention.Point{X: 50, Y: 75},
		Timestamp:      time.Date(2026, 2, 2, 22, 18, 12, 500000000, time.UTC),
		Status:         attention.StatusTracking,
	}
}

func TestFormatSample(t *testing.T) {
	payload, err := FormatSample(testID, testSample())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed struct {
		Record
		Data SampleData `json:"data"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.UserID != "learner-7" {
		t.Errorf("user_id: got %q", parsed.UserID)
	}
	if parsed.Type != TypeSample {
		t.Errorf("type: got %q, want %q", parsed.Type, TypeSample)
	}
	if parsed.Timestamp != "2026-02-02T22:18:12.5Z" {
		t.Errorf("timestamp: got %q", parsed.Timestamp)
	}
	if parsed.Data.Score != 0.62 {
		t.Errorf("score: got %v", parsed.Data.Score)
	}
	if parsed.Data.GazeX != 50 || parsed.Data.GazeY != 75 {
		t.Errorf("gaze: got (%v, %v)", parsed.Data.GazeX, parsed.Data.GazeY)
	}
	if parsed.Data.Status != "tracking" {
		t.Errorf("status: got %q", parsed.Data.Status)
	}
}

func TestFormatEventExactJSON(t *testing.T) {
	event := engagement.Event{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Type:      engagement.EventDisengaged,
		State:     engagement.StateDisengaged,
		Score:     0.25,
	}

	payload, err := FormatEvent(Identity{UserID: "u1"}, event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"user_id":"u1","type":"DISENGAGED","data":{"state":"DISENGAGED","score":0.25},"timestamp":"2026-02-03T10:30:45Z"}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatEventAllTypes(t *testing.T) {
	tests := []struct {
		eventType engagement.EventType
		state     engagement.State
		wantType  string
	}{
		{engagement.EventDisengaged, engagement.StateDisengaged, "DISENGAGED"},
		{engagement.EventReengaged, engagement.StateEngaged, "REENGAGED"},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			payload, err := FormatEvent(testID, engagement.Event{Timestamp: time.Now(), Type: tt.eventType, State: tt.state})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var parsed struct {
				Type string    `json:"type"`
				Data EventData `json:"data"`
			}
			if err := json.Unmarshal(payload, &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if parsed.Type != tt.wantType {
				t.Errorf("type: got %s, want %s", parsed.Type, tt.wantType)
			}
			if parsed.Data.State != string(tt.state) {
				t.Errorf("state: got %s, want %s", parsed.Data.State, tt.state)
			}
		})
	}
}

func TestFormatTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	event := engagement.Event{
		Timestamp: time.Date(2026, 2, 3, 12, 0, 0, 0, loc),
		Type:      engagement.EventReengaged,
		State:     engagement.StateEngaged,
	}

	payload, _ := FormatEvent(testID, event)
	var parsed Record
	json.Unmarshal(payload, &parsed)
	if parsed.Timestamp != "2026-02-03T10:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Timestamp)
	}
}

func TestTopics(t *testing.T) {
	want := map[string]string{
		"samples": "learning/attention/samples",
		"events":  "learning/attention/events",
		"system":  "learning/attention/system",
	}
	got := map[string]string{
		"samples": TopicSamples,
		"events":  TopicEvents,
		"system":  TopicSystem,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s topic: got %s, want %s", k, got[k], v)
		}
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	})

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestClientID(t *testing.T) {
	if got := clientID(testID); got != "attention-sensor-0b6f3c2e" {
		t.Errorf("clientID: got %q", got)
	}
	if got := clientID(Identity{}); got != "attention-sensor" {
		t.Errorf("clientID without session: got %q", got)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	f.Identity = testID

	if err := f.PublishSample(testSample()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.Publish(engagement.Event{Type: engagement.EventDisengaged, State: engagement.StateDisengaged}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "HEARTBEAT", Timestamp: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.SampleCount() != 1 || len(f.SamplePayloads) != 1 {
		t.Errorf("expected 1 sample, got %d", f.SampleCount())
	}
	if len(f.EventsSnapshot()) != 1 || len(f.Payloads) != 1 {
		t.Errorf("expected 1 event, got %d", len(f.Events))
	}
	if len(f.SystemEventsSnapshot()) != 1 || len(f.SystemPayloads) != 1 {
		t.Errorf("expected 1 system event, got %d", len(f.SystemEvents))
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	if err := f.PublishSample(testSample()); err == nil {
		t.Error("expected sample publish error")
	}
	if err := f.Publish(engagement.Event{}); err == nil {
		t.Error("expected event publish error")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected system publish error")
	}
	if f.SampleCount() != 0 || len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes must not be recorded")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.PublishSample(testSample())
	f.Publish(engagement.Event{})
	f.Close()
	f.Connected = true
	f.PublishError = errors.New("x")

	f.Reset()

	if f.SampleCount() != 0 || len(f.Events) != 0 {
		t.Error("expected records cleared")
	}
	if f.Closed || f.Connected || f.PublishError != nil {
		t.Error("expected flags cleared")
	}
}

func TestFakePublisherRecordsRetainedFlag(t *testing.T) {
	f := NewFakePublisher()
	f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true, Timestamp: time.Now()})

	if !f.SystemEventsSnapshot()[0].Retained {
		t.Error("expected Retained flag to be recorded")
	}
}
