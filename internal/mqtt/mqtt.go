// Package mqtt publishes attention samples and engagement events to an MQTT
// broker, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/attention-sensor/internal/attention"
	"github.com/sweeney/attention-sensor/internal/engagement"
)

// Topics for published records.
const (
	TopicSamples = "learning/attention/samples"
	TopicEvents  = "learning/attention/events"
	TopicSystem  = "learning/attention/system"
)

// Record types carried in the envelope.
const (
	TypeSample = "attention_sample"
)

// Publisher publishes records to MQTT.
type Publisher interface {
	// PublishSample sends one attention sample (QoS 0).
	// Returns error if publishing fails (should not crash the process).
	PublishSample(sample attention.Sample) error

	// Publish sends an engagement transition event.
	Publish(event engagement.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Identity is stamped on every sample and event record.
type Identity struct {
	UserID    string
	SessionID string
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Record is the envelope for sample and event payloads.
type Record struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// SampleData is the data of an attention_sample record.
type SampleData struct {
	Score          float64 `json:"score"`
	FocusStability float64 `json:"focus_stability"`
	CognitiveLoad  float64 `json:"cognitive_load"`
	GazeX          float64 `json:"gaze_x"`
	GazeY          float64 `json:"gaze_y"`
	Status         string  `json:"status"`
}

// EventData is the data of an engagement transition record.
type EventData struct {
	State string  `json:"state"`
	Score float64 `json:"score"`
}

// FormatSample creates the JSON payload for an attention sample.
func FormatSample(id Identity, s attention.Sample) ([]byte, error) {
	return json.Marshal(Record{
		UserID:    id.UserID,
		SessionID: id.SessionID,
		Type:      TypeSample,
		Data: SampleData{
			Score:          s.Score,
			FocusStability: s.FocusStability,
			CognitiveLoad:  s.CognitiveLoad,
			GazeX:          s.Gaze.X,
			GazeY:          s.Gaze.Y,
			Status:         string(s.Status),
		},
		Timestamp: s.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

// FormatEvent creates the JSON payload for an engagement event.
func FormatEvent(id Identity, e engagement.Event) ([]byte, error) {
	return json.Marshal(Record{
		UserID:    id.UserID,
		SessionID: id.SessionID,
		Type:      string(e.Type),
		Data: EventData{
			State: string(e.State),
			Score: e.Score,
		},
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
