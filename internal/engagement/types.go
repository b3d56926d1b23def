// Package engagement turns attention scores into debounced engagement
// transitions.
// This package has NO external dependencies (no MQTT, HTTP, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package engagement

import "time"

// State is the debounced engagement state of the learner.
type State string

const (
	StateEngaged    State = "ENGAGED"
	StateDisengaged State = "DISENGAGED"
)

// EventType represents a state transition event.
type EventType string

const (
	EventDisengaged EventType = "DISENGAGED"
	EventReengaged  EventType = "REENGAGED"
)

// Event represents a state transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     State
	Score     float64
}

// Thresholds is the hysteresis band. Scores below DisengageBelow read as
// disengaged, scores at or above ReengageAbove read as engaged, and scores in
// between keep the current state.
type Thresholds struct {
	DisengageBelow float64 `yaml:"disengage_below"`
	ReengageAbove  float64 `yaml:"reengage_above"`
}

// DefaultThresholds returns the stock hysteresis band.
func DefaultThresholds() Thresholds {
	return Thresholds{DisengageBelow: 0.3, ReengageAbove: 0.5}
}

// Input represents a single score reading.
type Input struct {
	Score float64
	Time  time.Time
}

// Counts tracks the number of each event type since startup.
type Counts struct {
	Disengaged int
	Reengaged  int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
