// Package status provides a thread-safe status tracker for the attention-sensor daemon.
// It is read by HTTP handlers and by MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/attention-sensor/internal/attention"
	"github.com/sweeney/attention-sensor/internal/engagement"
)

// Config contains daemon configuration for display.
type Config struct {
	IntervalMs  int64
	HistorySize int
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	Capture     string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Sample         attention.Sample
	Engagement     engagement.State
	Baselined      bool
	Counts         engagement.Counts
	Ticks          int64
	ObserverErrors int64
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	UserID         string
	SessionID      string
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Sample:    attention.Sample{Status: attention.StatusInactive},
		},
		now: time.Now,
	}
}

// SetIdentity records the learner and session the daemon reports for.
func (t *Tracker) SetIdentity(userID, sessionID string) {
	t.mu.Lock()
	t.snap.UserID = userID
	t.snap.SessionID = sessionID
	t.mu.Unlock()
}

// UpdateSample records the latest sample and simulator counters.
func (t *Tracker) UpdateSample(s attention.Sample, ticks, observerErrors int64) {
	t.mu.Lock()
	t.snap.Sample = s
	t.snap.Ticks = ticks
	t.snap.ObserverErrors = observerErrors
	t.mu.Unlock()
}

// UpdateEngagement sets the debounced engagement state and event counts.
func (t *Tracker) UpdateEngagement(state engagement.State, baselined bool, counts engagement.Counts) {
	t.mu.Lock()
	t.snap.Engagement = state
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
