package engagement

import "time"

// Detector tracks engagement and detects debounced transitions.
type Detector struct {
	debounce      time.Duration
	thresholds    Thresholds
	stable        State
	pending       State
	pendingSince  time.Time
	baselined     bool
	startTime     time.Time
	counts        Counts
	lastHeartbeat time.Time
}

// NewDetector creates a detector with the given debounce duration and band.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(debounce time.Duration, thresholds Thresholds, startTime time.Time) *Detector {
	return &Detector{
		debounce:      debounce,
		thresholds:    thresholds,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes a new score and returns any events that should be emitted.
// Events are only returned after baseline is established and on transitions.
func (d *Detector) Process(in Input) []Event {
	observed := d.classify(in.Score)

	if !d.baselined {
		d.processBaseline(observed, in.Time)
		return nil
	}

	if observed == d.stable {
		// Back to stable, drop any pending transition.
		d.pending = ""
		return nil
	}

	if d.pending != observed {
		d.pending = observed
		d.pendingSince = in.Time
		return nil
	}

	if in.Time.Sub(d.pendingSince) < d.debounce {
		return nil
	}

	d.stable = observed
	d.pending = ""

	event := Event{
		Timestamp: in.Time,
		Type:      eventTypeFor(observed),
		State:     observed,
		Score:     in.Score,
	}
	switch event.Type {
	case EventDisengaged:
		d.counts.Disengaged++
	case EventReengaged:
		d.counts.Reengaged++
	}
	return []Event{event}
}

func (d *Detector) processBaseline(observed State, now time.Time) {
	if d.pending != observed {
		// First reading, or the state changed during baseline: restart.
		d.pending = observed
		d.pendingSince = now
		return
	}
	if now.Sub(d.pendingSince) >= d.debounce {
		d.stable = observed
		d.baselined = true
		d.pending = ""
	}
}

// classify maps a score onto a state using the hysteresis band.
func (d *Detector) classify(score float64) State {
	switch {
	case score < d.thresholds.DisengageBelow:
		return StateDisengaged
	case score >= d.thresholds.ReengageAbove:
		return StateEngaged
	case d.baselined:
		return d.stable
	case d.pending != "":
		return d.pending
	default:
		return StateEngaged
	}
}

func eventTypeFor(to State) EventType {
	if to == StateDisengaged {
		return EventDisengaged
	}
	return EventReengaged
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns the current stable state ("" before baseline).
func (d *Detector) CurrentState() State {
	return d.stable
}

// Counts returns a copy of the event counters.
func (d *Detector) Counts() Counts {
	return d.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 || !d.baselined {
		return nil
	}
	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.counts,
	}
}
