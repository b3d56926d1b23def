package main

import (
	"context"
	"encoding/json"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/attention-sensor/internal/attention"
	"github.com/sweeney/attention-sensor/internal/engagement"
	"github.com/sweeney/attention-sensor/internal/mqtt"
	"github.com/sweeney/attention-sensor/internal/status"
	"github.com/sweeney/attention-sensor/internal/store"
)

// counters reports simulator tick and observer-failure totals.
type counters interface {
	Ticks() int64
	ObserverErrors() int64
}

// loop consumes samples handed off by the simulator observer, publishes them,
// and turns score changes into debounced engagement events.
type loop struct {
	samples    <-chan attention.Sample
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	counters   counters
	events     *store.Store
	userID     string
	debounce   time.Duration
	heartbeat  time.Duration
	thresholds engagement.Thresholds
	now        func() time.Time
	logger     *zap.Logger
}

func (l *loop) run(ctx context.Context, sig <-chan os.Signal) error {
	detector := engagement.NewDetector(l.debounce, l.thresholds, l.now())

	for {
		select {
		case s := <-sig:
			l.logger.Info("shutting down", zap.Stringer("signal", s))
			l.shutdown(signalName(s))
			return nil

		case <-ctx.Done():
			l.shutdown("CANCELLED")
			return nil

		case sample := <-l.samples:
			l.handle(detector, sample)
		}
	}
}

func (l *loop) handle(detector *engagement.Detector, sample attention.Sample) {
	if err := l.publisher.PublishSample(sample); err != nil {
		l.logger.Debug("sample publish error", zap.Error(err))
	}

	events := detector.Process(engagement.Input{Score: sample.Score, Time: sample.Timestamp})
	for _, event := range events {
		l.logger.Info("engagement event",
			zap.String("type", string(event.Type)),
			zap.Float64("score", event.Score))
		if err := l.publisher.Publish(event); err != nil {
			// Don't crash on publish failure
			l.logger.Warn("publish error", zap.Error(err))
		}
		l.record(event)
	}

	l.refresh(detector, sample)

	if hb := detector.CheckHeartbeat(sample.Timestamp, l.heartbeat); hb != nil {
		l.logger.Info("heartbeat",
			zap.Duration("uptime", hb.Uptime),
			zap.Int("disengaged", hb.Counts.Disengaged),
			zap.Int("reengaged", hb.Counts.Reengaged))

		snap := l.tracker.Snapshot()
		err := l.publisher.PublishSystem(mqtt.SystemEvent{
			Timestamp:  hb.Timestamp,
			Event:      "HEARTBEAT",
			RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
		})
		if err != nil {
			l.logger.Warn("heartbeat publish error", zap.Error(err))
		}
	}
}

// record keeps the transition in the event store so the HTTP API can list it.
func (l *loop) record(event engagement.Event) {
	data, err := json.Marshal(mqtt.EventData{State: string(event.State), Score: event.Score})
	if err != nil {
		l.logger.Warn("event not recorded", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}
	l.events.Append(store.Record{
		UserID:    l.userID,
		Type:      string(event.Type),
		Data:      data,
		Timestamp: event.Timestamp,
	})
}

// refresh updates the status tracker for HTTP consumers.
func (l *loop) refresh(detector *engagement.Detector, sample attention.Sample) {
	l.tracker.UpdateSample(sample, l.counters.Ticks(), l.counters.ObserverErrors())
	l.tracker.UpdateEngagement(detector.CurrentState(), detector.IsBaselined(), detector.Counts())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) shutdown(reason string) {
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
	snap := l.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      "SHUTDOWN",
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", reason),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.logger.Warn("failed to publish shutdown event", zap.Error(err))
		return
	}
	l.logger.Info("published shutdown event")
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
