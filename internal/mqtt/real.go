package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/attention-sensor/internal/attention"
	"github.com/sweeney/attention-sensor/internal/engagement"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	outboxLimit    = 500
)

// RealPublisher publishes to an actual MQTT broker. While the connection is
// down, publishes are queued in an outbox and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	id     Identity
	logger *zap.Logger

	mu  sync.Mutex
	box *outbox
}

// NewRealPublisher creates a publisher for the given broker. If the broker
// is not reachable within the connect timeout the publisher is still
// returned; paho keeps retrying in the background and publishes are queued.
func NewRealPublisher(broker string, id Identity, logger *zap.Logger) (*RealPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &RealPublisher{
		id:     id,
		logger: logger,
		box:    newOutbox(outboxLimit),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID(id)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logger.Warn("mqtt broker not reachable yet, queueing publishes", zap.String("broker", broker))
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func clientID(id Identity) string {
	suffix := id.SessionID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	if suffix == "" {
		return "attention-sensor"
	}
	return "attention-sensor-" + suffix
}

// onConnect replays queued messages. Runs on a paho goroutine.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	msgs, dropped := p.box.flush()
	p.mu.Unlock()

	for _, m := range msgs {
		// Fire and forget; waiting here would stall paho's connect handler.
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
	p.logger.Info("mqtt connected", zap.Int("replayed", len(msgs)), zap.Int("dropped", dropped))
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		first := p.box.add(pendingMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		if first {
			p.logger.Warn("mqtt outbox full, dropping oldest", zap.Int("limit", outboxLimit))
		}
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// PublishSample sends an attention sample (QoS 0, not retained).
func (p *RealPublisher) PublishSample(sample attention.Sample) error {
	payload, err := FormatSample(p.id, sample)
	if err != nil {
		return fmt.Errorf("format sample: %w", err)
	}
	return p.send(TopicSamples, 0, false, payload)
}

// Publish sends an engagement transition (QoS 1, not retained).
func (p *RealPublisher) Publish(event engagement.Event) error {
	payload, err := FormatEvent(p.id, event)
	if err != nil {
		return fmt.Errorf("format event: %w", err)
	}
	return p.send(TopicEvents, 1, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) so lifecycle events survive a flaky link.
	return p.send(TopicSystem, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is currently open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second quiesce
	return nil
}
