package mqtt

import (
	"sync"

	"github.com/sweeney/attention-sensor/internal/attention"
	"github.com/sweeney/attention-sensor/internal/engagement"
)

// FakePublisher records published records for test assertions.
// Safe for concurrent use so tests can read while a run loop publishes.
type FakePublisher struct {
	mu sync.Mutex

	// Identity is stamped on formatted payloads.
	Identity Identity

	Samples        []attention.Sample
	SamplePayloads [][]byte

	Events   []engagement.Event
	Payloads [][]byte

	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// PublishError, if set, is returned by PublishSample and Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishSample records the sample.
func (f *FakePublisher) PublishSample(sample attention.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatSample(f.Identity, sample)
	if err != nil {
		return err
	}
	f.Samples = append(f.Samples, sample)
	f.SamplePayloads = append(f.SamplePayloads, payload)
	return nil
}

// Publish records the engagement event.
func (f *FakePublisher) Publish(event engagement.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatEvent(f.Identity, event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// SampleCount returns the number of samples published so far.
func (f *FakePublisher) SampleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Samples)
}

// EventsSnapshot returns a copy of the published engagement events.
func (f *FakePublisher) EventsSnapshot() []engagement.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engagement.Event(nil), f.Events...)
}

// SystemEventsSnapshot returns a copy of the published system events.
func (f *FakePublisher) SystemEventsSnapshot() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.SystemEvents...)
}

// Reset clears recorded records and scripted errors.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Samples = nil
	f.SamplePayloads = nil
	f.Events = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
