// Package eventbus publishes diagnosis lifecycle events so observers (logging,
// future notification channels) stay decoupled from the worker.
package eventbus

import (
	evbus "github.com/asaskevich/EventBus"
)

// Topics.
const (
	TopicDiagnosisCompleted = "diagnosis.completed"
	TopicDiagnosisFailed    = "diagnosis.failed"
	TopicImageUploaded      = "image.uploaded"
)

// Bus wraps the underlying event bus with the topics this service uses.
type Bus struct {
	bus evbus.Bus
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{bus: evbus.New()}
}

// Publish emits an event to all subscribers of topic.
func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// Subscribe registers fn for topic. fn's signature must match the publish
// arguments.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// SubscribeAsync registers fn to run on its own goroutine per event.
func (b *Bus) SubscribeAsync(topic string, fn interface{}) error {
	return b.bus.SubscribeAsync(topic, fn, false)
}

// WaitAsync blocks until all async handlers have finished. Used in shutdown
// and tests.
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}
