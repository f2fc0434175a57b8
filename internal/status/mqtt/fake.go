package mqtt

import "sync"

// Message is one publish seen by FakePublisher.
type Message struct {
	Topic    string
	Retained bool
	Payload  []byte
}

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Messages contains everything published, in order.
	Messages []Message

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the message.
func (f *FakePublisher) Publish(topic string, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}

	f.Messages = append(f.Messages, Message{Topic: topic, Retained: retained, Payload: payload})

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()

	return nil
}

// Snapshot returns a copy of the recorded messages.
func (f *FakePublisher) Snapshot() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]Message(nil), f.Messages...)
}
