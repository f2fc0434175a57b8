package mqtt

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/mgarridoch/breakfast-alarm/internal/logger"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
)

// sinkBuffer is how many events may wait for the broker.
const sinkBuffer = 64

// Sink is a status.Observer publishing events from its own goroutine, so a
// slow broker never stalls the link or the scheduler.
type Sink struct {
	pub         Publisher
	statusTopic string
	stateTopic  string
	events      chan status.Event
	dropped     atomic.Uint64
}

// NewSink creates a sink publishing under prefix.
func NewSink(pub Publisher, prefix string) *Sink {
	prefix = strings.TrimSuffix(prefix, "/")

	return &Sink{
		pub:         pub,
		statusTopic: prefix + "/" + TopicStatus,
		stateTopic:  prefix + "/" + TopicState,
		events:      make(chan status.Event, sinkBuffer),
	}
}

// StateTopic returns the retained state topic.
func (s *Sink) StateTopic() string {
	return s.stateTopic
}

// Notify implements status.Observer. Events are dropped while the queue is full.
func (s *Sink) Notify(ev status.Event) {
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns how many events were dropped.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Run publishes queued events until ctx is done, then closes the publisher.
func (s *Sink) Run(ctx context.Context) {
	ctx = logger.WithName(ctx, "mqtt")

	defer func() {
		if err := s.pub.Close(); err != nil {
			logger.WarnKV(ctx, "MQTT close failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.publish(ctx, ev)
		}
	}
}

func (s *Sink) publish(ctx context.Context, ev status.Event) {
	payload, err := FormatPayload(ev)
	if err == nil {
		err = s.pub.Publish(s.statusTopic, false, payload)
	}

	if err != nil {
		logger.WarnKV(ctx, "MQTT publish failed", "topic", s.statusTopic, "error", err)
	}

	if !isConnectionEvent(ev) {
		return
	}

	payload, err = FormatStatePayload(ev)
	if err == nil {
		err = s.pub.Publish(s.stateTopic, true, payload)
	}

	if err != nil {
		logger.WarnKV(ctx, "MQTT publish failed", "topic", s.stateTopic, "error", err)
	}
}
