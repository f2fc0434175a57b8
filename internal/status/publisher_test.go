package status

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPublisher_KeepsQueueOrderWithSlowObserver lets a second producer queue
// while the first delivery is blocked; both arrive in queue order.
func TestPublisher_KeepsQueueOrderWithSlowObserver(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	p := NewPublisher(ObserverFunc(func(ev Event) {
		if ev.Kind == KindConnected {
			close(held)
			<-release
		}

		rec.Notify(ev)
	}))

	go func() {
		defer close(done)

		p.Queue(Event{Kind: KindConnected})
		p.Flush()
	}()

	<-held

	// Delivered by the blocked flush, not by this one.
	p.Queue(Event{Kind: KindDisconnected})
	p.Flush()
	require.Empty(t, rec.events)

	close(release)
	<-done

	require.Len(t, rec.events, 2)
	require.Equal(t, KindConnected, rec.events[0].Kind)
	require.Equal(t, KindDisconnected, rec.events[1].Kind)
}

// TestPublisher_NestedNotifyIsQueued delivers events published from inside an
// observer after the current one.
func TestPublisher_NestedNotifyIsQueued(t *testing.T) {
	t.Parallel()

	var (
		p     *Publisher
		order []Kind
	)

	p = NewPublisher(ObserverFunc(func(ev Event) {
		order = append(order, ev.Kind)

		if ev.Kind == KindFired {
			p.Notify(Event{Kind: KindAttempted})
			order = append(order, "returned")
		}
	}))

	p.Notify(Event{Kind: KindFired})

	require.Equal(t, []Kind{KindFired, "returned", KindAttempted}, order)
}

// TestPublisherFor reuses an existing publisher and never returns nil.
func TestPublisherFor(t *testing.T) {
	t.Parallel()

	p := NewPublisher(nil)
	require.Same(t, p, PublisherFor(p))

	wrapped := PublisherFor(nil)
	require.NotNil(t, wrapped)
	wrapped.Notify(Event{Kind: KindSent})
}
