package status

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
)

// recorder is an Observer collecting every event it receives.
type recorder struct {
	events []Event
}

func (r *recorder) Notify(ev Event) {
	r.events = append(r.events, ev)
}

// TestBus_FansOutInAttachOrder checks observers and subscribers both receive events.
func TestBus_FansOutInAttachOrder(t *testing.T) {
	t.Parallel()

	var order []string

	first := ObserverFunc(func(Event) { order = append(order, "first") })
	second := ObserverFunc(func(Event) { order = append(order, "second") })

	bus := NewBus(first, nil, second)

	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Notify(Event{Kind: KindSent, Command: "STOP"})

	require.Equal(t, []string{"first", "second"}, order)

	got := <-ch
	require.Equal(t, KindSent, got.Kind)
	require.Equal(t, "STOP", got.Command)
}

// TestBus_FullSubscriberDropsEvents checks a slow subscriber never blocks the publisher.
func TestBus_FullSubscriberDropsEvents(t *testing.T) {
	t.Parallel()

	bus := NewBus()

	ch, cancel := bus.Subscribe(1)

	bus.Notify(Event{Kind: KindAttempted})
	bus.Notify(Event{Kind: KindSent})

	require.Equal(t, uint64(1), bus.Dropped())
	require.Equal(t, KindAttempted, (<-ch).Kind)

	cancel()
	cancel()

	_, ok := <-ch
	require.False(t, ok)

	// Publishing after the subscription ended must not panic.
	bus.Notify(Event{Kind: KindSent})
}

// TestBus_CloseSubscriptions ends live subscriptions and refuses new ones.
func TestBus_CloseSubscriptions(t *testing.T) {
	t.Parallel()

	var observed int

	bus := NewBus(ObserverFunc(func(Event) { observed++ }))

	ch, cancel := bus.Subscribe(4)
	bus.CloseSubscriptions()

	_, ok := <-ch
	require.False(t, ok)

	cancel()

	late, lateCancel := bus.Subscribe(4)
	defer lateCancel()

	_, ok = <-late
	require.False(t, ok)

	bus.Notify(Event{Kind: KindSent})
	require.Equal(t, 1, observed)
}

// TestTracker_FoldsEvents checks the snapshot follows connection, send and alarm events.
func TestTracker_FoldsEvents(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	fireAt := start.Add(time.Hour)

	tr := NewTracker(start, "tcp://device")
	tr.now = func() time.Time { return start.Add(time.Minute) }

	events := []Event{
		{Kind: KindConnecting, State: alarm.Connecting},
		{Kind: KindConnected, State: alarm.Connected},
		{Kind: KindScheduled, AlarmID: "a1", Command: "START 5", FireAt: fireAt},
		{Kind: KindSent, Command: "STOP"},
		{Kind: KindRejected, Err: alarm.ErrNotConnected},
		{Kind: KindFailed, Err: fmt.Errorf("write: %w", alarm.ErrTransportIO)},
	}
	for _, ev := range events {
		tr.Notify(ev)
	}

	s := tr.Snapshot()
	require.Equal(t, alarm.Connected, s.State)
	require.True(t, s.Armed())
	require.Equal(t, "a1", s.ArmedID)
	require.Equal(t, "START 5", s.ArmedCommand)
	require.Equal(t, fireAt, s.ArmedFireAt)
	require.Equal(t, Counts{Sent: 1, Rejected: 1, Failed: 1}, s.Counts)
	require.Contains(t, s.LastError, "transport i/o")
	require.Equal(t, time.Minute, s.Uptime())
	require.Equal(t, "tcp://device", s.Target)

	// A stale alarm id must not clear the armed slot.
	tr.Notify(Event{Kind: KindCancelled, AlarmID: "other"})
	require.True(t, tr.Snapshot().Armed())

	tr.Notify(Event{Kind: KindFired, AlarmID: "a1"})

	s = tr.Snapshot()
	require.False(t, s.Armed())
	require.Equal(t, 1, s.Counts.Fired)
}

// TestEvent_ErrorKind checks the event classifies its error.
func TestEvent_ErrorKind(t *testing.T) {
	t.Parallel()

	require.Equal(t, alarm.KindNotConnected, Event{Err: alarm.ErrNotConnected}.ErrorKind())
	require.Equal(t, alarm.KindNone, Event{}.ErrorKind())
	require.Equal(t, alarm.KindUnknown, Event{Err: errors.New("boom")}.ErrorKind())
}
