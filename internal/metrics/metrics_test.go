package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
)

// TestCollector_FollowsEvents checks gauges and counters track the event stream.
func TestCollector_FollowsEvents(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	require.InDelta(t, 1.0, testutil.ToFloat64(c.linkState.WithLabelValues("disconnected")), 0)

	start := time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)
	fireAt := start.Add(8 * time.Hour)

	c.Notify(status.Event{Time: start, Kind: status.KindConnecting, State: alarm.Connecting})
	c.Notify(status.Event{Time: start.Add(2 * time.Second), Kind: status.KindConnected, State: alarm.Connected})
	c.Notify(status.Event{Kind: status.KindSent})
	c.Notify(status.Event{Kind: status.KindRejected, Err: alarm.ErrNotConnected})
	c.Notify(status.Event{Kind: status.KindScheduled, FireAt: fireAt})
	c.Notify(status.Event{Kind: status.KindReceived})

	require.InDelta(t, 0.0, testutil.ToFloat64(c.linkState.WithLabelValues("disconnected")), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(c.linkState.WithLabelValues("connected")), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(c.sends.WithLabelValues("Sent", "")), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(c.sends.WithLabelValues("Rejected", "NotConnected")), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(c.armed), 0)
	require.InDelta(t, float64(fireAt.Unix()), testutil.ToFloat64(c.nextFire), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(c.received), 0)
	require.Equal(t, 1, testutil.CollectAndCount(c.connectLatency))

	c.Notify(status.Event{Kind: status.KindFired})

	require.InDelta(t, 0.0, testutil.ToFloat64(c.armed), 0)
	require.InDelta(t, 0.0, testutil.ToFloat64(c.nextFire), 0)
	require.InDelta(t, 1.0, testutil.ToFloat64(c.alarmEvents.WithLabelValues("Fired")), 0)
}

// TestNew_DuplicateRegistration fails on a registry that already has the metrics.
func TestNew_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()

	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	require.Error(t, err)
}
