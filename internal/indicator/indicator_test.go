package indicator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
)

// TestIndicator_FollowsEvents lights LEDs for the link and the armed alarm.
func TestIndicator_FollowsEvents(t *testing.T) {
	t.Parallel()

	lines := NewFakeLines()
	ind := New(lines)

	require.False(t, lines.On(LEDLink))
	require.False(t, lines.On(LEDArmed))

	ind.Notify(status.Event{Kind: status.KindConnecting, State: alarm.Connecting})
	require.False(t, lines.On(LEDLink))

	ind.Notify(status.Event{Kind: status.KindConnected, State: alarm.Connected})
	require.True(t, lines.On(LEDLink))

	ind.Notify(status.Event{Kind: status.KindScheduled})
	require.True(t, lines.On(LEDArmed))

	ind.Notify(status.Event{Kind: status.KindSent})
	require.True(t, lines.On(LEDArmed))

	ind.Notify(status.Event{Kind: status.KindFired})
	require.False(t, lines.On(LEDArmed))

	ind.Notify(status.Event{Kind: status.KindDisconnected, State: alarm.Disconnected})
	require.False(t, lines.On(LEDLink))

	require.NoError(t, ind.Err())
	require.NoError(t, ind.Close())
	require.True(t, lines.Closed)
}

// TestIndicator_RecordsGPIOErrors keeps going when a line write fails.
func TestIndicator_RecordsGPIOErrors(t *testing.T) {
	t.Parallel()

	lines := NewFakeLines()
	lines.SetError = errors.New("line busy")

	ind := New(lines)
	ind.Notify(status.Event{Kind: status.KindScheduled})

	require.ErrorIs(t, ind.Err(), lines.SetError)
	require.Equal(t, 3, lines.Writes)
}
