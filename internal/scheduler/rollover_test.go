package scheduler

import (
	"math/rand/v2"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
)

// TestNextFireInstant covers same-day firing and next-day rollover.
func TestNextFireInstant(t *testing.T) {
	t.Parallel()

	utc := time.UTC

	tests := []struct {
		name string
		now  time.Time
		tod  alarm.TimeOfDay
		want time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2024, 3, 1, 6, 0, 0, 0, utc),
			tod:  alarm.TimeOfDay{Hour: 7, Minute: 0},
			want: time.Date(2024, 3, 1, 7, 0, 0, 0, utc),
		},
		{
			name: "same minute rolls over",
			now:  time.Date(2024, 3, 1, 7, 0, 0, 0, utc),
			tod:  alarm.TimeOfDay{Hour: 7, Minute: 0},
			want: time.Date(2024, 3, 2, 7, 0, 0, 0, utc),
		},
		{
			name: "seconds into the minute rolls over",
			now:  time.Date(2024, 3, 1, 7, 0, 30, 0, utc),
			tod:  alarm.TimeOfDay{Hour: 7, Minute: 0},
			want: time.Date(2024, 3, 2, 7, 0, 0, 0, utc),
		},
		{
			name: "earlier today rolls over",
			now:  time.Date(2024, 3, 1, 22, 15, 0, 0, utc),
			tod:  alarm.TimeOfDay{Hour: 6, Minute: 30},
			want: time.Date(2024, 3, 2, 6, 30, 0, 0, utc),
		},
		{
			name: "month end",
			now:  time.Date(2024, 1, 31, 23, 59, 0, 0, utc),
			tod:  alarm.TimeOfDay{Hour: 0, Minute: 0},
			want: time.Date(2024, 2, 1, 0, 0, 0, 0, utc),
		},
		{
			name: "leap day",
			now:  time.Date(2024, 2, 28, 8, 0, 0, 0, utc),
			tod:  alarm.TimeOfDay{Hour: 7, Minute: 59},
			want: time.Date(2024, 2, 29, 7, 59, 0, 0, utc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NextFireInstant(tt.now, tt.tod, utc)
			require.NoError(t, err)
			require.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

// TestNextFireInstant_CalendarDayAcrossDST keeps the wall time when the offset changes.
func TestNextFireInstant_CalendarDayAcrossDST(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Clocks spring forward at 02:00 on 2024-03-10.
	now := time.Date(2024, 3, 9, 22, 0, 0, 0, ny)

	got, err := NextFireInstant(now, alarm.TimeOfDay{Hour: 21, Minute: 0}, ny)
	require.NoError(t, err)
	require.Equal(t, 10, got.Day())
	require.Equal(t, 21, got.Hour())
	require.Equal(t, 22*time.Hour, got.Sub(now))
}

// TestNextFireInstant_AlwaysInFuture checks the delay is positive and at most a day for random inputs.
func TestNextFireInstant_AlwaysInFuture(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for range 2000 {
		now := base.Add(time.Duration(rng.Int64N(int64(366 * 24 * time.Hour))))
		tod := alarm.TimeOfDay{Hour: rng.IntN(24), Minute: rng.IntN(60)}

		got, err := NextFireInstant(now, tod, time.UTC)
		require.NoError(t, err)

		delay := got.Sub(now)
		require.Positive(t, delay)
		require.LessOrEqual(t, delay, 24*time.Hour)
		require.Equal(t, tod.Hour, got.Hour())
		require.Equal(t, tod.Minute, got.Minute())
		require.Zero(t, got.Second())
	}
}

// TestNextFireInstant_InvalidTime rejects out-of-range clock values.
func TestNextFireInstant_InvalidTime(t *testing.T) {
	t.Parallel()

	now := time.Now()

	for _, tod := range []alarm.TimeOfDay{{Hour: 24}, {Hour: -1}, {Minute: 60}, {Minute: -1}} {
		_, err := NextFireInstant(now, tod, time.UTC)
		require.ErrorIs(t, err, alarm.ErrInvalidTime)
	}
}
