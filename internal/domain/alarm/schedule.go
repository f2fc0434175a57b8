package alarm

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is an hour and minute on the wall clock.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Validate checks the 24-hour range.
func (t TimeOfDay) Validate() error {
	if t.Hour < 0 || t.Hour > 23 {
		return fmt.Errorf("hour %d out of range 0..23: %w", t.Hour, ErrInvalidTime)
	}

	if t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("minute %d out of range 0..59: %w", t.Minute, ErrInvalidTime)
	}

	return nil
}

// String renders HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses HH:MM or H:MM.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("time %q is not HH:MM: %w", s, ErrInvalidTime)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("time %q: hour: %w", s, ErrInvalidTime)
	}

	minute, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 {
		return TimeOfDay{}, fmt.Errorf("time %q: minute: %w", s, ErrInvalidTime)
	}

	t := TimeOfDay{Hour: hour, Minute: minute}

	return t, t.Validate()
}

// ScheduledAlarm is the single armed alarm of a scheduler.
type ScheduledAlarm struct {
	// ID identifies this arming; wake deliveries carry it back.
	ID string
	// FireAt is the absolute instant the alarm fires at.
	FireAt time.Time
	// Command is sent when the alarm fires.
	Command Command
	// Handle is the opaque wake-bridge cancellation token.
	Handle string
	// ArmedAt is when the alarm was computed.
	ArmedAt time.Time
}

// Clone returns a copy safe to hand outside the scheduler lock.
func (a *ScheduledAlarm) Clone() *ScheduledAlarm {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// Delay is the time left from now until FireAt.
func (a *ScheduledAlarm) Delay(now time.Time) time.Duration {
	return a.FireAt.Sub(now)
}
