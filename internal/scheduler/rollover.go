package scheduler

import (
	"fmt"
	"time"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
)

// NextFireInstant returns the first instant at tod in loc strictly after now.
//
// An alarm set for the current minute, or any earlier one, rolls over to the
// same wall time on the next calendar day. The next day is computed on the
// calendar, so across a DST change the delay is not exactly 24 hours.
func NextFireInstant(now time.Time, tod alarm.TimeOfDay, loc *time.Location) (time.Time, error) {
	if err := tod.Validate(); err != nil {
		return time.Time{}, err
	}

	if loc == nil {
		loc = time.Local
	}

	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), tod.Hour, tod.Minute, 0, 0, loc)

	if !candidate.After(now) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+1, tod.Hour, tod.Minute, 0, 0, loc)
	}

	if !candidate.After(now) {
		return time.Time{}, fmt.Errorf("next fire instant %s is not after %s: %w",
			candidate.Format(time.RFC3339), now.Format(time.RFC3339), alarm.ErrInvariantViolation)
	}

	return candidate, nil
}
