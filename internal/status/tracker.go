package status

import (
	"sync"
	"time"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
)

// Counts tallies send outcomes since start-up.
type Counts struct {
	Sent     int `json:"sent"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
	Fired    int `json:"fired"`
}

// Snapshot is a point-in-time view of the daemon.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State     alarm.ConnectionState
	Target    string
	StartTime time.Time
	Now       time.Time

	// ArmedID, ArmedCommand and ArmedFireAt describe the armed alarm, if any.
	ArmedID      string
	ArmedCommand string
	ArmedFireAt  time.Time

	LastEvent Event
	LastError string
	Counts    Counts
}

// Armed reports whether an alarm is armed.
func (s Snapshot) Armed() bool {
	return s.ArmedID != ""
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker folds events into a Snapshot behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	now  func() time.Time
	snap Snapshot
}

// NewTracker creates a tracker started at startTime.
func NewTracker(startTime time.Time, target string) *Tracker {
	return &Tracker{
		now: time.Now,
		snap: Snapshot{
			StartTime: startTime,
			Target:    target,
		},
	}
}

// Notify implements Observer.
func (t *Tracker) Notify(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.LastEvent = ev
	if ev.Err != nil {
		t.snap.LastError = ev.Err.Error()
	}

	switch ev.Kind {
	case KindConnecting, KindConnected, KindDisconnected:
		t.snap.State = ev.State
	case KindSent:
		t.snap.Counts.Sent++
	case KindRejected:
		t.snap.Counts.Rejected++
	case KindFailed:
		t.snap.Counts.Failed++
	case KindScheduled:
		t.snap.ArmedID = ev.AlarmID
		t.snap.ArmedCommand = ev.Command
		t.snap.ArmedFireAt = ev.FireAt
	case KindFired:
		t.snap.Counts.Fired++
		t.clearArmed(ev.AlarmID)
	case KindCancelled, KindMissed:
		t.clearArmed(ev.AlarmID)
	case KindAttempted, KindReceived:
	}
}

// clearArmed forgets the armed alarm when id matches it.
func (t *Tracker) clearArmed(id string) {
	if id != "" && id != t.snap.ArmedID {
		return
	}

	t.snap.ArmedID = ""
	t.snap.ArmedCommand = ""
	t.snap.ArmedFireAt = time.Time{}
}

// SetTarget records the transport target shown in snapshots.
func (t *Tracker) SetTarget(target string) {
	t.mu.Lock()
	t.snap.Target = target
	t.mu.Unlock()
}

// Snapshot returns a copy of the current state with Now set.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()

	s.Now = t.now()

	return s
}
