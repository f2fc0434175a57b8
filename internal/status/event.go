package status

import (
	"time"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
)

// Kind is the machine-readable outcome of an Event.
type Kind string

// Event kinds.
const (
	KindConnecting   Kind = "Connecting"
	KindConnected    Kind = "Connected"
	KindDisconnected Kind = "Disconnected"
	KindAttempted    Kind = "Attempted"
	KindSent         Kind = "Sent"
	KindRejected     Kind = "Rejected"
	KindFailed       Kind = "Failed"
	KindScheduled    Kind = "Scheduled"
	KindCancelled    Kind = "Cancelled"
	KindFired        Kind = "Fired"
	KindMissed       Kind = "Missed"
	KindReceived     Kind = "Received"
)

// Event is one status notification.
type Event struct {
	// Time is when the event was emitted.
	Time time.Time
	// Kind is the machine-readable outcome.
	Kind Kind
	// Message is the human-readable status line.
	Message string
	// Command is set for send and alarm events.
	Command string
	// AlarmID and FireAt are set for alarm events.
	AlarmID string
	FireAt  time.Time
	// State is the connection state after the event.
	State alarm.ConnectionState
	// Err is set for Rejected, Failed and error-driven Disconnected events.
	Err error
}

// ErrorKind classifies Err.
func (e Event) ErrorKind() alarm.ErrorKind {
	return alarm.KindOf(e.Err)
}

// Observer receives events. Notify must not block for long and must not
// call back into the component that published the event.
type Observer interface {
	Notify(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

// Notify calls f.
func (f ObserverFunc) Notify(ev Event) {
	f(ev)
}

// Discard drops every event.
//
//nolint:gochecknoglobals // Stateless sentinel observer.
var Discard Observer = ObserverFunc(func(Event) {})
