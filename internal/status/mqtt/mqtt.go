// Package mqtt mirrors status events to an MQTT broker.
//
// Every event is published as JSON on <prefix>/status. Connection changes
// are also published, retained, on <prefix>/state so a late subscriber sees
// the current link state.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/mgarridoch/breakfast-alarm/internal/status"
)

// Topic suffixes under the configured prefix.
const (
	TopicStatus = "status"
	TopicState  = "state"
)

// Publisher publishes raw payloads.
type Publisher interface {
	// Publish sends payload to topic. Returns error if publishing fails
	// (should not crash the process).
	Publish(topic string, retained bool, payload []byte) error

	// Close disconnects from the broker.
	Close() error
}

// Payload is the JSON form of a status event.
type Payload struct {
	Time      string `json:"time"`
	Kind      string `json:"kind"`
	Message   string `json:"message,omitempty"`
	Command   string `json:"command,omitempty"`
	AlarmID   string `json:"alarm_id,omitempty"`
	FireAt    string `json:"fire_at,omitempty"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// StatePayload is the retained connection state.
type StatePayload struct {
	Time  string `json:"time"`
	State string `json:"state"`
}

// FormatPayload creates the JSON payload for an event.
func FormatPayload(ev status.Event) ([]byte, error) {
	p := Payload{
		Time:      ev.Time.UTC().Format(time.RFC3339),
		Kind:      string(ev.Kind),
		Message:   ev.Message,
		Command:   ev.Command,
		AlarmID:   ev.AlarmID,
		State:     ev.State.String(),
		ErrorKind: string(ev.ErrorKind()),
	}

	if !ev.FireAt.IsZero() {
		p.FireAt = ev.FireAt.UTC().Format(time.RFC3339)
	}

	if ev.Err != nil {
		p.Error = ev.Err.Error()
	}

	return json.Marshal(p)
}

// FormatStatePayload creates the retained state payload.
func FormatStatePayload(ev status.Event) ([]byte, error) {
	return json.Marshal(StatePayload{
		Time:  ev.Time.UTC().Format(time.RFC3339),
		State: ev.State.String(),
	})
}

// isConnectionEvent reports whether ev changes the link state.
func isConnectionEvent(ev status.Event) bool {
	switch ev.Kind {
	case status.KindConnecting, status.KindConnected, status.KindDisconnected:
		return true
	default:
		return false
	}
}
