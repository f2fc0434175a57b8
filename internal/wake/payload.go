package wake

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	fieldAlarmID = "alarm_id"
	fieldCommand = "command"
)

var (
	// ErrEmptyPayload is returned for a delivery without a payload.
	ErrEmptyPayload = errors.New("empty wake payload")
	// ErrBadPayload is returned for a payload that is not an encoded Payload.
	ErrBadPayload = errors.New("malformed wake payload")
)

// Payload is what crosses the wake bridge.
type Payload struct {
	// AlarmID identifies the arming the delivery belongs to.
	AlarmID string
	// Command is the text to send.
	Command string
}

// Encode renders p as compact protobuf JSON.
func (p Payload) Encode() (string, error) {
	s, err := structpb.NewStruct(map[string]any{
		fieldAlarmID: p.AlarmID,
		fieldCommand: p.Command,
	})
	if err != nil {
		return "", fmt.Errorf("encode wake payload: %w", err)
	}

	data, err := protojson.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode wake payload: %w", err)
	}

	return string(data), nil
}

// DecodePayload parses an encoded Payload.
func DecodePayload(raw string) (Payload, error) {
	if raw == "" {
		return Payload{}, ErrEmptyPayload
	}

	var s structpb.Struct
	if err := protojson.Unmarshal([]byte(raw), &s); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}

	p := Payload{
		AlarmID: s.GetFields()[fieldAlarmID].GetStringValue(),
		Command: s.GetFields()[fieldCommand].GetStringValue(),
	}

	if p.AlarmID == "" || p.Command == "" {
		return Payload{}, fmt.Errorf("%w: missing %s or %s", ErrBadPayload, fieldAlarmID, fieldCommand)
	}

	return p, nil
}
