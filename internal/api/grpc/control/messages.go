package control

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
)

// Struct field names shared by requests and replies.
const (
	fieldActor       = "actor"
	fieldHostname    = "hostname"
	fieldUsername    = "username"
	fieldTarget      = "target"
	fieldWait        = "wait"
	fieldCommand     = "command"
	fieldTime        = "time"
	fieldWaitMinutes = "wait_minutes"
	fieldDuration    = "duration"
	fieldPayload     = "payload"
	fieldCancelled   = "cancelled"
	fieldState       = "state"
	fieldAlarm       = "alarm"
	fieldID          = "id"
	fieldFireAt      = "fire_at"
	fieldArmedAt     = "armed_at"
	fieldStartTime   = "start_time"
	fieldNow         = "now"
	fieldLastEvent   = "last_event"
	fieldLastError   = "last_error"
	fieldCounts      = "counts"
	fieldSent        = "sent"
	fieldRejected    = "rejected"
	fieldFailed      = "failed"
	fieldFired       = "fired"
	fieldKind        = "kind"
	fieldMessage     = "message"
	fieldAlarmID     = "alarm_id"
	fieldError       = "error"
	fieldErrorKind   = "error_kind"
)

// Alarm is the wire view of an armed alarm.
type Alarm struct {
	ID      string
	FireAt  time.Time
	ArmedAt time.Time
	Command string
}

// Delay returns the time left until the alarm fires.
func (a *Alarm) Delay(now time.Time) time.Duration {
	return a.FireAt.Sub(now)
}

func str(s string) *structpb.Value {
	return structpb.NewStringValue(s)
}

func num(n int) *structpb.Value {
	return structpb.NewNumberValue(float64(n))
}

func stamp(t time.Time) *structpb.Value {
	if t.IsZero() {
		return str("")
	}

	return str(t.UTC().Format(time.RFC3339Nano))
}

func object(fields map[string]*structpb.Value) *structpb.Struct {
	return &structpb.Struct{Fields: fields}
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

// intField reads a whole number. An absent field is zero; a non-number, a
// fraction or a value outside the int32 range is an error.
func intField(s *structpb.Struct, name string) (int, error) {
	v, ok := s.GetFields()[name]
	if !ok || v == nil {
		return 0, nil
	}

	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber {
		return 0, fmt.Errorf("%s is not a number", name)
	}

	f := n.NumberValue
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%s %v is not a whole number", name, f)
	}

	return int(f), nil
}

// countField reads a counter, treating anything malformed as zero.
func countField(s *structpb.Struct, name string) int {
	n, err := intField(s, name)
	if err != nil {
		return 0
	}

	return n
}

func boolField(s *structpb.Struct, name string) bool {
	return s.GetFields()[name].GetBoolValue()
}

func structField(s *structpb.Struct, name string) *structpb.Struct {
	return s.GetFields()[name].GetStructValue()
}

func timeField(s *structpb.Struct, name string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, stringField(s, name))
	if err != nil {
		return time.Time{}
	}

	return t
}

// alarmToStruct encodes a; nil encodes as a null value.
func alarmToStruct(a *alarm.ScheduledAlarm) *structpb.Value {
	if a == nil {
		return structpb.NewNullValue()
	}

	return structpb.NewStructValue(object(map[string]*structpb.Value{
		fieldID:      str(a.ID),
		fieldFireAt:  stamp(a.FireAt),
		fieldArmedAt: stamp(a.ArmedAt),
		fieldCommand: str(a.Command.String()),
	}))
}

// alarmFromStruct decodes an alarm; it returns nil for a null value.
func alarmFromStruct(s *structpb.Struct) *Alarm {
	if s == nil || stringField(s, fieldID) == "" {
		return nil
	}

	return &Alarm{
		ID:      stringField(s, fieldID),
		FireAt:  timeField(s, fieldFireAt),
		ArmedAt: timeField(s, fieldArmedAt),
		Command: stringField(s, fieldCommand),
	}
}

// EventToStruct encodes a status event.
func EventToStruct(ev status.Event) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldTime:    stamp(ev.Time),
		fieldKind:    str(string(ev.Kind)),
		fieldMessage: str(ev.Message),
		fieldCommand: str(ev.Command),
		fieldAlarmID: str(ev.AlarmID),
		fieldFireAt:  stamp(ev.FireAt),
		fieldState:   str(ev.State.String()),
	}

	if ev.Err != nil {
		fields[fieldError] = str(ev.Err.Error())
		fields[fieldErrorKind] = str(string(ev.ErrorKind()))
	}

	return object(fields)
}

// EventFromStruct decodes a status event. A remote error becomes a
// *RemoteError matching the corresponding sentinel with errors.Is.
func EventFromStruct(s *structpb.Struct) status.Event {
	state, _ := alarm.ParseConnectionState(stringField(s, fieldState))

	ev := status.Event{
		Time:    timeField(s, fieldTime),
		Kind:    status.Kind(stringField(s, fieldKind)),
		Message: stringField(s, fieldMessage),
		Command: stringField(s, fieldCommand),
		AlarmID: stringField(s, fieldAlarmID),
		FireAt:  timeField(s, fieldFireAt),
		State:   state,
	}

	if msg := stringField(s, fieldError); msg != "" {
		ev.Err = &RemoteError{
			Kind:    alarm.ErrorKind(stringField(s, fieldErrorKind)),
			Message: msg,
		}
	}

	return ev
}

// SnapshotToStruct encodes a tracker snapshot.
func SnapshotToStruct(snap status.Snapshot) *structpb.Struct {
	armed := structpb.NewNullValue()
	if snap.Armed() {
		armed = structpb.NewStructValue(object(map[string]*structpb.Value{
			fieldID:      str(snap.ArmedID),
			fieldFireAt:  stamp(snap.ArmedFireAt),
			fieldCommand: str(snap.ArmedCommand),
		}))
	}

	return object(map[string]*structpb.Value{
		fieldState:     str(snap.State.String()),
		fieldTarget:    str(snap.Target),
		fieldStartTime: stamp(snap.StartTime),
		fieldNow:       stamp(snap.Now),
		fieldAlarm:     armed,
		fieldLastEvent: structpb.NewStructValue(EventToStruct(snap.LastEvent)),
		fieldLastError: str(snap.LastError),
		fieldCounts: structpb.NewStructValue(object(map[string]*structpb.Value{
			fieldSent:     num(snap.Counts.Sent),
			fieldRejected: num(snap.Counts.Rejected),
			fieldFailed:   num(snap.Counts.Failed),
			fieldFired:    num(snap.Counts.Fired),
		})),
	})
}

// SnapshotFromStruct decodes a tracker snapshot.
func SnapshotFromStruct(s *structpb.Struct) status.Snapshot {
	state, _ := alarm.ParseConnectionState(stringField(s, fieldState))
	counts := structField(s, fieldCounts)

	snap := status.Snapshot{
		State:     state,
		Target:    stringField(s, fieldTarget),
		StartTime: timeField(s, fieldStartTime),
		Now:       timeField(s, fieldNow),
		LastEvent: EventFromStruct(structField(s, fieldLastEvent)),
		LastError: stringField(s, fieldLastError),
		Counts: status.Counts{
			Sent:     countField(counts, fieldSent),
			Rejected: countField(counts, fieldRejected),
			Failed:   countField(counts, fieldFailed),
			Fired:    countField(counts, fieldFired),
		},
	}

	if a := alarmFromStruct(structField(s, fieldAlarm)); a != nil {
		snap.ArmedID = a.ID
		snap.ArmedFireAt = a.FireAt
		snap.ArmedCommand = a.Command
	}

	return snap
}
