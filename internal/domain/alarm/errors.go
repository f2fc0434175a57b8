package alarm

import "errors"

var (
	// ErrNotConnected is returned when a send is attempted while the link is
	// not Connected. Recoverable: reconnect and send again.
	ErrNotConnected = errors.New("not connected")
	// ErrTransportConnectFailed is reported when a connect attempt is rejected.
	ErrTransportConnectFailed = errors.New("transport connect failed")
	// ErrTransportIO is a write or read failure; it forces a disconnect.
	ErrTransportIO = errors.New("transport i/o error")
	// ErrInvariantViolation aborts a schedule call whose computed delay is not
	// positive or that would leave two alarms armed.
	ErrInvariantViolation = errors.New("scheduler invariant violation")
	// ErrInvalidCommand is returned for empty commands, commands with line
	// breaks and a start wait outside the allowed minutes.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrInvalidTime is returned for an out-of-range or malformed time of day.
	ErrInvalidTime = errors.New("invalid time")
	// ErrNoAlarm is returned by operations that need an armed or fired alarm.
	ErrNoAlarm = errors.New("no alarm")
)

// ErrorKind names an error class on the status channel and in API replies.
type ErrorKind string

// Error kinds. KindNone is used for a nil error.
const (
	KindNone                   ErrorKind = ""
	KindNotConnected           ErrorKind = "NotConnected"
	KindTransportConnectFailed ErrorKind = "TransportConnectFailed"
	KindTransportIO            ErrorKind = "TransportIoError"
	KindInvariantViolation     ErrorKind = "InvariantViolation"
	KindInvalidCommand         ErrorKind = "InvalidCommand"
	KindInvalidTime            ErrorKind = "InvalidTime"
	KindNoAlarm                ErrorKind = "NoAlarm"
	KindUnknown                ErrorKind = "Unknown"
)

// KindOf classifies err against the sentinels above.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotConnected):
		return KindNotConnected
	case errors.Is(err, ErrTransportConnectFailed):
		return KindTransportConnectFailed
	case errors.Is(err, ErrTransportIO):
		return KindTransportIO
	case errors.Is(err, ErrInvariantViolation):
		return KindInvariantViolation
	case errors.Is(err, ErrInvalidCommand):
		return KindInvalidCommand
	case errors.Is(err, ErrInvalidTime):
		return KindInvalidTime
	case errors.Is(err, ErrNoAlarm):
		return KindNoAlarm
	default:
		return KindUnknown
	}
}
