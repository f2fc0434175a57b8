package control

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
)

// sentinels maps error kinds back to the domain sentinels.
//
//nolint:gochecknoglobals // Read-only lookup table.
var sentinels = map[alarm.ErrorKind]error{
	alarm.KindNotConnected:           alarm.ErrNotConnected,
	alarm.KindTransportConnectFailed: alarm.ErrTransportConnectFailed,
	alarm.KindTransportIO:            alarm.ErrTransportIO,
	alarm.KindInvariantViolation:     alarm.ErrInvariantViolation,
	alarm.KindInvalidCommand:         alarm.ErrInvalidCommand,
	alarm.KindInvalidTime:            alarm.ErrInvalidTime,
	alarm.KindNoAlarm:                alarm.ErrNoAlarm,
}

// RemoteError is a daemon-side error seen by a client.
type RemoteError struct {
	Kind    alarm.ErrorKind
	Message string
}

// Error implements error.
func (e *RemoteError) Error() string {
	return e.Message
}

// Is matches the domain sentinel of the error kind.
func (e *RemoteError) Is(target error) bool {
	sentinel, ok := sentinels[e.Kind]

	return ok && sentinel == target
}

// codeFor maps an error kind to a gRPC status code.
func codeFor(kind alarm.ErrorKind) codes.Code {
	switch kind {
	case alarm.KindNone:
		return codes.OK
	case alarm.KindNotConnected:
		return codes.FailedPrecondition
	case alarm.KindInvalidCommand, alarm.KindInvalidTime:
		return codes.InvalidArgument
	case alarm.KindNoAlarm:
		return codes.NotFound
	case alarm.KindTransportConnectFailed, alarm.KindTransportIO:
		return codes.Unavailable
	case alarm.KindInvariantViolation, alarm.KindUnknown:
		return codes.Internal
	default:
		return codes.Internal
	}
}

// toStatus converts a service error to a gRPC status error carrying the
// error kind as a detail.
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}

	kind := alarm.KindOf(err)
	st := grpcstatus.New(codeFor(kind), err.Error())

	detailed, detailErr := st.WithDetails(object(map[string]*structpb.Value{
		fieldErrorKind: str(string(kind)),
	}))
	if detailErr != nil {
		return st.Err()
	}

	return detailed.Err()
}

// fromStatus converts a gRPC error back to an error matching the domain
// sentinels.
func fromStatus(op string, err error) error {
	if err == nil {
		return nil
	}

	st, ok := grpcstatus.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, d := range st.Details() {
		if s, isStruct := d.(*structpb.Struct); isStruct {
			kind := alarm.ErrorKind(stringField(s, fieldErrorKind))
			if _, known := sentinels[kind]; known {
				return fmt.Errorf("%s: %w", op, &RemoteError{Kind: kind, Message: st.Message()})
			}
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return false
	}

	return grpcstatus.Code(errors.Unwrap(err)) == codes.Unavailable
}
