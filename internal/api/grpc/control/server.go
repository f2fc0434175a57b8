package control

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/logger"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
)

// WatchBuffer is the per-stream event buffer of Watch.
const WatchBuffer = 32

// Service abstracts the daemon operations the transport layer depends on.
type Service interface {
	Connect(ctx context.Context, target string, wait bool) (alarm.ConnectionState, error)
	Disconnect(ctx context.Context) (alarm.ConnectionState, error)
	Send(ctx context.Context, command string) error
	Stop(ctx context.Context) (bool, error)
	Schedule(ctx context.Context, tod alarm.TimeOfDay, waitMinutes int) (*alarm.ScheduledAlarm, error)
	Cancel(ctx context.Context) (bool, error)
	Snooze(ctx context.Context, d time.Duration) (*alarm.ScheduledAlarm, error)
	Status(ctx context.Context) status.Snapshot
	Wake(ctx context.Context, payload string) error
	Subscribe(buffer int) (<-chan status.Event, func())
}

// Server implements the Control gRPC API.
type Server struct {
	// service provides the daemon operations.
	service Service
}

var _ ControlServer = (*Server)(nil)

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Connect starts a connect attempt, optionally waiting for it to settle.
func (s *Server) Connect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = requestContext(ctx, req, "connect")

	state, err := s.service.Connect(ctx, stringField(req, fieldTarget), boolField(req, fieldWait))
	if err != nil {
		return nil, toStatus(err)
	}

	return stateReply(state), nil
}

// Disconnect tears the link down.
func (s *Server) Disconnect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = requestContext(ctx, req, "disconnect")

	state, err := s.service.Disconnect(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	return stateReply(state), nil
}

// Send writes a command immediately.
func (s *Server) Send(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = requestContext(ctx, req, "send")

	command := stringField(req, fieldCommand)
	if err := s.service.Send(ctx, command); err != nil {
		return nil, toStatus(err)
	}

	return object(map[string]*structpb.Value{fieldCommand: str(command)}), nil
}

// Stop sends the stop command and cancels the armed alarm.
func (s *Server) Stop(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = requestContext(ctx, req, "stop")

	cancelled, err := s.service.Stop(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	return object(map[string]*structpb.Value{fieldCancelled: structpb.NewBoolValue(cancelled)}), nil
}

// Schedule arms the alarm for the next occurrence of a wall-clock time.
func (s *Server) Schedule(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = requestContext(ctx, req, "schedule")

	tod, err := alarm.ParseTimeOfDay(stringField(req, fieldTime))
	if err != nil {
		return nil, toStatus(err)
	}

	wait, err := intField(req, fieldWaitMinutes)
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %w", alarm.ErrInvalidCommand, err))
	}

	armed, err := s.service.Schedule(ctx, tod, wait)
	if err != nil {
		return nil, toStatus(err)
	}

	return object(map[string]*structpb.Value{fieldAlarm: alarmToStruct(armed)}), nil
}

// Cancel disarms the pending alarm.
func (s *Server) Cancel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = requestContext(ctx, req, "cancel")

	cancelled, err := s.service.Cancel(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	return object(map[string]*structpb.Value{fieldCancelled: structpb.NewBoolValue(cancelled)}), nil
}

// Snooze re-arms the last fired command.
func (s *Server) Snooze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = requestContext(ctx, req, "snooze")

	var d time.Duration

	if raw := stringField(req, fieldDuration); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "duration %q: %v", raw, err)
		}

		d = parsed
	}

	armed, err := s.service.Snooze(ctx, d)
	if err != nil {
		return nil, toStatus(err)
	}

	return object(map[string]*structpb.Value{fieldAlarm: alarmToStruct(armed)}), nil
}

// Status returns the tracker snapshot.
func (s *Server) Status(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return SnapshotToStruct(s.service.Status(ctx)), nil
}

// Wake delivers a wake payload as an external wake primitive would.
func (s *Server) Wake(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = requestContext(ctx, req, "wake")

	payload := stringField(req, fieldPayload)
	if payload == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "payload is required")
	}

	if err := s.service.Wake(ctx, payload); err != nil {
		return nil, toStatus(err)
	}

	return object(nil), nil
}

// Watch streams status events until the client goes away.
func (s *Server) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ctx := stream.Context()

	events, cancel := s.service.Subscribe(WatchBuffer)
	defer cancel()

	logger.Debugf(ctx, "watch stream opened")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}

			if err := stream.SendMsg(EventToStruct(ev)); err != nil {
				return fmt.Errorf("send event: %w", err)
			}
		}
	}
}

// requestContext names the logger after the call and tags it with the
// requesting actor, if any.
func requestContext(ctx context.Context, req *structpb.Struct, call string) context.Context {
	ctx = logger.WithName(ctx, call)

	if actor := actorFromStruct(structField(req, fieldActor)); actor != nil {
		ctx = logger.WithKV(ctx, "hostname", actor.Hostname, "username", actor.Username)
		logger.Infof(ctx, "%s requested", call)
	}

	return ctx
}

func stateReply(state alarm.ConnectionState) *structpb.Struct {
	return object(map[string]*structpb.Value{fieldState: str(state.String())})
}
