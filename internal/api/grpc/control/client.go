package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mgarridoch/breakfast-alarm/internal/config"
	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
)

// Client wraps the Control service with typed helpers.
type Client struct {
	// conn is the underlying gRPC connection to the daemon.
	conn grpc.ClientConnInterface
	// closer releases conn; nil when the caller owns it.
	closer io.Closer
	// actor is attached to every mutating request.
	actor *Actor

	// callTimeout is the default timeout for individual unary calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor tags requests with the given actor.
func WithActor(actor *Actor) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the daemon.
// Note: this uses insecure transport credentials; the control address is
// expected to be loopback or a trusted network.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	client := NewClient(conn, opts...)
	client.closer = conn

	return client, nil
}

// NewClient wraps an existing connection. The caller keeps ownership of conn.
func NewClient(conn grpc.ClientConnInterface, opts ...Option) *Client {
	client := &Client{
		conn:        conn,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}

	return c.closer.Close()
}

// Connect asks the daemon to connect. With wait set it returns the settled
// state instead of Connecting; the daemon's connect timeout then bounds the
// call instead of the client call timeout.
func (c *Client) Connect(ctx context.Context, target string, wait bool) (alarm.ConnectionState, error) {
	if wait {
		ctx = withoutCallTimeout(ctx)
	}

	resp, err := c.invoke(ctx, MethodConnect, "connect", map[string]*structpb.Value{
		fieldTarget: str(target),
		fieldWait:   structpb.NewBoolValue(wait),
	})
	if err != nil {
		return alarm.Disconnected, err
	}

	state, _ := alarm.ParseConnectionState(stringField(resp, fieldState))

	return state, nil
}

// Disconnect asks the daemon to drop the link.
func (c *Client) Disconnect(ctx context.Context) (alarm.ConnectionState, error) {
	resp, err := c.invoke(ctx, MethodDisconnect, "disconnect", nil)
	if err != nil {
		return alarm.Disconnected, err
	}

	state, _ := alarm.ParseConnectionState(stringField(resp, fieldState))

	return state, nil
}

// Send writes command immediately.
func (c *Client) Send(ctx context.Context, command string) error {
	_, err := c.invoke(ctx, MethodSend, "send", map[string]*structpb.Value{
		fieldCommand: str(command),
	})

	return err
}

// Stop sends the stop command and cancels the armed alarm. It reports
// whether an alarm was cancelled.
func (c *Client) Stop(ctx context.Context) (bool, error) {
	resp, err := c.invoke(ctx, MethodStop, "stop", nil)
	if err != nil {
		return false, err
	}

	return boolField(resp, fieldCancelled), nil
}

// Schedule arms the alarm for the next occurrence of tod (HH:MM).
func (c *Client) Schedule(ctx context.Context, tod string, waitMinutes int) (*Alarm, error) {
	resp, err := c.invoke(ctx, MethodSchedule, "schedule", map[string]*structpb.Value{
		fieldTime:        str(tod),
		fieldWaitMinutes: num(waitMinutes),
	})
	if err != nil {
		return nil, err
	}

	return alarmFromStruct(structField(resp, fieldAlarm)), nil
}

// Cancel disarms the pending alarm and reports whether one was armed.
func (c *Client) Cancel(ctx context.Context) (bool, error) {
	resp, err := c.invoke(ctx, MethodCancel, "cancel", nil)
	if err != nil {
		return false, err
	}

	return boolField(resp, fieldCancelled), nil
}

// Snooze re-arms the last fired command d from now; zero uses the daemon default.
func (c *Client) Snooze(ctx context.Context, d time.Duration) (*Alarm, error) {
	fields := map[string]*structpb.Value{}
	if d > 0 {
		fields[fieldDuration] = str(d.String())
	}

	resp, err := c.invoke(ctx, MethodSnooze, "snooze", fields)
	if err != nil {
		return nil, err
	}

	return alarmFromStruct(structField(resp, fieldAlarm)), nil
}

// Status fetches the daemon snapshot.
func (c *Client) Status(ctx context.Context) (status.Snapshot, error) {
	resp, err := c.invoke(ctx, MethodStatus, "status", nil)
	if err != nil {
		return status.Snapshot{}, err
	}

	return SnapshotFromStruct(resp), nil
}

// Wake delivers payload as if an external wake primitive had fired.
func (c *Client) Wake(ctx context.Context, payload string) error {
	_, err := c.invoke(ctx, MethodWake, "wake", map[string]*structpb.Value{
		fieldPayload: str(payload),
	})

	return err
}

// Watch streams status events to fn until ctx is done or the daemon closes
// the stream. A cancelled ctx returns nil.
func (c *Client) Watch(ctx context.Context, fn func(status.Event)) error {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], MethodWatch)
	if err != nil {
		return fromStatus("watch", err)
	}

	if err = stream.SendMsg(new(emptypb.Empty)); err != nil {
		return fromStatus("watch", err)
	}

	if err = stream.CloseSend(); err != nil {
		return fromStatus("watch", err)
	}

	for {
		msg := new(structpb.Struct)

		err = stream.RecvMsg(msg)

		switch {
		case err == nil:
			fn(EventFromStruct(msg))
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			return nil
		default:
			return fromStatus("watch", err)
		}
	}
}

func (c *Client) invoke(
	ctx context.Context,
	method, op string,
	fields map[string]*structpb.Value,
) (*structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	req := object(fields)
	if req.Fields == nil {
		req.Fields = map[string]*structpb.Value{}
	}

	if c.actor != nil {
		req.Fields[fieldActor] = actorToStruct(c.actor)
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(callCtx, method, req, resp); err != nil {
		return nil, fromStatus(op, err)
	}

	return resp, nil
}

type noCallTimeoutKey struct{}

// withoutCallTimeout marks ctx so callContext adds no deadline.
func withoutCallTimeout(ctx context.Context) context.Context {
	return context.WithValue(ctx, noCallTimeoutKey{}, true)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if skip, _ := ctx.Value(noCallTimeoutKey{}).(bool); skip || c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
