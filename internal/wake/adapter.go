package wake

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/logger"
)

// Claimer resolves a delivery against the armed alarm. Claim returns true
// exactly once per arming and clears it.
type Claimer interface {
	Claim(ctx context.Context, alarmID string) bool
}

// Sender sends a command text.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Connector brings the link up before a wake-time send.
type Connector interface {
	IsWritable() bool
	Connect(ctx context.Context, target string) error
	Await(ctx context.Context) alarm.ConnectionState
}

// DefaultConnectAttempts is the connect-on-wake attempt count.
const DefaultConnectAttempts = 3

// Adapter re-threads wake deliveries onto the command dispatcher.
type Adapter struct {
	claimer   Claimer
	sender    Sender
	connector Connector
	attempts  int

	newBackOff func() backoff.BackOff
}

// AdapterOption tunes an Adapter.
type AdapterOption func(*Adapter)

// WithConnectOnWake makes OnWake bring a down link up before sending, with
// at most attempts connect attempts.
func WithConnectOnWake(c Connector, attempts int) AdapterOption {
	return func(a *Adapter) {
		a.connector = c
		if attempts > 0 {
			a.attempts = attempts
		}
	}
}

// WithBackOff replaces the delay policy between connect attempts.
func WithBackOff(newBackOff func() backoff.BackOff) AdapterOption {
	return func(a *Adapter) {
		a.newBackOff = newBackOff
	}
}

// NewAdapter creates an adapter.
func NewAdapter(claimer Claimer, sender Sender, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		claimer:  claimer,
		sender:   sender,
		attempts: DefaultConnectAttempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 10 * time.Second

			return b
		},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// OnWake handles one delivery. Malformed payloads, cancelled alarms and
// duplicate deliveries send nothing. When the link is down and stays down,
// the send fails cleanly with alarm.ErrNotConnected.
func (a *Adapter) OnWake(ctx context.Context, raw string) error {
	ctx = logger.WithName(ctx, "wake")

	p, err := DecodePayload(raw)
	if err != nil {
		logger.WarnKV(ctx, "Wake payload ignored", "error", err)

		return err
	}

	ctx = logger.WithKV(ctx, "alarm_id", p.AlarmID)

	if !a.claimer.Claim(ctx, p.AlarmID) {
		logger.InfoKV(ctx, "Wake for an alarm that is no longer armed ignored")

		return nil
	}

	if a.connector != nil && !a.connector.IsWritable() {
		if err = a.ensureConnected(ctx); err != nil {
			logger.WarnKV(ctx, "Link did not come up for the alarm", "error", err)
		}
	}

	if err = a.sender.Send(ctx, p.Command); err != nil {
		return fmt.Errorf("alarm %s: %w", p.AlarmID, err)
	}

	return nil
}

func (a *Adapter) ensureConnected(ctx context.Context) error {
	operation := func() error {
		if err := a.connector.Connect(ctx, ""); err != nil {
			return backoff.Permanent(err)
		}

		if state := a.connector.Await(ctx); state != alarm.Connected {
			return fmt.Errorf("link is %s: %w", state, alarm.ErrNotConnected)
		}

		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(a.newBackOff(), uint64(a.attempts-1)), ctx)

	return backoff.RetryNotify(operation, policy, func(err error, next time.Duration) {
		logger.InfoKV(ctx, "Connect on wake failed, retrying", "error", err, "retry_in", next)
	})
}
