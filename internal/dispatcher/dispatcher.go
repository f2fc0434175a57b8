package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/logger"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
)

// Link is the part of the connection state machine the dispatcher needs.
type Link interface {
	// IsWritable reports whether the link is Connected.
	IsWritable() bool
	// Write writes a framed command; it fails with alarm.ErrNotConnected when
	// the link left Connected since the last check.
	Write(frame []byte) error
	// HandleIoError drives a Connected link to Disconnected.
	HandleIoError(err error)
}

// Dispatcher validates, gates, frames and writes commands.
type Dispatcher struct {
	link     Link
	observer status.Observer
	now      func() time.Time
}

// New creates a dispatcher. A nil observer discards events.
func New(link Link, observer status.Observer) *Dispatcher {
	if observer == nil {
		observer = status.Discard
	}

	return &Dispatcher{
		link:     link,
		observer: observer,
		now:      time.Now,
	}
}

// Send writes text plus one terminator when the link is Connected.
//
// It returns alarm.ErrInvalidCommand for empty or multi-line text,
// alarm.ErrNotConnected when the link is not Connected (nothing is written),
// and an alarm.ErrTransportIO error when the write fails, in which case the
// link has been torn down. Nothing is retried.
func (d *Dispatcher) Send(ctx context.Context, text string) error {
	ctx = logger.WithName(ctx, "dispatcher")

	cmd, err := alarm.NewCommand(text)
	if err != nil {
		d.emit(status.KindRejected, text, "invalid command", err)

		return err
	}

	return d.SendCommand(ctx, cmd)
}

// SendCommand is Send for an already validated command.
func (d *Dispatcher) SendCommand(ctx context.Context, cmd alarm.Command) error {
	if cmd.IsZero() {
		err := fmt.Errorf("zero command: %w", alarm.ErrInvalidCommand)
		d.emit(status.KindRejected, "", "invalid command", err)

		return err
	}

	d.emit(status.KindAttempted, cmd.String(), "sending "+cmd.String(), nil)

	if !d.link.IsWritable() {
		err := fmt.Errorf("send %q: %w", cmd, alarm.ErrNotConnected)

		logger.WarnKV(ctx, "Command rejected", "command", cmd.String(), "error", err)
		d.emit(status.KindRejected, cmd.String(), "not connected", err)

		return err
	}

	// The link re-checks the gate under its own lock, so a state change
	// after IsWritable still yields ErrNotConnected with nothing written.
	if err := d.link.Write(cmd.Frame()); err != nil {
		if errors.Is(err, alarm.ErrNotConnected) {
			err = fmt.Errorf("send %q: %w", cmd, err)
			d.emit(status.KindRejected, cmd.String(), "not connected", err)

			return err
		}

		d.link.HandleIoError(err)

		err = fmt.Errorf("send %q: %w: %w", cmd, alarm.ErrTransportIO, err)

		logger.ErrorKV(ctx, "Command write failed", "command", cmd.String(), "error", err)
		d.emit(status.KindFailed, cmd.String(), "write failed", err)

		return err
	}

	logger.InfoKV(ctx, "Command sent", "command", cmd.String())
	d.emit(status.KindSent, cmd.String(), "sent "+cmd.String(), nil)

	return nil
}

func (d *Dispatcher) emit(kind status.Kind, command, msg string, err error) {
	d.observer.Notify(status.Event{
		Time:    d.now(),
		Kind:    kind,
		Message: msg,
		Command: command,
		Err:     err,
	})
}
