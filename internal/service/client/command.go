package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/mgarridoch/breakfast-alarm/internal/api/grpc/control"
	"github.com/mgarridoch/breakfast-alarm/internal/config"
	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/logger"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
	"github.com/mgarridoch/breakfast-alarm/internal/transport/bluez"
)

// Options configures how the CLI reaches the daemon.
type Options struct {
	// ConfigPath to YAML settings file; a missing file means defaults.
	ConfigPath string

	// ServerAddress overrides the control address from config when specified.
	ServerAddress string

	// Out receives the command output; nil means stdout.
	Out io.Writer
}

// defaultRetryInterval is the delay between connect attempts with --retry.
const defaultRetryInterval = 2 * time.Second

// Session is an open connection to the daemon.
type Session struct {
	cfg    *config.Config
	client *control.Client
	out    io.Writer
	now    func() time.Time
}

// Open loads settings and dials the daemon.
func Open(ctx context.Context, opts *Options) (*Session, error) {
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	serverAddress := cfg.ControlAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	clientOpts := []control.Option{control.WithCallTimeout(cfg.Timeout)}

	// Identify current user and hostname for the daemon's audit log.
	if actor, actorErr := control.DetectActor(); actorErr == nil {
		clientOpts = append(clientOpts, control.WithActor(actor))
	} else {
		logger.WarnKV(ctx, "Unable to identify the local user", "error", actorErr)
	}

	c, err := control.Dial(ctx, serverAddress, clientOpts...)
	if err != nil {
		return nil, err
	}

	return NewSession(cfg, c, opts.Out), nil
}

// NewSession wraps an existing client.
func NewSession(cfg *config.Config, c *control.Client, out io.Writer) *Session {
	if out == nil {
		out = os.Stdout
	}

	return &Session{
		cfg:    cfg,
		client: c,
		out:    out,
		now:    time.Now,
	}
}

// Close releases the daemon connection.
func (s *Session) Close() error {
	return s.client.Close()
}

// Connect asks the daemon to connect to target, or to the last target when
// empty. With wait it reports the settled state; with retry it keeps trying
// until the link is up or ctx is done.
func (s *Session) Connect(ctx context.Context, target string, wait, retry bool) error {
	// attempt tries once to bring the link up, returns (completed, error).
	attempt := func() (bool, error) {
		state, err := s.client.Connect(ctx, target, wait || retry)
		if err != nil {
			if retry && !control.IsUnavailable(err) {
				logger.WarnKV(ctx, "Connect failed, retrying", "error", err)

				return false, nil
			}

			return false, err
		}

		s.printf("link %s\n", state)

		return true, nil
	}

	if done, err := attempt(); err != nil || done {
		return err
	}

	ticker := time.NewTicker(defaultRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done, err := attempt()
			if err != nil || done {
				return err
			}
		}
	}
}

// Disconnect drops the link.
func (s *Session) Disconnect(ctx context.Context) error {
	state, err := s.client.Disconnect(ctx)
	if err != nil {
		return err
	}

	s.printf("link %s\n", state)

	return nil
}

// Send writes command now.
func (s *Session) Send(ctx context.Context, command string) error {
	if err := s.client.Send(ctx, command); err != nil {
		return err
	}

	s.printf("sent %q\n", command)

	return nil
}

// Stop sends the stop command and cancels the armed alarm.
func (s *Session) Stop(ctx context.Context) error {
	cancelled, err := s.client.Stop(ctx)
	if cancelled {
		s.printf("alarm cancelled\n")
	}

	if err != nil {
		return err
	}

	s.printf("sent %q\n", s.cfg.Command.Stop)

	return nil
}

// Schedule arms the alarm for tod (HH:MM).
func (s *Session) Schedule(ctx context.Context, tod string, waitMinutes int) error {
	if _, err := alarm.ParseTimeOfDay(tod); err != nil {
		return err
	}

	a, err := s.client.Schedule(ctx, tod, waitMinutes)
	if err != nil {
		return err
	}

	s.printf("%s\n", formatAlarm(a, s.now()))

	return nil
}

// Cancel disarms the alarm.
func (s *Session) Cancel(ctx context.Context) error {
	cancelled, err := s.client.Cancel(ctx)
	if err != nil {
		return err
	}

	if cancelled {
		s.printf("alarm cancelled\n")
	} else {
		s.printf("no alarm armed\n")
	}

	return nil
}

// Snooze re-arms the last fired command d from now.
func (s *Session) Snooze(ctx context.Context, d time.Duration) error {
	a, err := s.client.Snooze(ctx, d)
	if err != nil {
		return err
	}

	s.printf("%s\n", formatAlarm(a, s.now()))

	return nil
}

// Status prints the daemon snapshot.
func (s *Session) Status(ctx context.Context) error {
	snap, err := s.client.Status(ctx)
	if err != nil {
		return err
	}

	s.printf("%s", formatSnapshot(snap))

	return nil
}

// Wake delivers payload to the daemon.
func (s *Session) Wake(ctx context.Context, payload string) error {
	return s.client.Wake(ctx, payload)
}

// Watch prints status events until ctx is done.
func (s *Session) Watch(ctx context.Context) error {
	return s.client.Watch(ctx, func(ev status.Event) {
		s.printf("%s\n", formatEvent(ev))
	})
}

// Scan lists paired and discovered SPP devices on adapter.
func Scan(ctx context.Context, adapter string, out io.Writer) error {
	devices, err := bluez.Scan(ctx, adapter)
	if err != nil {
		return fmt.Errorf("scan %s: %w", adapter, err)
	}

	if len(devices) == 0 {
		_, _ = fmt.Fprintln(out, "no serial port devices found")

		return nil
	}

	slices.SortFunc(devices, func(a, b bluez.Device) int { return strings.Compare(a.MAC, b.MAC) })

	for _, d := range devices {
		_, _ = fmt.Fprintf(out, "%s\t%s\n", d.MAC, d.DisplayName())
	}

	return nil
}

func (s *Session) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}
