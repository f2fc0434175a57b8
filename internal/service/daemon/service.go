package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mgarridoch/breakfast-alarm/internal/config"
	"github.com/mgarridoch/breakfast-alarm/internal/dispatcher"
	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/indicator"
	"github.com/mgarridoch/breakfast-alarm/internal/link"
	"github.com/mgarridoch/breakfast-alarm/internal/logger"
	"github.com/mgarridoch/breakfast-alarm/internal/metrics"
	repo "github.com/mgarridoch/breakfast-alarm/internal/repository/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/scheduler"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
	"github.com/mgarridoch/breakfast-alarm/internal/status/mqtt"
	"github.com/mgarridoch/breakfast-alarm/internal/transport"
	"github.com/mgarridoch/breakfast-alarm/internal/wake"
)

// Deps are the collaborators New would otherwise build from the config.
// Nil fields take their production value.
type Deps struct {
	// Transport is the byte stream to the remote device.
	Transport transport.Transport
	// Repository persists the armed alarm.
	Repository repo.Repository
	// Publisher enables the MQTT sink.
	Publisher mqtt.Publisher
	// Lines enables the indicator LEDs.
	Lines indicator.Lines
	// Now replaces time.Now in the scheduler.
	Now func() time.Time
}

// Daemon owns every component of a running breakfast-alarmd.
// Its methods implement the control API service.
type Daemon struct {
	cfg *config.Config

	bus        *status.Bus
	tracker    *status.Tracker
	registry   *prometheus.Registry
	link       *link.Machine
	dispatcher *dispatcher.Dispatcher
	bridge     *wake.TimerBridge
	scheduler  *scheduler.Scheduler
	adapter    *wake.Adapter
	sink       *mqtt.Sink
	indicator  *indicator.Indicator
}

// New builds a daemon from a validated config.
func New(ctx context.Context, cfg *config.Config, deps Deps) (*Daemon, error) {
	ctx = logger.WithName(ctx, "daemon")

	if deps.Transport == nil {
		stream, err := transport.New(cfg.Transport)
		if err != nil {
			return nil, fmt.Errorf("create transport: %w", err)
		}

		deps.Transport = stream
	}

	if deps.Repository == nil {
		deps.Repository = repo.NewFileRepository(cfg.StateFile)
	}

	d := &Daemon{
		cfg:      cfg,
		tracker:  status.NewTracker(time.Now(), cfg.Transport.Target),
		registry: prometheus.NewRegistry(),
	}

	collector, err := metrics.New(d.registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	d.bus = status.NewBus(d.tracker, collector, newLogObserver(ctx))

	d.attachSinks(ctx, deps)

	// One publisher for every producer keeps the bus in state-change order.
	events := status.NewPublisher(d.bus)

	d.link = link.New(deps.Transport, events,
		link.WithConnectTimeout(cfg.Transport.ConnectTimeout),
		link.WithTarget(cfg.Transport.Target))

	d.dispatcher = dispatcher.New(d.link, events)
	d.bridge = wake.NewTimerBridge(nil)

	d.scheduler = scheduler.New(d.bridge, deps.Repository, events, scheduler.Options{
		Location:       cfg.Location(),
		StartCommand:   cfg.Command.FormatStart,
		MaxWaitMinutes: cfg.Command.MaxWaitMinutes,
		MaxLateness:    cfg.Wake.MaxLateness,
		Snooze:         cfg.Wake.Snooze,
		Now:            deps.Now,
	})

	var opts []wake.AdapterOption
	if cfg.Wake.ConnectOnWake {
		opts = append(opts, wake.WithConnectOnWake(d.link, cfg.Wake.ConnectAttempts))
	}

	d.adapter = wake.NewAdapter(d.scheduler, d.dispatcher, opts...)

	wakeCtx := logger.WithName(ctx, "bridge")
	d.bridge.SetReceiver(func(payload string) {
		if wakeErr := d.adapter.OnWake(wakeCtx, payload); wakeErr != nil {
			logger.WarnKV(wakeCtx, "Alarm delivery failed", "error", wakeErr)
		}
	})

	return d, nil
}

// attachSinks adds the optional MQTT and GPIO observers.
func (d *Daemon) attachSinks(ctx context.Context, deps Deps) {
	prefix := strings.TrimSuffix(d.cfg.MQTT.TopicPrefix, "/")

	if deps.Publisher == nil && d.cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewRealPublisher(d.cfg.MQTT.Broker, d.cfg.MQTT.ClientID, prefix+"/"+mqtt.TopicState)
		if err != nil {
			logger.WarnKV(ctx, "MQTT sink disabled", "broker", d.cfg.MQTT.Broker, "error", err)
		} else {
			deps.Publisher = pub
		}
	}

	if deps.Publisher != nil {
		d.sink = mqtt.NewSink(deps.Publisher, prefix)
		d.bus.Attach(d.sink)
	}

	if deps.Lines == nil && (d.cfg.GPIO.LinkPin != 0 || d.cfg.GPIO.ArmedPin != 0) {
		lines, err := indicator.NewRealLines(d.cfg.GPIO.Chip, d.cfg.GPIO.LinkPin, d.cfg.GPIO.ArmedPin)
		if err != nil {
			logger.WarnKV(ctx, "Indicator LEDs disabled", "chip", d.cfg.GPIO.Chip, "error", err)
		} else {
			deps.Lines = lines
		}
	}

	if deps.Lines != nil {
		d.indicator = indicator.New(deps.Lines)
		d.bus.Attach(d.indicator)
	}
}

// Start restores a persisted alarm, starts the sinks and, if configured,
// the first connect attempt.
func (d *Daemon) Start(ctx context.Context) error {
	ctx = logger.WithName(ctx, "daemon")

	if d.sink != nil {
		go d.sink.Run(ctx)
	}

	restored, err := d.scheduler.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore alarm: %w", err)
	}

	if restored != nil {
		logger.InfoKV(ctx, "Alarm restored", "alarm_id", restored.ID, "fire_at", restored.FireAt)
	}

	if d.cfg.Transport.AutoConnect && d.cfg.Transport.Target != "" {
		if err = d.link.Connect(ctx, d.cfg.Transport.Target); err != nil {
			logger.WarnKV(ctx, "Auto-connect failed", "error", err)
		}
	}

	return nil
}

// Close stops timers, drops the link and releases the LEDs. Pending alarms
// stay persisted.
func (d *Daemon) Close() error {
	d.bridge.Stop()

	err := d.link.Disconnect()

	if d.indicator != nil {
		err = errors.Join(err, d.indicator.Close())
	}

	return err
}

// Registry returns the Prometheus registry of this daemon.
func (d *Daemon) Registry() *prometheus.Registry {
	return d.registry
}

// Tracker returns the status tracker.
func (d *Daemon) Tracker() *status.Tracker {
	return d.tracker
}

// Connect starts a connect attempt; with wait it blocks until the attempt
// settles and reports a failed attempt as an error.
func (d *Daemon) Connect(ctx context.Context, target string, wait bool) (alarm.ConnectionState, error) {
	if err := d.link.Connect(ctx, target); err != nil {
		return d.link.State(), err
	}

	d.tracker.SetTarget(d.link.Target())

	if !wait {
		return d.link.State(), nil
	}

	state := d.link.Await(ctx)
	if state == alarm.Disconnected {
		return state, fmt.Errorf("connect %s: %w", d.link.Target(), alarm.ErrTransportConnectFailed)
	}

	return state, nil
}

// Disconnect drops the link.
func (d *Daemon) Disconnect(context.Context) (alarm.ConnectionState, error) {
	if err := d.link.Disconnect(); err != nil {
		return d.link.State(), fmt.Errorf("disconnect: %w", err)
	}

	return d.link.State(), nil
}

// Send writes command to the remote device now.
func (d *Daemon) Send(ctx context.Context, command string) error {
	return d.dispatcher.Send(ctx, command)
}

// Stop cancels the armed alarm and sends the stop command. The alarm is
// cancelled even when the send fails.
func (d *Daemon) Stop(ctx context.Context) (bool, error) {
	cancelled, err := d.scheduler.Cancel(ctx)
	if err != nil {
		return cancelled, err
	}

	return cancelled, d.dispatcher.Send(ctx, d.cfg.Command.Stop)
}

// Schedule arms the alarm.
func (d *Daemon) Schedule(ctx context.Context, tod alarm.TimeOfDay, waitMinutes int) (*alarm.ScheduledAlarm, error) {
	return d.scheduler.Schedule(ctx, tod, waitMinutes)
}

// Cancel disarms the alarm.
func (d *Daemon) Cancel(ctx context.Context) (bool, error) {
	return d.scheduler.Cancel(ctx)
}

// Snooze re-arms the last fired command.
func (d *Daemon) Snooze(ctx context.Context, delay time.Duration) (*alarm.ScheduledAlarm, error) {
	return d.scheduler.Snooze(ctx, delay)
}

// Status returns the tracker snapshot.
func (d *Daemon) Status(context.Context) status.Snapshot {
	return d.tracker.Snapshot()
}

// Wake handles a payload delivered by an external wake primitive.
func (d *Daemon) Wake(ctx context.Context, payload string) error {
	return d.adapter.OnWake(ctx, payload)
}

// Subscribe opens a status event subscription.
func (d *Daemon) Subscribe(buffer int) (<-chan status.Event, func()) {
	return d.bus.Subscribe(buffer)
}
