package scheduler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/logger"
	repo "github.com/mgarridoch/breakfast-alarm/internal/repository/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
	"github.com/mgarridoch/breakfast-alarm/internal/wake"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultMaxWaitMinutes = 30
	DefaultMaxLateness    = 15 * time.Minute
	DefaultSnooze         = 9 * time.Minute
)

// Options configures a Scheduler. Zero fields take defaults.
type Options struct {
	// Location is the wall clock alarms are set on.
	Location *time.Location
	// StartCommand renders the command for a wait-minutes value.
	StartCommand func(waitMinutes int) string
	// MaxWaitMinutes bounds the wait-minutes argument.
	MaxWaitMinutes int
	// MaxLateness is how late a restored alarm may still fire.
	MaxLateness time.Duration
	// Snooze is the default snooze delay.
	Snooze time.Duration
	// Now replaces time.Now.
	Now func() time.Time
	// NewID replaces the random alarm id generator.
	NewID func() string
}

// Scheduler owns the single armed alarm. It is safe for concurrent use.
type Scheduler struct {
	bridge wake.Bridge
	repo   repo.Repository
	events *status.Publisher
	opts   Options

	mu        sync.Mutex
	armed     *alarm.ScheduledAlarm
	lastFired alarm.Command
}

// New creates a scheduler. A nil repository disables persistence and a nil
// observer discards events. Events are queued under the scheduler lock.
func New(bridge wake.Bridge, repository repo.Repository, observer status.Observer, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}

	if opts.StartCommand == nil {
		opts.StartCommand = func(n int) string { return fmt.Sprintf("START %d", n) }
	}

	if opts.MaxWaitMinutes <= 0 {
		opts.MaxWaitMinutes = DefaultMaxWaitMinutes
	}

	if opts.MaxLateness <= 0 {
		opts.MaxLateness = DefaultMaxLateness
	}

	if opts.Snooze <= 0 {
		opts.Snooze = DefaultSnooze
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	if opts.NewID == nil {
		opts.NewID = randomID
	}

	return &Scheduler{
		bridge: bridge,
		repo:   repository,
		events: status.PublisherFor(observer),
		opts:   opts,
	}
}

// Schedule arms the alarm for the next occurrence of tod, sending the start
// command for waitMinutes. Any pending alarm is superseded. On error the
// pending alarm is left untouched.
func (s *Scheduler) Schedule(ctx context.Context, tod alarm.TimeOfDay, waitMinutes int) (*alarm.ScheduledAlarm, error) {
	if err := tod.Validate(); err != nil {
		return nil, err
	}

	if waitMinutes < 0 || waitMinutes > s.opts.MaxWaitMinutes {
		return nil, fmt.Errorf("wait of %d minutes out of range 0..%d: %w",
			waitMinutes, s.opts.MaxWaitMinutes, alarm.ErrInvalidCommand)
	}

	cmd, err := alarm.NewCommand(s.opts.StartCommand(waitMinutes))
	if err != nil {
		return nil, err
	}

	return s.arm(ctx, cmd, "scheduled", func(now time.Time) (time.Time, error) {
		return NextFireInstant(now, tod, s.opts.Location)
	})
}

// Snooze re-arms the last fired command d from now. A non-positive d uses
// the configured snooze delay.
func (s *Scheduler) Snooze(ctx context.Context, d time.Duration) (*alarm.ScheduledAlarm, error) {
	s.mu.Lock()
	cmd := s.lastFired
	s.mu.Unlock()

	if cmd.IsZero() {
		return nil, fmt.Errorf("nothing to snooze: %w", alarm.ErrNoAlarm)
	}

	if d <= 0 {
		d = s.opts.Snooze
	}

	return s.arm(ctx, cmd, "snoozed", func(now time.Time) (time.Time, error) {
		return now.Add(d), nil
	})
}

// arm computes the fire instant, registers it, then releases the superseded
// alarm. Everything happens under the lock so concurrent callers are
// linearized.
func (s *Scheduler) arm(
	ctx context.Context,
	cmd alarm.Command,
	verb string,
	fireAt func(now time.Time) (time.Time, error),
) (*alarm.ScheduledAlarm, error) {
	ctx = logger.WithName(ctx, "scheduler")

	s.mu.Lock()

	now := s.opts.Now()

	at, err := fireAt(now)
	if err != nil {
		s.mu.Unlock()

		return nil, err
	}

	if at.Sub(now) <= 0 {
		s.mu.Unlock()

		return nil, fmt.Errorf("delay %s is not positive: %w", at.Sub(now), alarm.ErrInvariantViolation)
	}

	next := &alarm.ScheduledAlarm{
		ID:      s.opts.NewID(),
		FireAt:  at,
		Command: cmd,
		ArmedAt: now,
	}

	if err = s.registerLocked(next); err != nil {
		s.mu.Unlock()

		return nil, err
	}

	if prev := s.armed; prev != nil {
		_ = s.releaseLocked(ctx, prev)
		s.queueLocked(status.KindCancelled, prev, "superseded")
	}

	s.armed = next
	s.persistLocked(ctx)

	result := next.Clone()
	s.queueLocked(status.KindScheduled, next, verb+" for "+at.Format(time.RFC3339))
	s.mu.Unlock()

	logger.InfoKV(ctx, "Alarm armed",
		"alarm_id", result.ID, "fire_at", result.FireAt, "delay", result.Delay(now), "command", result.Command.String())
	s.events.Flush()

	return result, nil
}

// Cancel disarms the pending alarm. It reports whether one was armed and is
// safe to call any number of times.
func (s *Scheduler) Cancel(ctx context.Context) (bool, error) {
	ctx = logger.WithName(ctx, "scheduler")

	s.mu.Lock()

	prev := s.armed
	if prev == nil {
		s.mu.Unlock()

		return false, nil
	}

	s.armed = nil
	err := s.releaseLocked(ctx, prev)
	s.persistLocked(ctx)
	s.queueLocked(status.KindCancelled, prev, "cancelled")
	s.mu.Unlock()

	logger.InfoKV(ctx, "Alarm cancelled", "alarm_id", prev.ID)
	s.events.Flush()

	return true, err
}

// Claim consumes the armed alarm when alarmID matches it. It returns false
// for an alarm that was cancelled, superseded or already fired.
func (s *Scheduler) Claim(ctx context.Context, alarmID string) bool {
	ctx = logger.WithName(ctx, "scheduler")

	s.mu.Lock()

	fired := s.armed
	if fired == nil || fired.ID != alarmID {
		s.mu.Unlock()

		return false
	}

	s.armed = nil
	s.lastFired = fired.Command
	s.persistLocked(ctx)

	s.queueLocked(status.KindFired, fired, "fired")
	s.mu.Unlock()

	logger.InfoKV(ctx, "Alarm fired", "alarm_id", fired.ID, "command", fired.Command.String())
	s.events.Flush()

	return true
}

// Armed returns a copy of the pending alarm, or nil.
func (s *Scheduler) Armed() *alarm.ScheduledAlarm {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.armed.Clone()
}

// Restore re-arms the alarm persisted before a restart. A past alarm still
// within the lateness window fires right away; an older one is dropped and
// reported as Missed. A corrupt state file is removed and reported as Missed
// too. Restore does nothing when an alarm is already armed.
func (s *Scheduler) Restore(ctx context.Context) (*alarm.ScheduledAlarm, error) {
	if s.repo == nil {
		return nil, nil
	}

	ctx = logger.WithName(ctx, "scheduler")

	persisted, err := s.repo.Load(ctx)

	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil, nil
	case errors.Is(err, repo.ErrCorrupt):
		s.dropCorrupt(ctx, err)

		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load alarm: %w", err)
	}

	s.mu.Lock()

	if s.armed != nil {
		s.mu.Unlock()

		return nil, nil
	}

	now := s.opts.Now()

	if late := now.Sub(persisted.FireAt); late > s.opts.MaxLateness {
		_ = s.repo.Clear(ctx)
		s.queueLocked(status.KindMissed, persisted, fmt.Sprintf("missed by %s", late.Round(time.Second)))
		s.mu.Unlock()

		logger.WarnKV(ctx, "Persisted alarm missed", "alarm_id", persisted.ID, "fire_at", persisted.FireAt, "late", late)
		s.events.Flush()

		return nil, nil
	}

	if err = s.registerLocked(persisted); err != nil {
		s.mu.Unlock()

		return nil, err
	}

	s.armed = persisted
	result := persisted.Clone()
	s.queueLocked(status.KindScheduled, persisted, "restored for "+persisted.FireAt.Format(time.RFC3339))
	s.mu.Unlock()

	logger.InfoKV(ctx, "Alarm restored", "alarm_id", result.ID, "fire_at", result.FireAt)
	s.events.Flush()

	return result, nil
}

// dropCorrupt clears an unreadable state file so the next start is clean.
func (s *Scheduler) dropCorrupt(ctx context.Context, cause error) {
	s.mu.Lock()

	if s.armed != nil {
		s.mu.Unlock()

		return
	}

	if err := s.repo.Clear(ctx); err != nil {
		logger.ErrorKV(ctx, "Failed to clear corrupt alarm state", "error", err)
	}

	s.events.Queue(status.Event{
		Time:    s.opts.Now(),
		Kind:    status.KindMissed,
		Message: "persisted alarm unreadable",
		Err:     cause,
	})
	s.mu.Unlock()

	logger.ErrorKV(ctx, "Persisted alarm unreadable, state cleared", "error", cause)
	s.events.Flush()
}

// registerLocked hands a to the wake bridge and records its handle.
func (s *Scheduler) registerLocked(a *alarm.ScheduledAlarm) error {
	payload, err := wake.Payload{AlarmID: a.ID, Command: a.Command.String()}.Encode()
	if err != nil {
		return err
	}

	h, err := s.bridge.Register(a.FireAt, payload)
	if err != nil {
		return fmt.Errorf("register wake: %w", err)
	}

	a.Handle = string(h)

	return nil
}

func (s *Scheduler) releaseLocked(ctx context.Context, a *alarm.ScheduledAlarm) error {
	if err := s.bridge.Cancel(wake.Handle(a.Handle)); err != nil {
		logger.WarnKV(ctx, "Wake cancel failed", "alarm_id", a.ID, "error", err)

		return fmt.Errorf("cancel wake: %w", err)
	}

	return nil
}

// persistLocked mirrors the armed slot to the repository. Failures are
// logged; the in-memory slot stays authoritative.
func (s *Scheduler) persistLocked(ctx context.Context) {
	if s.repo == nil {
		return
	}

	var err error
	if s.armed != nil {
		err = s.repo.Save(ctx, s.armed)
	} else {
		err = s.repo.Clear(ctx)
	}

	if err != nil {
		logger.ErrorKV(ctx, "Failed to persist alarm", "error", err)
	}
}

// queueLocked records an alarm event. Callers flush it after releasing s.mu.
func (s *Scheduler) queueLocked(kind status.Kind, a *alarm.ScheduledAlarm, msg string) {
	s.events.Queue(status.Event{
		Time:    s.opts.Now(),
		Kind:    kind,
		Message: msg,
		Command: a.Command.String(),
		AlarmID: a.ID,
		FireAt:  a.FireAt,
	})
}

func randomID() string {
	var b [8]byte

	_, _ = rand.Read(b[:])

	return hex.EncodeToString(b[:])
}
