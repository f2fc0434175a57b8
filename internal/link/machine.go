package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/logger"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
	"github.com/mgarridoch/breakfast-alarm/internal/transport"
)

// DefaultConnectTimeout bounds a connect attempt when none is configured.
const DefaultConnectTimeout = 15 * time.Second

// ErrNoTarget is returned by Connect when neither the call nor a previous
// connect supplied a target.
var ErrNoTarget = errors.New("no connect target")

// Machine is the connection state machine. It is safe for concurrent use.
type Machine struct {
	transport      transport.Transport
	events         *status.Publisher
	connectTimeout time.Duration
	now            func() time.Time
	logCtx         context.Context //nolint:containedctx // Callbacks arrive without a request context.

	mu      sync.Mutex
	state   alarm.ConnectionState
	target  string
	epoch   uint64
	cancel  context.CancelFunc
	settled chan struct{}
}

// Option tunes a Machine.
type Option func(*Machine)

// WithConnectTimeout bounds every connect attempt.
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.connectTimeout = d
		}
	}
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithTarget presets the target used by Connect calls without one.
func WithTarget(target string) Option {
	return func(m *Machine) {
		m.target = target
	}
}

// New creates a Disconnected machine and attaches it to t as the callback
// handler. A nil observer discards events. Events are queued under the
// machine lock, so passing a shared *status.Publisher orders them with the
// other producers using it.
func New(t transport.Transport, observer status.Observer, opts ...Option) *Machine {
	m := &Machine{
		transport:      t,
		events:         status.PublisherFor(observer),
		connectTimeout: DefaultConnectTimeout,
		now:            time.Now,
		logCtx:         logger.WithName(context.Background(), "link"),
		state:          alarm.Disconnected,
		settled:        closedChan(),
	}

	for _, opt := range opts {
		opt(m)
	}

	t.Attach(m)

	return m
}

// State returns the current state.
func (m *Machine) State() alarm.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// IsWritable reports whether a write would currently reach the transport.
func (m *Machine) IsWritable() bool {
	return m.State().Writable()
}

// Target returns the last connect target.
func (m *Machine) Target() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.target
}

// Connect moves Disconnected to Connecting and starts the transport connect
// in the background. An empty target reuses the previous one. Calling
// Connect while Connecting or Connected does nothing.
//
// The attempt runs under its own timeout and outlives ctx; only Disconnect
// cancels it.
func (m *Machine) Connect(ctx context.Context, target string) error {
	m.mu.Lock()

	if m.state != alarm.Disconnected {
		state := m.state
		m.mu.Unlock()

		logger.DebugKV(m.logCtx, "Connect ignored", "state", state)

		return nil
	}

	if target == "" {
		target = m.target
	}

	if target == "" {
		m.mu.Unlock()

		return ErrNoTarget
	}

	m.target = target
	m.state = alarm.Connecting
	m.epoch++
	epoch := m.epoch

	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.connectTimeout)
	m.cancel = cancel
	m.settled = make(chan struct{})
	m.queueLocked(status.KindConnecting, "connecting to "+target, nil)
	m.mu.Unlock()

	m.events.Flush()
	logger.InfoKV(m.logCtx, "Connecting", "target", target, "timeout", m.connectTimeout)

	go m.runConnect(attemptCtx, cancel, epoch, target)

	return nil
}

func (m *Machine) runConnect(ctx context.Context, cancel context.CancelFunc, epoch uint64, target string) {
	err := m.transport.Connect(ctx, target)

	cancel()

	m.mu.Lock()

	if epoch != m.epoch {
		// Superseded by Disconnect. A late success is torn down unless a
		// newer attempt already owns the transport.
		if err == nil && m.state == alarm.Disconnected {
			_ = m.transport.Disconnect()
		}

		m.mu.Unlock()

		logger.DebugKV(m.logCtx, "Stale connect result discarded", "target", target, "error", err)

		return
	}

	if err != nil {
		err = fmt.Errorf("connect %s: %w: %w", target, alarm.ErrTransportConnectFailed, err)
		m.state = alarm.Disconnected
		m.queueLocked(status.KindDisconnected, "connect failed", err)
	} else {
		m.state = alarm.Connected
		m.queueLocked(status.KindConnected, "ready", nil)
	}

	m.cancel = nil
	settled := m.settled
	m.mu.Unlock()

	if err != nil {
		logger.WarnKV(m.logCtx, "Connect failed", "target", target, "error", err)
	} else {
		logger.InfoKV(m.logCtx, "Connected", "target", target)
	}

	// Await returns after the outcome has been handed to observers, unless
	// another goroutine is delivering events at the same time.
	m.events.Flush()

	m.mu.Lock()
	closeOnce(settled)
	m.mu.Unlock()
}

// Await blocks until no connect attempt is in flight or ctx is done, and
// returns the state at that point.
func (m *Machine) Await(ctx context.Context) alarm.ConnectionState {
	m.mu.Lock()
	settled := m.settled
	m.mu.Unlock()

	select {
	case <-settled:
	case <-ctx.Done():
	}

	return m.State()
}

// Disconnect moves any state to Disconnected, cancelling an in-flight
// connect. It is idempotent.
func (m *Machine) Disconnect() error {
	m.mu.Lock()

	if m.state == alarm.Disconnected {
		m.mu.Unlock()

		return nil
	}

	m.state = alarm.Disconnected
	m.epoch++
	m.settleLocked()

	err := m.transport.Disconnect()
	m.queueLocked(status.KindDisconnected, "disconnected", nil)
	target := m.target
	m.mu.Unlock()

	logger.InfoKV(m.logCtx, "Disconnected", "target", target)
	m.events.Flush()

	if err != nil {
		return fmt.Errorf("transport disconnect: %w", err)
	}

	return nil
}

// HandleIoError tears a Connected link down after a transport failure.
// It does nothing in any other state.
func (m *Machine) HandleIoError(cause error) {
	m.mu.Lock()

	if m.state != alarm.Connected {
		m.mu.Unlock()

		return
	}

	m.tearDownLocked(cause)
}

// tearDownLocked moves Connected to Disconnected and releases m.mu.
func (m *Machine) tearDownLocked(cause error) {
	m.state = alarm.Disconnected
	m.epoch++

	_ = m.transport.Disconnect()

	err := fmt.Errorf("%w: %w", alarm.ErrTransportIO, cause)
	m.queueLocked(status.KindDisconnected, "connection lost", err)
	m.mu.Unlock()

	logger.WarnKV(m.logCtx, "Connection lost", "error", cause)
	m.events.Flush()
}

// Write sends frame if and only if the link is Connected. The gate check and
// the transport write are atomic with respect to state changes.
func (m *Machine) Write(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Writable() {
		return fmt.Errorf("link is %s: %w", m.state, alarm.ErrNotConnected)
	}

	return m.transport.Write(frame)
}

// OnRead implements transport.Handler. Inbound data is informational.
func (m *Machine) OnRead(p []byte) {
	text := strings.TrimRight(string(p), "\r\n")

	logger.DebugKV(m.logCtx, "Received", "data", text)

	m.mu.Lock()
	m.queueLocked(status.KindReceived, text, nil)
	m.mu.Unlock()

	m.events.Flush()
}

// OnError implements transport.Handler. A failure of a connection the
// transport has already replaced is ignored.
func (m *Machine) OnError(conn uint64, err error) {
	m.mu.Lock()

	if m.state != alarm.Connected || !m.transport.IsOpen(conn) {
		m.mu.Unlock()

		logger.DebugKV(m.logCtx, "Stale transport error ignored", "error", err)

		return
	}

	m.tearDownLocked(err)
}

// queueLocked records an event for the current state. Callers flush it after
// releasing m.mu.
func (m *Machine) queueLocked(kind status.Kind, msg string, err error) {
	m.events.Queue(status.Event{
		Time:    m.now(),
		Kind:    kind,
		Message: msg,
		State:   m.state,
		Err:     err,
	})
}

// settleLocked ends the current connect attempt, if any.
func (m *Machine) settleLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	closeOnce(m.settled)
}

// closeOnce closes ch unless it is already closed. Callers hold m.mu.
func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}
