package wake

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/mgarridoch/breakfast-alarm/internal/dispatcher"
	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/link"
	"github.com/mgarridoch/breakfast-alarm/internal/transport"
)

// delivered collects payloads from timer goroutines.
type delivered struct {
	mu       sync.Mutex
	payloads []string
}

func (d *delivered) receive(p string) {
	d.mu.Lock()
	d.payloads = append(d.payloads, p)
	d.mu.Unlock()
}

func (d *delivered) all() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.payloads...)
}

// TestTimerBridge_FiresOnceAtOrAfter delivers the payload at the registered instant.
func TestTimerBridge_FiresOnceAtOrAfter(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		got := &delivered{}
		b := NewTimerBridge(got.receive)

		_, err := b.Register(time.Now().Add(time.Hour), "a")
		require.NoError(t, err)
		require.Equal(t, 1, b.Pending())

		time.Sleep(time.Hour - time.Nanosecond)
		synctest.Wait()
		require.Empty(t, got.all())

		time.Sleep(time.Nanosecond)
		synctest.Wait()
		require.Equal(t, []string{"a"}, got.all())
		require.Zero(t, b.Pending())
	})
}

// TestTimerBridge_PastInstantFiresImmediately covers late registrations.
func TestTimerBridge_PastInstantFiresImmediately(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		got := &delivered{}
		b := NewTimerBridge(got.receive)

		_, err := b.Register(time.Now().Add(-time.Minute), "late")
		require.NoError(t, err)

		synctest.Wait()
		require.Equal(t, []string{"late"}, got.all())
	})
}

// TestTimerBridge_CancelIdempotent suppresses delivery and tolerates repeats.
func TestTimerBridge_CancelIdempotent(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		got := &delivered{}
		b := NewTimerBridge(got.receive)

		h, err := b.Register(time.Now().Add(time.Minute), "a")
		require.NoError(t, err)

		other, err := b.Register(time.Now().Add(2*time.Minute), "b")
		require.NoError(t, err)
		require.NotEqual(t, h, other)

		require.NoError(t, b.Cancel(h))
		require.NoError(t, b.Cancel(h))
		require.NoError(t, b.Cancel("unknown"))

		time.Sleep(3 * time.Minute)
		synctest.Wait()
		require.Equal(t, []string{"b"}, got.all())

		require.NoError(t, b.Cancel(other))

		_, err = b.Register(time.Now().Add(time.Minute), "c")
		require.NoError(t, err)
		b.Stop()

		time.Sleep(2 * time.Minute)
		synctest.Wait()
		require.Equal(t, []string{"b"}, got.all())
	})
}

// TestPayload_Codec round-trips and rejects malformed input.
func TestPayload_Codec(t *testing.T) {
	t.Parallel()

	raw, err := Payload{AlarmID: "a1", Command: "START 5"}.Encode()
	require.NoError(t, err)

	p, err := DecodePayload(raw)
	require.NoError(t, err)
	require.Equal(t, Payload{AlarmID: "a1", Command: "START 5"}, p)

	_, err = DecodePayload("")
	require.ErrorIs(t, err, ErrEmptyPayload)

	for _, bad := range []string{"garbage", `{"alarm_id": "a1"}`, `{"command": "STOP"}`, `[]`} {
		_, err = DecodePayload(bad)
		require.ErrorIs(t, err, ErrBadPayload, bad)
	}
}

// claimOnce is a Claimer accepting one id a single time.
type claimOnce struct {
	mu  sync.Mutex
	id  string
	got []string
}

func (c *claimOnce) Claim(_ context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.got = append(c.got, id)
	if id != c.id {
		return false
	}

	c.id = ""

	return true
}

// wired is an adapter over the real link, dispatcher and a fake transport.
type wired struct {
	adapter *Adapter
	machine *link.Machine
	fake    *transport.Fake
	claimer *claimOnce
}

func newWired(t *testing.T, connectOnWake bool) *wired {
	t.Helper()

	w := &wired{fake: transport.NewFake(), claimer: &claimOnce{id: "a1"}}
	w.machine = link.New(w.fake, nil, link.WithTarget("device"))

	opts := []AdapterOption{WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} })}
	if connectOnWake {
		opts = append(opts, WithConnectOnWake(w.machine, 3))
	}

	w.adapter = NewAdapter(w.claimer, dispatcher.New(w.machine, nil), opts...)

	return w
}

func encode(t *testing.T, id, cmd string) string {
	t.Helper()

	raw, err := Payload{AlarmID: id, Command: cmd}.Encode()
	require.NoError(t, err)

	return raw
}

// TestAdapter_SendsWhenConnected dispatches the payload command once.
func TestAdapter_SendsWhenConnected(t *testing.T) {
	t.Parallel()

	w := newWired(t, false)
	require.NoError(t, w.machine.Connect(context.Background(), ""))
	w.machine.Await(context.Background())

	raw := encode(t, "a1", "START 5")

	require.NoError(t, w.adapter.OnWake(context.Background(), raw))
	require.NoError(t, w.adapter.OnWake(context.Background(), raw))

	require.Equal(t, [][]byte{[]byte("START 5\n")}, w.fake.Writes())
	require.Equal(t, []string{"a1", "a1"}, w.claimer.got)
}

// TestAdapter_DisconnectedFailsCleanly yields ErrNotConnected and writes nothing.
func TestAdapter_DisconnectedFailsCleanly(t *testing.T) {
	t.Parallel()

	w := newWired(t, false)

	err := w.adapter.OnWake(context.Background(), encode(t, "a1", "START 5"))
	require.ErrorIs(t, err, alarm.ErrNotConnected)
	require.Empty(t, w.fake.Writes())
	require.Empty(t, w.fake.Targets())
}

// TestAdapter_IgnoresGarbage never claims or sends for malformed payloads.
func TestAdapter_IgnoresGarbage(t *testing.T) {
	t.Parallel()

	w := newWired(t, false)

	require.ErrorIs(t, w.adapter.OnWake(context.Background(), ""), ErrEmptyPayload)
	require.ErrorIs(t, w.adapter.OnWake(context.Background(), "{"), ErrBadPayload)
	require.Empty(t, w.claimer.got)
}

// TestAdapter_ConnectOnWake brings the link up before sending.
func TestAdapter_ConnectOnWake(t *testing.T) {
	t.Parallel()

	w := newWired(t, true)

	require.NoError(t, w.adapter.OnWake(context.Background(), encode(t, "a1", "START 5")))
	require.Equal(t, alarm.Connected, w.machine.State())
	require.Equal(t, [][]byte{[]byte("START 5\n")}, w.fake.Writes())
}

// TestAdapter_ConnectOnWakeGivesUp stops after the configured attempts.
func TestAdapter_ConnectOnWakeGivesUp(t *testing.T) {
	t.Parallel()

	w := newWired(t, true)
	w.fake.SetConnectErr(errors.New("out of range"))

	err := w.adapter.OnWake(context.Background(), encode(t, "a1", "START 5"))
	require.ErrorIs(t, err, alarm.ErrNotConnected)
	require.Len(t, w.fake.Targets(), 3)
	require.Empty(t, w.fake.Writes())
}
