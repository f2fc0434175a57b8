package integration

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mgarridoch/breakfast-alarm/internal/api/grpc/control"
	"github.com/mgarridoch/breakfast-alarm/internal/api/http/handler"
	"github.com/mgarridoch/breakfast-alarm/internal/config"
	"github.com/mgarridoch/breakfast-alarm/internal/domain/alarm"
	"github.com/mgarridoch/breakfast-alarm/internal/service/daemon"
	"github.com/mgarridoch/breakfast-alarm/internal/status"
	"github.com/mgarridoch/breakfast-alarm/internal/wake"
)

const (
	waitFor = 5 * time.Second
	tick    = 20 * time.Millisecond
)

// freeAddr reserves a loopback port for a server started later.
func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

type instance struct {
	control string
	http    string
	client  *control.Client
	stop    func()
}

// startDaemon runs breakfast-alarmd against the device with a temporary
// config and the given state file.
func startDaemon(t *testing.T, deviceAddr, statePath string, autoConnect bool) *instance {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	cfgPath := filepath.Join(t.TempDir(), "breakfast-alarm.yaml")

	inst := &instance{control: freeAddr(t), http: freeAddr(t)}

	require.NoError(t, config.Save(cfgPath, &config.Config{
		ControlAddress: inst.control,
		HTTPAddress:    inst.http,
		StateFile:      statePath,
		LogLevel:       "error",
		Timezone:       "UTC",
		Timeout:        3 * time.Second,
		Transport: config.TransportConfig{
			Kind:           config.TransportTCP,
			Target:         deviceAddr,
			ConnectTimeout: 2 * time.Second,
			AutoConnect:    autoConnect,
		},
	}))

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		_ = daemon.Run(ctx, &daemon.Options{ConfigPath: cfgPath, AllowMultiple: true})
	}()

	c, err := control.Dial(ctx, inst.control, control.WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	inst.client = c

	// Wait for the control API to accept calls.
	require.Eventually(t, func() bool {
		_, statusErr := c.Status(ctx)

		return statusErr == nil
	}, waitFor, tick)

	inst.stop = func() {
		_ = c.Close()

		cancel()
		wg.Wait()
	}

	t.Cleanup(inst.stop)

	return inst
}

func (i *instance) state(t *testing.T) alarm.ConnectionState {
	t.Helper()

	snap, err := i.client.Status(context.Background())
	require.NoError(t, err)

	return snap.State
}

// TestDaemon_SendAndReconnect walks the link through connect, send, a
// device hang-up and a reconnect.
func TestDaemon_SendAndReconnect(t *testing.T) {
	t.Parallel()

	dev := startDevice(t)
	inst := startDaemon(t, dev.addr(), filepath.Join(t.TempDir(), "state.json"), false)
	ctx := context.Background()

	err := inst.client.Send(ctx, "START 5")
	require.ErrorIs(t, err, alarm.ErrNotConnected)

	state, err := inst.client.Connect(ctx, "", true)
	require.NoError(t, err)
	require.Equal(t, alarm.Connected, state)

	require.NoError(t, inst.client.Send(ctx, "START 5"))
	require.Eventually(t, func() bool { return len(dev.received()) == 1 }, waitFor, tick)
	require.Equal(t, []string{"START 5"}, dev.received())

	dev.hangUp()
	require.Eventually(t, func() bool { return inst.state(t) == alarm.Disconnected }, waitFor, tick)

	err = inst.client.Send(ctx, "START 6")
	require.ErrorIs(t, err, alarm.ErrNotConnected)

	state, err = inst.client.Connect(ctx, "", true)
	require.NoError(t, err)
	require.Equal(t, alarm.Connected, state)

	require.NoError(t, inst.client.Send(ctx, "START 6"))
	require.Eventually(t, func() bool { return len(dev.received()) == 2 }, waitFor, tick)
	require.Equal(t, []string{"START 5", "START 6"}, dev.received())
}

// TestDaemon_ConnectToDeadTarget reports a refused connect.
func TestDaemon_ConnectToDeadTarget(t *testing.T) {
	t.Parallel()

	inst := startDaemon(t, freeAddr(t), filepath.Join(t.TempDir(), "state.json"), false)

	state, err := inst.client.Connect(context.Background(), "", true)
	require.ErrorIs(t, err, alarm.ErrTransportConnectFailed)
	require.Equal(t, alarm.Disconnected, state)
}

// TestDaemon_WakeDeliversOnce schedules an alarm, delivers its wake payload
// twice and checks the device got the command once.
func TestDaemon_WakeDeliversOnce(t *testing.T) {
	t.Parallel()

	dev := startDevice(t)
	inst := startDaemon(t, dev.addr(), filepath.Join(t.TempDir(), "state.json"), true)
	ctx := context.Background()

	require.Eventually(t, func() bool { return inst.state(t) == alarm.Connected }, waitFor, tick)

	armed, err := inst.client.Schedule(ctx, "07:15", 12)
	require.NoError(t, err)
	require.Equal(t, "START 12", armed.Command)
	require.Positive(t, armed.Delay(time.Now()))

	payload, err := wake.Payload{AlarmID: armed.ID, Command: armed.Command}.Encode()
	require.NoError(t, err)

	require.NoError(t, inst.client.Wake(ctx, payload))
	require.NoError(t, inst.client.Wake(ctx, payload))

	require.Eventually(t, func() bool { return len(dev.received()) == 1 }, waitFor, tick)
	require.Equal(t, []string{"START 12"}, dev.received())

	snap, err := inst.client.Status(ctx)
	require.NoError(t, err)
	require.False(t, snap.Armed())
	require.Equal(t, 1, snap.Counts.Fired)

	// The fired alarm can be snoozed.
	snoozed, err := inst.client.Snooze(ctx, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "START 12", snoozed.Command)

	cancelled, err := inst.client.Stop(ctx)
	require.NoError(t, err)
	require.True(t, cancelled)
	require.Eventually(t, func() bool { return len(dev.received()) == 2 }, waitFor, tick)
	require.Equal(t, "STOP", dev.received()[1])
}

// TestDaemon_AlarmSurvivesRestart persists the armed alarm across a restart.
func TestDaemon_AlarmSurvivesRestart(t *testing.T) {
	t.Parallel()

	statePath := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	first := startDaemon(t, freeAddr(t), statePath, false)

	armed, err := first.client.Schedule(ctx, "05:45", 3)
	require.NoError(t, err)

	first.stop()

	second := startDaemon(t, freeAddr(t), statePath, false)

	snap, err := second.client.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, armed.ID, snap.ArmedID)
	require.Equal(t, "START 3", snap.ArmedCommand)
	require.True(t, snap.ArmedFireAt.Equal(armed.FireAt))

	cancelled, err := second.client.Cancel(ctx)
	require.NoError(t, err)
	require.True(t, cancelled)
}

// TestDaemon_WatchAndHTTP streams device replies and serves the HTTP surface.
func TestDaemon_WatchAndHTTP(t *testing.T) {
	t.Parallel()

	dev := startDevice(t)
	inst := startDaemon(t, dev.addr(), filepath.Join(t.TempDir(), "state.json"), true)

	require.Eventually(t, func() bool { return inst.state(t) == alarm.Connected }, waitFor, tick)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan status.Event, 16)
	done := make(chan error, 1)

	go func() {
		done <- inst.client.Watch(ctx, func(ev status.Event) {
			if ev.Kind != status.KindReceived {
				return
			}

			select {
			case received <- ev:
			default:
			}
		})
	}()

	var ev status.Event

	require.Eventually(t, func() bool {
		dev.say("OK")

		select {
		case ev = <-received:
			return true
		default:
			return false
		}
	}, waitFor, 100*time.Millisecond)

	require.Contains(t, ev.Message, "OK")

	cancel()
	require.NoError(t, <-done)

	body := httpGet(t, "http://"+inst.http+"/status")

	var resp handler.StatusResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, "connected", resp.State)
	require.Equal(t, dev.addr(), resp.Target)

	metrics := string(httpGet(t, "http://"+inst.http+"/metrics"))
	require.True(t, strings.Contains(metrics, "breakfast_"), "metrics exposition has no breakfast_ series")

	require.NotEmpty(t, httpGet(t, "http://"+inst.http+"/healthz"))
}

func httpGet(t *testing.T, url string) []byte {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return body
}
