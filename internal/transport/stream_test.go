package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mgarridoch/breakfast-alarm/internal/config"
)

// chanHandler forwards callbacks to channels.
type chanHandler struct {
	reads  chan string
	errors chan error
}

func newChanHandler() *chanHandler {
	return &chanHandler{
		reads:  make(chan string, 8),
		errors: make(chan error, 8),
	}
}

func (h *chanHandler) OnRead(p []byte) { h.reads <- string(p) }

func (h *chanHandler) OnError(_ uint64, err error) { h.errors <- err }

// deviceStub accepts one TCP connection and exposes its lines.
func deviceStub(t *testing.T) (string, <-chan string, <-chan net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	lines := make(chan string, 8)
	conns := make(chan net.Conn, 1)

	go func() {
		c, acceptErr := ln.Accept()
		if acceptErr != nil {
			return
		}

		conns <- c

		sc := bufio.NewScanner(c)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	return ln.Addr().String(), lines, conns
}

// TestStream_TCPRoundTrip writes a frame, receives a reply and sees the peer close.
func TestStream_TCPRoundTrip(t *testing.T) {
	t.Parallel()

	addr, lines, conns := deviceStub(t)

	h := newChanHandler()
	s := NewStream(TCPDialer{Timeout: time.Second}, time.Second)
	s.Attach(h)

	require.NoError(t, s.Connect(context.Background(), addr))
	require.NoError(t, s.Write([]byte("START 5\n")))
	require.Equal(t, "START 5", <-lines)

	peer := <-conns
	_, err := peer.Write([]byte("OK\n"))
	require.NoError(t, err)
	require.Equal(t, "OK\n", <-h.reads)

	require.NoError(t, peer.Close())

	select {
	case err = <-h.errors:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("peer close was not reported")
	}
}

// TestStream_DisconnectIsSilent checks a local close raises no OnError and later writes fail.
func TestStream_DisconnectIsSilent(t *testing.T) {
	t.Parallel()

	addr, _, _ := deviceStub(t)

	h := newChanHandler()
	s := NewStream(TCPDialer{}, 0)
	s.Attach(h)

	require.NoError(t, s.Connect(context.Background(), addr))
	require.NoError(t, s.Disconnect())
	require.NoError(t, s.Disconnect())
	require.ErrorIs(t, s.Write([]byte("STOP\n")), ErrClosed)

	select {
	case err := <-h.errors:
		t.Fatalf("unexpected error callback: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestStream_DialFailure wraps the dialer error.
func TestStream_DialFailure(t *testing.T) {
	t.Parallel()

	errDial := errors.New("no route")

	s := NewStream(DialerFunc(func(context.Context, string) (io.ReadWriteCloser, error) {
		return nil, errDial
	}), 0)

	err := s.Connect(context.Background(), "device")
	require.ErrorIs(t, err, errDial)
	require.ErrorIs(t, s.Write([]byte("x\n")), ErrClosed)
}

// TestNewDialer picks a dialer per kind.
func TestNewDialer(t *testing.T) {
	t.Parallel()

	d, err := NewDialer(config.TransportConfig{Kind: config.TransportTCP, ConnectTimeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, TCPDialer{Timeout: time.Second}, d)

	d, err = NewDialer(config.TransportConfig{Kind: config.TransportSerial, Baud: 9600})
	require.NoError(t, err)
	require.Equal(t, SerialDialer{Baud: 9600}, d)

	d, err = NewDialer(config.TransportConfig{Kind: config.TransportRFCOMM, Adapter: "hci1"})
	require.NoError(t, err)
	require.Equal(t, RFCOMMDialer{Adapter: "hci1"}, d)

	_, err = NewDialer(config.TransportConfig{Kind: "carrier-pigeon"})
	require.Error(t, err)
}

// TestFake_Concurrent exercises the fake from several goroutines.
func TestFake_Concurrent(t *testing.T) {
	t.Parallel()

	f := NewFake()

	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_ = f.Write([]byte("STOP\n"))
		}()
	}

	wg.Wait()
	require.Len(t, f.Writes(), 10)
}

// TestStream_IsOpenTracksConnection reports only the latest connection as open.
func TestStream_IsOpenTracksConnection(t *testing.T) {
	t.Parallel()

	first, _, _ := deviceStub(t)
	second, _, _ := deviceStub(t)

	s := NewStream(TCPDialer{}, 0)
	s.Attach(newChanHandler())

	require.NoError(t, s.Connect(context.Background(), first))

	s.mu.Lock()
	old := s.gen
	s.mu.Unlock()

	require.True(t, s.IsOpen(old))

	require.NoError(t, s.Connect(context.Background(), second))
	t.Cleanup(func() { _ = s.Disconnect() })

	s.mu.Lock()
	current := s.gen
	s.mu.Unlock()

	require.False(t, s.IsOpen(old))
	require.True(t, s.IsOpen(current))

	require.NoError(t, s.Disconnect())
	require.False(t, s.IsOpen(current))
}
