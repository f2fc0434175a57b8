package integration

import (
	"bufio"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// device is a TCP stand-in for the breakfast machine. It records every line
// it receives and can talk back or hang up.
type device struct {
	lis net.Listener

	mu    sync.Mutex
	lines []string
	conns []net.Conn
}

// startDevice listens on a loopback port until the test ends.
func startDevice(t *testing.T) *device {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	d := &device{lis: lis}

	go d.accept()

	t.Cleanup(func() {
		_ = lis.Close()
		d.hangUp()
	})

	return d
}

func (d *device) addr() string {
	return d.lis.Addr().String()
}

func (d *device) accept() {
	for {
		conn, err := d.lis.Accept()
		if err != nil {
			return
		}

		d.mu.Lock()
		d.conns = append(d.conns, conn)
		d.mu.Unlock()

		go d.read(conn)
	}
}

func (d *device) read(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		d.mu.Lock()
		d.lines = append(d.lines, scanner.Text())
		d.mu.Unlock()
	}
}

// received returns the lines read so far.
func (d *device) received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.lines...)
}

// say writes a line to every open connection.
func (d *device) say(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, c := range d.conns {
		_, _ = c.Write([]byte(line + "\n"))
	}
}

// hangUp closes every open connection.
func (d *device) hangUp() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, c := range d.conns {
		_ = c.Close()
	}

	d.conns = nil
}
