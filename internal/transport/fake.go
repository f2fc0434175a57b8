package transport

import (
	"context"
	"sync"
)

// Fake is an in-memory Transport for tests. It is safe for concurrent use.
type Fake struct {
	mu sync.Mutex

	handler Handler

	// ConnectErr, if set, is returned by Connect.
	ConnectErr error
	// ConnectGate, if set, makes Connect block until it is closed or ctx is done.
	ConnectGate chan struct{}
	// WriteErr, if set, is returned by Write instead of recording the frame.
	WriteErr error

	targets     []string
	writes      [][]byte
	disconnects int
	conn        uint64
	open        bool
}

// NewFake creates an empty fake.
func NewFake() *Fake {
	return &Fake{}
}

// Attach implements Transport.
func (f *Fake) Attach(h Handler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

// Connect implements Transport.
func (f *Fake) Connect(ctx context.Context, target string) error {
	f.mu.Lock()
	f.targets = append(f.targets, target)
	gate := f.ConnectGate
	err := f.ConnectErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn++
	f.open = true
	f.mu.Unlock()

	return nil
}

// Write implements Transport.
func (f *Fake) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteErr != nil {
		return f.WriteErr
	}

	f.writes = append(f.writes, append([]byte(nil), p...))

	return nil
}

// Disconnect implements Transport.
func (f *Fake) Disconnect() error {
	f.mu.Lock()
	f.disconnects++
	f.open = false
	f.mu.Unlock()

	return nil
}

// IsOpen implements Transport.
func (f *Fake) IsOpen(conn uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.open && f.conn == conn
}

// Conn returns the id of the most recent successful connection.
func (f *Fake) Conn() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.conn
}

// SetWriteErr changes WriteErr under the lock.
func (f *Fake) SetWriteErr(err error) {
	f.mu.Lock()
	f.WriteErr = err
	f.mu.Unlock()
}

// SetConnectErr changes ConnectErr under the lock.
func (f *Fake) SetConnectErr(err error) {
	f.mu.Lock()
	f.ConnectErr = err
	f.mu.Unlock()
}

// Inject delivers inbound bytes to the attached handler.
func (f *Fake) Inject(p []byte) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()

	if h != nil {
		h.OnRead(p)
	}
}

// Fail reports an error on the most recent connection to the attached
// handler.
func (f *Fake) Fail(err error) {
	f.FailConn(f.Conn(), err)
}

// FailConn reports an error on connection conn, which may be stale.
func (f *Fake) FailConn(conn uint64, err error) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()

	if h != nil {
		h.OnError(conn, err)
	}
}

// Writes returns a copy of every frame written so far.
func (f *Fake) Writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([][]byte, len(f.writes))
	copy(out, f.writes)

	return out
}

// Targets returns every connect target so far.
func (f *Fake) Targets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.targets...)
}

// Disconnects returns the number of Disconnect calls.
func (f *Fake) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.disconnects
}
