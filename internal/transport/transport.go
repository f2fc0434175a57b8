package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Write on a stream with no open connection.
var ErrClosed = errors.New("transport: connection closed")

// Handler receives transport callbacks. Callbacks run on the transport's
// read goroutine and must not block for long.
type Handler interface {
	// OnRead is called with inbound bytes. The slice is only valid during
	// the call.
	OnRead(p []byte)
	// OnError is called once when connection conn fails. The failure may be
	// reported after conn was closed and replaced, so handlers check
	// Transport.IsOpen(conn) under their own lock before acting on it.
	OnError(conn uint64, err error)
}

// Transport is a persistent byte stream to the device.
type Transport interface {
	// Attach sets the callback receiver. It must be called before Connect.
	Attach(h Handler)
	// Connect opens the stream to target, blocking until it is open, failed
	// or ctx is done.
	Connect(ctx context.Context, target string) error
	// Write writes p completely or returns an error.
	Write(p []byte) error
	// Disconnect closes the stream. It is idempotent.
	Disconnect() error
	// IsOpen reports whether conn identifies the connection that is
	// currently open.
	IsOpen(conn uint64) bool
}
