package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// readBufferSize is the chunk size of the read loop.
const readBufferSize = 512

// writeDeadliner is implemented by connections supporting write deadlines,
// like net.Conn and pollable os.File.
type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Stream is a Transport over connections produced by a Dialer.
type Stream struct {
	dialer       Dialer
	writeTimeout time.Duration

	mu      sync.Mutex
	handler Handler
	conn    io.ReadWriteCloser
	gen     uint64
}

// NewStream creates a stream. A zero writeTimeout disables write deadlines.
func NewStream(dialer Dialer, writeTimeout time.Duration) *Stream {
	return &Stream{
		dialer:       dialer,
		writeTimeout: writeTimeout,
	}
}

// Attach implements Transport.
func (s *Stream) Attach(h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Connect implements Transport. An already open connection is closed first.
func (s *Stream) Connect(ctx context.Context, target string) error {
	if err := s.Disconnect(); err != nil {
		return err
	}

	conn, err := s.dialer.Dial(ctx, target)
	if err != nil {
		return fmt.Errorf("dial %q: %w", target, err)
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		_ = conn.Close()

		return fmt.Errorf("dial %q: %w", target, ctx.Err())
	}

	s.gen++
	gen := s.gen
	s.conn = conn
	handler := s.handler
	s.mu.Unlock()

	go s.readLoop(conn, gen, handler)

	return nil
}

// Write implements Transport.
func (s *Stream) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrClosed
	}

	if d, ok := s.conn.(writeDeadliner); ok && s.writeTimeout > 0 {
		// Files without poller support report an error here and are
		// written without a deadline.
		_ = d.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}

	_, err := s.conn.Write(p)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	return nil
}

// Disconnect implements Transport.
func (s *Stream) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.gen++
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	if err := conn.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}

// IsOpen implements Transport.
func (s *Stream) IsOpen(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.gen == gen && s.conn != nil
}

func (s *Stream) readLoop(conn io.Reader, gen uint64, h Handler) {
	buf := make([]byte, readBufferSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 && h != nil && s.IsOpen(gen) {
			h.OnRead(buf[:n])
		}

		if err == nil {
			continue
		}

		// A locally closed connection is not a failure.
		if !s.IsOpen(gen) {
			return
		}

		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("peer closed the stream: %w", err)
		}

		if h != nil {
			h.OnError(gen, err)
		}

		return
	}
}
