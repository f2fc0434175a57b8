package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/tarm/serial"

	"github.com/mgarridoch/breakfast-alarm/internal/config"
	"github.com/mgarridoch/breakfast-alarm/internal/transport/bluez"
)

// Dialer opens a connection to a target address.
type Dialer interface {
	Dial(ctx context.Context, target string) (io.ReadWriteCloser, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, target string) (io.ReadWriteCloser, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, target string) (io.ReadWriteCloser, error) {
	return f(ctx, target)
}

// TCPDialer dials host:port targets.
type TCPDialer struct {
	Timeout time.Duration
}

// Dial implements Dialer.
func (d TCPDialer) Dial(ctx context.Context, target string) (io.ReadWriteCloser, error) {
	nd := net.Dialer{Timeout: d.Timeout}

	return nd.DialContext(ctx, "tcp", target)
}

// SerialDialer opens serial ports such as /dev/ttyUSB0 or /dev/rfcomm0.
type SerialDialer struct {
	Baud int
}

// Dial implements Dialer. Opening a port does not block, so ctx is only
// checked before the open.
func (d SerialDialer) Dial(ctx context.Context, target string) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port, err := serial.OpenPort(&serial.Config{Name: target, Baud: d.Baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port: %w", err)
	}

	return port, nil
}

// RFCOMMDialer connects the Serial Port Profile of a Bluetooth device
// through BlueZ.
type RFCOMMDialer struct {
	Adapter string
}

// Dial implements Dialer. The target is a MAC address or a BlueZ device path.
func (d RFCOMMDialer) Dial(ctx context.Context, target string) (io.ReadWriteCloser, error) {
	return bluez.Dial(ctx, d.Adapter, target)
}

// NewDialer returns the dialer for the configured transport kind.
func NewDialer(cfg config.TransportConfig) (Dialer, error) {
	switch cfg.Kind {
	case config.TransportTCP:
		return TCPDialer{Timeout: cfg.ConnectTimeout}, nil
	case config.TransportSerial:
		return SerialDialer{Baud: cfg.Baud}, nil
	case config.TransportRFCOMM:
		return RFCOMMDialer{Adapter: cfg.Adapter}, nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

// New builds the stream for cfg.
func New(cfg config.TransportConfig) (*Stream, error) {
	dialer, err := NewDialer(cfg)
	if err != nil {
		return nil, err
	}

	return NewStream(dialer, cfg.WriteTimeout), nil
}
