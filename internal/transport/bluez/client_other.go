//go:build !linux

package bluez

import (
	"context"
	"io"
)

// Dial is not available on non-Linux platforms.
func Dial(context.Context, string, string) (io.ReadWriteCloser, error) {
	return nil, ErrUnsupported
}

// Scan is not available on non-Linux platforms.
func Scan(context.Context, string) ([]Device, error) {
	return nil, ErrUnsupported
}
