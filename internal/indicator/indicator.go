// Package indicator drives status LEDs from status events.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package indicator

import (
	"sync"

	"github.com/mgarridoch/breakfast-alarm/internal/status"
)

// LED names.
const (
	LEDLink  = "link"
	LEDArmed = "armed"
)

// Lines sets LED outputs.
type Lines interface {
	// Set lights (true) or darkens (false) the named LED.
	// Unknown names are ignored.
	Set(name string, on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Indicator is a status.Observer lighting the link LED while Connected and
// the armed LED while an alarm is armed.
type Indicator struct {
	lines Lines

	mu      sync.Mutex
	lastErr error
}

// New creates an indicator with both LEDs off.
func New(lines Lines) *Indicator {
	ind := &Indicator{lines: lines}
	ind.set(LEDLink, false)
	ind.set(LEDArmed, false)

	return ind
}

// Notify implements status.Observer.
func (ind *Indicator) Notify(ev status.Event) {
	switch ev.Kind {
	case status.KindConnecting, status.KindConnected, status.KindDisconnected:
		ind.set(LEDLink, ev.State.Writable())
	case status.KindScheduled:
		ind.set(LEDArmed, true)
	case status.KindCancelled, status.KindFired, status.KindMissed:
		ind.set(LEDArmed, false)
	default:
	}
}

// Err returns the last GPIO error, if any.
func (ind *Indicator) Err() error {
	ind.mu.Lock()
	defer ind.mu.Unlock()

	return ind.lastErr
}

// Close darkens both LEDs and releases the lines.
func (ind *Indicator) Close() error {
	ind.set(LEDLink, false)
	ind.set(LEDArmed, false)

	return ind.lines.Close()
}

func (ind *Indicator) set(name string, on bool) {
	if err := ind.lines.Set(name, on); err != nil {
		ind.mu.Lock()
		ind.lastErr = err
		ind.mu.Unlock()
	}
}
