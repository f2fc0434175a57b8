//go:build linux

package indicator

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealLines drives LEDs through the Linux GPIO character device.
type RealLines struct {
	chip  *gpiocdev.Chip
	lines map[string]*gpiocdev.Line
}

// NewRealLines requests the non-zero pins as outputs, initially low.
func NewRealLines(chipName string, linkPin, armedPin int) (*RealLines, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealLines{
		chip:  chip,
		lines: make(map[string]*gpiocdev.Line, 2),
	}

	for name, pin := range map[string]int{LEDLink: linkPin, LEDArmed: armedPin} {
		if pin == 0 {
			continue
		}

		line, reqErr := chip.RequestLine(pin, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("breakfast-alarm"))
		if reqErr != nil {
			_ = r.Close()

			return nil, fmt.Errorf("request %s pin %d: %w", name, pin, reqErr)
		}

		r.lines[name] = line
	}

	return r, nil
}

// Set implements Lines.
func (r *RealLines) Set(name string, on bool) error {
	line, ok := r.lines[name]
	if !ok {
		return nil
	}

	value := 0
	if on {
		value = 1
	}

	if err := line.SetValue(value); err != nil {
		return fmt.Errorf("set %s pin: %w", name, err)
	}

	return nil
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealLines) Close() error {
	var errs []error

	for name, line := range r.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}

	r.lines = nil

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}

		r.chip = nil
	}

	return errors.Join(errs...)
}
