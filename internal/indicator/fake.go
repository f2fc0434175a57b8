package indicator

import "sync"

// FakeLines records LED states for testing.
type FakeLines struct {
	mu sync.Mutex

	// States holds the last value per LED.
	States map[string]bool
	// Writes counts Set calls.
	Writes int
	// SetError, if set, is returned by Set.
	SetError error
	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeLines creates FakeLines with no LED set.
func NewFakeLines() *FakeLines {
	return &FakeLines{States: make(map[string]bool)}
}

// Set records the LED state.
func (f *FakeLines) Set(name string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Writes++
	if f.SetError != nil {
		return f.SetError
	}

	f.States[name] = on

	return nil
}

// Close marks the lines as closed.
func (f *FakeLines) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()

	return nil
}

// On reports the recorded state of name.
func (f *FakeLines) On(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.States[name]
}
