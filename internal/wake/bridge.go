package wake

import (
	"strconv"
	"sync"
	"time"
)

// Handle identifies one registration for cancellation.
type Handle string

// Bridge is a one-shot wake primitive.
type Bridge interface {
	// Register arranges for payload to be delivered at or after at.
	Register(at time.Time, payload string) (Handle, error)
	// Cancel withdraws a registration. Unknown and fired handles are ignored.
	Cancel(h Handle) error
}

// Receiver is called with a delivered payload.
type Receiver func(payload string)

// TimerBridge is an in-process Bridge backed by time.AfterFunc.
type TimerBridge struct {
	mu       sync.Mutex
	receiver Receiver
	timers   map[Handle]*time.Timer
	next     uint64
}

// NewTimerBridge creates a bridge delivering to receiver.
func NewTimerBridge(receiver Receiver) *TimerBridge {
	return &TimerBridge{
		receiver: receiver,
		timers:   make(map[Handle]*time.Timer),
	}
}

// SetReceiver replaces the payload receiver.
func (b *TimerBridge) SetReceiver(r Receiver) {
	b.mu.Lock()
	b.receiver = r
	b.mu.Unlock()
}

// Register implements Bridge. Instants in the past fire immediately.
func (b *TimerBridge) Register(at time.Time, payload string) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	h := Handle("timer-" + strconv.FormatUint(b.next, 10))

	b.timers[h] = time.AfterFunc(max(time.Until(at), 0), func() {
		b.fire(h, payload)
	})

	return h, nil
}

func (b *TimerBridge) fire(h Handle, payload string) {
	b.mu.Lock()
	_, live := b.timers[h]
	delete(b.timers, h)
	receiver := b.receiver
	b.mu.Unlock()

	if live && receiver != nil {
		receiver(payload)
	}
}

// Cancel implements Bridge.
func (b *TimerBridge) Cancel(h Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.timers[h]; ok {
		t.Stop()
		delete(b.timers, h)
	}

	return nil
}

// Pending returns the number of registrations not yet fired or cancelled.
func (b *TimerBridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.timers)
}

// Stop cancels every registration.
func (b *TimerBridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for h, t := range b.timers {
		t.Stop()
		delete(b.timers, h)
	}
}
