package status

import (
	"sync"
	"sync/atomic"
)

// defaultSubscriberBuffer is the channel capacity of a subscription.
const defaultSubscriberBuffer = 32

// Bus fans events out to observers and subscribers. Observers are called
// synchronously in attach order, one event at a time; subscribers get a
// buffered channel and miss events while their buffer is full.
type Bus struct {
	mu        sync.Mutex
	observers []Observer
	subs      map[uint64]chan Event
	nextID    uint64
	closed    bool

	dropped atomic.Uint64
}

// NewBus creates a bus with the given observers attached.
func NewBus(observers ...Observer) *Bus {
	b := &Bus{subs: make(map[uint64]chan Event)}
	for _, o := range observers {
		b.Attach(o)
	}

	return b
}

// Attach adds an observer. Nil observers are ignored.
func (b *Bus) Attach(o Observer) {
	if o == nil {
		return
	}

	b.mu.Lock()
	b.observers = append(b.observers, o)
	b.mu.Unlock()
}

// Notify publishes ev to every observer and subscriber.
func (b *Bus) Notify(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, o := range b.observers {
		o.Notify(ev)
	}

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel of future events and a function ending the
// subscription. The channel is closed by the cancel function or by
// CloseSubscriptions. After CloseSubscriptions the channel is closed at once.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}

	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)

		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}

// CloseSubscriptions ends every subscription. Observers keep receiving events.
func (b *Bus) CloseSubscriptions() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Dropped reports how many subscriber deliveries were skipped.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
