package status

import "sync"

// Publisher delivers events to an observer in the order they were queued.
// Producers call Queue while holding the lock that guards the state an event
// describes and Flush after releasing it, so observers see state changes in
// the order they happened even when the observer itself is slow.
//
// Flush never waits for another goroutine's delivery: when a flush is
// already running, the events queued meanwhile are delivered by it.
type Publisher struct {
	observer Observer

	mu       sync.Mutex
	queue    []Event
	flushing bool
}

// NewPublisher creates a publisher in front of o. A nil observer discards
// events.
func NewPublisher(o Observer) *Publisher {
	if o == nil {
		o = Discard
	}

	return &Publisher{observer: o}
}

// PublisherFor returns o when it is already a Publisher and wraps it
// otherwise.
func PublisherFor(o Observer) *Publisher {
	if p, ok := o.(*Publisher); ok && p != nil {
		return p
	}

	return NewPublisher(o)
}

// Queue appends events without delivering them.
func (p *Publisher) Queue(events ...Event) {
	p.mu.Lock()
	p.queue = append(p.queue, events...)
	p.mu.Unlock()
}

// Flush delivers queued events unless another goroutine is already doing so.
func (p *Publisher) Flush() {
	p.mu.Lock()

	if p.flushing {
		p.mu.Unlock()

		return
	}

	p.flushing = true

	for len(p.queue) > 0 {
		ev := p.queue[0]
		p.queue[0] = Event{}
		p.queue = p.queue[1:]

		p.mu.Unlock()
		p.observer.Notify(ev)
		p.mu.Lock()
	}

	p.queue = nil
	p.flushing = false
	p.mu.Unlock()
}

// Notify implements Observer for producers without a lock of their own.
func (p *Publisher) Notify(ev Event) {
	p.Queue(ev)
	p.Flush()
}
