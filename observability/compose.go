package observability

import (
	"context"
	"slices"
	"sync"
)

// NoOpObserver discards all events.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(ctx context.Context, event Event) {}

// MultiObserver fans out events to multiple observers in order.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates a MultiObserver that forwards events to all
// non-nil observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	return &MultiObserver{
		observers: slices.DeleteFunc(slices.Clone(observers), func(o Observer) bool {
			return o == nil
		}),
	}
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}

// CaptureObserver records every event it receives. Used to assert on emitted
// events; safe for concurrent use.
type CaptureObserver struct {
	events []Event
	mu     sync.Mutex
}

func (c *CaptureObserver) OnEvent(ctx context.Context, event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

// Events returns a copy of the recorded events.
func (c *CaptureObserver) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.events)
}

// OfType returns the recorded events of the given type.
func (c *CaptureObserver) OfType(typ EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Event
	for _, e := range c.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Reset discards the recorded events.
func (c *CaptureObserver) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
