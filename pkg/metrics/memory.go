package metrics

import "sync"

// InMemoryObserver collects events for inspection in tests.
type InMemoryObserver struct {
	mu     sync.Mutex
	events []MetricsEvent
}

func NewInMemoryObserver() *InMemoryObserver {
	return &InMemoryObserver{}
}

func (o *InMemoryObserver) RecordEvent(ev MetricsEvent) {
	o.mu.Lock()
	o.events = append(o.events, ev)
	o.mu.Unlock()
}

// Events returns a copy of recorded events.
func (o *InMemoryObserver) Events() []MetricsEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]MetricsEvent, len(o.events))
	copy(out, o.events)
	return out
}

// CountByName returns how many events with the given name were recorded.
func (o *InMemoryObserver) CountByName(name string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, ev := range o.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}
