package filing

import (
	"sync"
	"time"
)

type EventKind string

const (
	EventFiled      EventKind = "filed"
	EventSkipped    EventKind = "skipped_duplicate"
	EventSuperseded EventKind = "superseded"
	EventWarning    EventKind = "warning"
)

type Event struct {
	Time   time.Time `json:"time"`
	Kind   EventKind `json:"kind"`
	Path   string    `json:"path"`
	Detail string    `json:"detail,omitempty"`
}

const defaultRecentEvents = 200

// Broadcaster fans filing events out to subscribers (the status API's
// websocket stream) and keeps a bounded ring of recent events for polling.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	recent []Event
	limit  int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs:  map[chan Event]struct{}{},
		limit: defaultRecentEvents,
	}
}

func (b *Broadcaster) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recent = append(b.recent, ev)
	if len(b.recent) > b.limit {
		b.recent = b.recent[len(b.recent)-b.limit:]
	}
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop rather than stall the filing action.
		}
	}
}

// Subscribe returns a channel of future events and a cancel function that
// must be called when done.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
	return ch, cancel
}

// Recent returns a copy of the retained event ring, oldest first.
func (b *Broadcaster) Recent() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.recent))
	copy(out, b.recent)
	return out
}
