// Package broadcast owns the bounded chat history and the set of live stream
// subscribers. Appends, evictions and deliveries happen as one atomic step so
// no subscriber ever observes history mid-mutation, sees a duplicate, or
// misses an entry between backlog replay and the live stream.
package broadcast

import (
	"log/slog"
	"sync"

	"github.com/onnwee/streambridge/telemetry"
)

// EventKind distinguishes entry deliveries from out-of-band signals.
type EventKind string

const (
	// EventEntry carries one chat entry.
	EventEntry EventKind = "entry"
	// EventClear instructs subscribers to discard all rendered entries and
	// any client-side dedup state.
	EventClear EventKind = "clear"
)

// Event is one unit delivered to a subscriber.
type Event struct {
	Kind  EventKind
	Entry Entry
}

// subscriberSlack is extra channel buffer beyond the history capacity so a
// subscriber can absorb a full replay plus a burst of live entries before it
// is considered stalled.
const subscriberSlack = 256

// Subscriber is one live observer of the broadcast stream. Receive from C
// until it is closed; the channel closes when the subscriber is removed.
type Subscriber struct {
	C  <-chan Event
	ch chan Event
}

// Broadcaster fans chat entries out to subscribers while keeping a bounded
// FIFO history for replay.
type Broadcaster struct {
	mu               sync.Mutex
	capacity         int
	defaultTransport string
	history          []Entry
	subs             map[*Subscriber]struct{}
}

// New creates a Broadcaster with the given history capacity and default
// transport label for normalized entries.
func New(capacity int, defaultTransport string) *Broadcaster {
	if capacity <= 0 {
		capacity = 500
	}
	if defaultTransport == "" {
		defaultTransport = "twitch"
	}
	return &Broadcaster{
		capacity:         capacity,
		defaultTransport: defaultTransport,
		subs:             make(map[*Subscriber]struct{}),
	}
}

// Append stores the entry at the tail of history, evicting the oldest entry
// when capacity would be exceeded, then delivers it to every live subscriber.
// A stalled subscriber is dropped; its failure never blocks the others.
func (b *Broadcaster) Append(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.history) >= b.capacity {
		copy(b.history, b.history[1:])
		b.history = b.history[:len(b.history)-1]
	}
	b.history = append(b.history, e)
	telemetry.CountEntry(string(e.Direction))
	b.deliverLocked(Event{Kind: EventEntry, Entry: e})
}

// DefaultTransport returns the transport label applied to entries that omit
// one. It identifies the transport the live chat session serves.
func (b *Broadcaster) DefaultTransport() string {
	return b.defaultTransport
}

// History returns a snapshot of the current history in append order.
func (b *Broadcaster) History() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.history))
	copy(out, b.history)
	return out
}

// Clear empties history and broadcasts the clear signal so subscribers drop
// their dedup state.
func (b *Broadcaster) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = b.history[:0]
	if telemetry.HistoryClears != nil {
		telemetry.HistoryClears.Inc()
	}
	b.deliverLocked(Event{Kind: EventClear})
}

// Subscribe registers a new subscriber and preloads the entire current history
// into its channel before any live entry can be delivered, so the subscriber
// never perceives a gap between backlog and live stream.
func (b *Broadcaster) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := b.capacity + subscriberSlack
	if n := len(b.history) + subscriberSlack; n > buf {
		buf = n
	}
	sub := &Subscriber{ch: make(chan Event, buf)}
	sub.C = sub.ch
	for _, e := range b.history {
		sub.ch <- Event{Kind: EventEntry, Entry: e}
	}
	b.subs[sub] = struct{}{}
	telemetry.SetSubscribers(len(b.subs))
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call more
// than once.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropLocked(sub)
}

// SubscriberCount returns the number of live subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) deliverLocked(ev Event) {
	var stalled []*Subscriber
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			stalled = append(stalled, sub)
		}
	}
	for _, sub := range stalled {
		slog.Warn("dropping stalled chat subscriber")
		b.dropLocked(sub)
	}
}

func (b *Broadcaster) dropLocked(sub *Subscriber) {
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
	telemetry.SetSubscribers(len(b.subs))
}
