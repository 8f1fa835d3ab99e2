package broadcast

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction classifies a chat entry relative to the local service.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
	DirectionSystem   Direction = "system"
)

// Entry is one normalized unit of chat activity. It is immutable once created;
// the history buffer owns it thereafter.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Direction Direction `json:"direction"`
	Transport string    `json:"transport"`
	Queued    bool      `json:"queued,omitempty"`
}

// RawEntry is loosely-typed input accepted from local senders and the chat
// feed before normalization.
type RawEntry struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Direction string `json:"direction"`
	Transport string `json:"transport"`
}

// Normalize builds an Entry from loosely-typed input. Unknown directions
// coerce to incoming, a missing transport falls back to the broadcaster's
// default label, and a missing username becomes the literal "unknown".
func (b *Broadcaster) Normalize(raw RawEntry) Entry {
	e := Entry{
		ID:        raw.ID,
		Timestamp: time.Now().UTC(),
		Username:  raw.Username,
		Message:   raw.Message,
		Transport: raw.Transport,
	}
	if e.ID == "" {
		e.ID = newEntryID()
	}
	if e.Username == "" {
		e.Username = "unknown"
	}
	switch Direction(raw.Direction) {
	case DirectionOutgoing:
		e.Direction = DirectionOutgoing
	case DirectionSystem:
		e.Direction = DirectionSystem
	default:
		e.Direction = DirectionIncoming
	}
	if e.Transport == "" {
		e.Transport = b.defaultTransport
	}
	return e
}

// newEntryID produces a unique, roughly monotonic id suitable for client-side
// dedup: millisecond timestamp plus a random suffix.
func newEntryID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
