package broadcast

import (
	"fmt"
	"testing"
)

func entry(id, user, msg string) Entry {
	return Entry{ID: id, Username: user, Message: msg, Direction: DirectionIncoming, Transport: "twitch"}
}

func TestHistoryBound(t *testing.T) {
	b := New(500, "twitch")
	for i := 1; i <= 501; i++ {
		b.Append(entry(fmt.Sprintf("id-%d", i), "user", fmt.Sprintf("msg %d", i)))
	}
	hist := b.History()
	if len(hist) != 500 {
		t.Fatalf("history length = %d, want 500", len(hist))
	}
	if hist[0].ID != "id-2" {
		t.Errorf("oldest entry = %s, want id-2 (id-1 evicted)", hist[0].ID)
	}
	if hist[len(hist)-1].ID != "id-501" {
		t.Errorf("newest entry = %s, want id-501", hist[len(hist)-1].ID)
	}
	for i, e := range hist {
		if want := fmt.Sprintf("id-%d", i+2); e.ID != want {
			t.Fatalf("entry %d = %s, want %s (order broken)", i, e.ID, want)
		}
	}
}

func TestSubscribeReplaysHistoryThenLive(t *testing.T) {
	b := New(100, "twitch")
	b.Append(entry("a", "u1", "first"))
	b.Append(entry("b", "u2", "second"))

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Append(entry("c", "u3", "third"))

	var got []string
	for i := 0; i < 3; i++ {
		ev := <-sub.C
		if ev.Kind != EventEntry {
			t.Fatalf("event %d kind = %s, want entry", i, ev.Kind)
		}
		got = append(got, ev.Entry.ID)
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery order = %v, want %v", got, want)
		}
	}
}

func TestSubscriberNeverSeesDuplicateIDs(t *testing.T) {
	b := New(50, "twitch")
	for i := 0; i < 20; i++ {
		b.Append(entry(fmt.Sprintf("pre-%d", i), "u", "m"))
	}
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)
	for i := 0; i < 20; i++ {
		b.Append(entry(fmt.Sprintf("live-%d", i), "u", "m"))
	}

	seen := make(map[string]bool)
	for i := 0; i < 40; i++ {
		ev := <-sub.C
		if seen[ev.Entry.ID] {
			t.Fatalf("duplicate id delivered: %s", ev.Entry.ID)
		}
		seen[ev.Entry.ID] = true
	}
}

func TestClearBroadcastsSignal(t *testing.T) {
	b := New(10, "twitch")
	b.Append(entry("a", "u", "m"))
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)
	<-sub.C // replayed entry

	b.Clear()
	ev := <-sub.C
	if ev.Kind != EventClear {
		t.Fatalf("event kind = %s, want clear", ev.Kind)
	}
	if len(b.History()) != 0 {
		t.Errorf("history not empty after clear: %d entries", len(b.History()))
	}
}

func TestStalledSubscriberIsDropped(t *testing.T) {
	b := New(2, "twitch")
	sub := b.Subscribe()
	// Never read: fill the buffer past capacity+slack so delivery fails.
	for i := 0; i < 2+subscriberSlack+10; i++ {
		b.Append(entry(fmt.Sprintf("id-%d", i), "u", "m"))
	}
	if n := b.SubscriberCount(); n != 0 {
		t.Fatalf("subscriber count = %d, want 0 (stalled subscriber dropped)", n)
	}
	// Drain: channel must be closed.
	for range sub.C {
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New(10, "twitch")
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	if n := b.SubscriberCount(); n != 0 {
		t.Fatalf("subscriber count = %d, want 0", n)
	}
	// Appends after removal must not panic or block.
	b.Append(entry("x", "u", "m"))
}

func TestNormalizeDefaults(t *testing.T) {
	b := New(10, "sim")

	e := b.Normalize(RawEntry{Message: "hello"})
	if e.ID == "" {
		t.Error("expected generated id")
	}
	if e.Username != "unknown" {
		t.Errorf("username = %q, want unknown", e.Username)
	}
	if e.Direction != DirectionIncoming {
		t.Errorf("direction = %q, want incoming", e.Direction)
	}
	if e.Transport != "sim" {
		t.Errorf("transport = %q, want sim", e.Transport)
	}
	if e.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}

	e2 := b.Normalize(RawEntry{Message: "hello", Direction: "bogus"})
	if e2.Direction != DirectionIncoming {
		t.Errorf("unknown direction coerced to %q, want incoming", e2.Direction)
	}

	e3 := b.Normalize(RawEntry{ID: "given", Username: "bob", Message: "x", Direction: "outgoing", Transport: "twitch"})
	if e3.ID != "given" || e3.Username != "bob" || e3.Direction != DirectionOutgoing || e3.Transport != "twitch" {
		t.Errorf("explicit fields not preserved: %+v", e3)
	}

	if a, b2 := b.Normalize(RawEntry{Message: "x"}), b.Normalize(RawEntry{Message: "y"}); a.ID == b2.ID {
		t.Error("generated ids collide")
	}
}
