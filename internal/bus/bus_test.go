package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	b.Publish(Event{Kind: "session.status_changed", Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "session.status_changed" {
			t.Errorf("got kind %q, want session.status_changed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindStatusChanged})
	b.Publish(Event{Kind: KindSyncStarted})

	select {
	case evt := <-ch:
		if evt.Kind != KindSyncStarted {
			t.Errorf("got kind %q, want %s", evt.Kind, KindSyncStarted)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure session event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	unsub()

	b.Publish(Event{Kind: "session.status_changed"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	if b.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", b.Dropped())
	}
}

func TestWarn(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(KindWarning, 10)
	defer unsub()

	b.Warn("send_failed", "Could not send message.", "02abc")

	select {
	case evt := <-ch:
		if evt.Kind != "warning.send_failed" {
			t.Errorf("got kind %q, want warning.send_failed", evt.Kind)
		}
		w, ok := evt.Payload.(Warning)
		if !ok || w.Pubkey != "02abc" || w.Message != "Could not send message." {
			t.Errorf("payload = %#v", evt.Payload)
		}
		if evt.ID == "" || evt.Timestamp.IsZero() {
			t.Error("Warn should stamp id and timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for warning")
	}
}

func TestNilBusPublish(t *testing.T) {
	var b *Bus
	// Must not panic.
	b.Emit(KindSyncStarted, nil)
}
