package store

import (
	"testing"
)

func TestMailbox_LatestWins(t *testing.T) {
	box := newMailbox[int]()
	box.put(1)
	box.put(2)
	box.put(3)

	if got := <-box.ch; got != 3 {
		t.Errorf("received %d, want 3", got)
	}
	select {
	case v := <-box.ch:
		t.Errorf("unexpected extra value %d", v)
	default:
	}
}

func TestWatch_Close(t *testing.T) {
	released := 0
	w := NewWatch[int](func() error {
		released++
		return nil
	})
	w.Deliver(1)

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if released != 1 {
		t.Errorf("release called %d times, want 1", released)
	}

	// Delivering after close must not panic.
	w.Deliver(2)

	// A pending value is still readable, then the channel reports closed.
	if v, ok := <-w.Events(); !ok || v != 1 {
		t.Errorf("pending value = %d, %v; want 1, true", v, ok)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("Events() should be closed after Close")
	}
}
