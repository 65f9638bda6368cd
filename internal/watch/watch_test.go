package watch

import (
	"context"
	"testing"
	"time"
)

func TestChangedBlocksUntilSend(t *testing.T) {
	sender, recv := NewChannel(0)

	done := make(chan error, 1)
	go func() {
		done <- recv.Changed(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("Changed returned before any Send")
	case <-time.After(20 * time.Millisecond):
	}

	sender.Send(1)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Changed did not wake up after Send")
	}

	if got := recv.Borrow(); got != 1 {
		t.Fatalf("expected borrowed value 1, got %d", got)
	}
}

func TestChangedRespectsContextCancellation(t *testing.T) {
	_, recv := NewChannel("x")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := recv.Changed(ctx); err == nil {
		t.Fatal("expected context deadline error, got nil")
	}
}

func TestSubscribeOnlySeesFutureValues(t *testing.T) {
	sender, _ := NewChannel(1)
	sender.Send(2)

	late := sender.Subscribe()
	if late.HasChanged() {
		t.Fatal("freshly subscribed receiver should not report a pending change")
	}

	sender.Send(3)
	if !late.HasChanged() {
		t.Fatal("expected HasChanged to report the new value")
	}
	if got := late.Borrow(); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestMultipleReceiversEachObserveChange(t *testing.T) {
	sender, r1 := NewChannel(0)
	r2 := sender.Subscribe()

	sender.Send(5)

	for _, r := range []*Receiver[int]{r1, r2} {
		if err := r.Changed(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := r.Borrow(); got != 5 {
			t.Fatalf("expected 5, got %d", got)
		}
	}
}
