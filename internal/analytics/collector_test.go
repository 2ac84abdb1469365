package analytics

import (
	"context"
	"testing"
	"time"
)

func TestTrackDropsWhenBufferFull(t *testing.T) {
	c := NewCollector(nil, 1)
	c.Track(SearchEvent{Query: "kept"})

	done := make(chan struct{})
	go func() {
		c.Track(SearchEvent{Query: "dropped"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Track blocked on a full buffer")
	}

	if got := len(c.eventCh); got != 1 {
		t.Fatalf("buffered events = %d, want 1", got)
	}
	if ev := <-c.eventCh; ev.Query != "kept" {
		t.Fatalf("retained event %q, want the first one", ev.Query)
	}
}

func TestCollectorCloseAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCollector(nil, 4)
	c.Start(ctx)
	cancel()

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after context cancellation")
	}
}
