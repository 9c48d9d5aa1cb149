package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Record(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestRecorderFlushesOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &captureSink{}
	r := NewRecorder(sink)
	for i := 0; i < 10; i++ {
		r.Record(Event{Kind: "route", SkillID: "formula_generation", Success: true})
	}
	r.Close()

	if got := sink.count(); got != 10 {
		t.Errorf("flushed %d events, want 10", got)
	}
	if r.Dropped() != 0 {
		t.Errorf("dropped = %d, want 0", r.Dropped())
	}
}

func TestRecorderNeverBlocksWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	// A sink that stalls so the queue backs up.
	block := make(chan struct{})
	sink := &stallSink{release: block}
	r := NewRecorder(sink)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < defaultQueueSize*2; i++ {
			r.Record(Event{Kind: "route"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full queue")
	}
	close(block)
	r.Close()

	if r.Dropped() == 0 {
		t.Error("expected drops when queue overflows")
	}
}

type stallSink struct {
	release chan struct{}
}

func (s *stallSink) Record(ctx context.Context, _ []Event) error {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil
}

func TestRecorderCloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRecorder(&captureSink{})
	r.Record(Event{Kind: "promotion"})
	r.Close()
	r.Close()
}

func TestRecorderStampsTimestamp(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &captureSink{}
	r := NewRecorder(sink)
	r.Record(Event{Kind: "execution"})
	r.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 1 {
		t.Fatalf("got %d events, want 1", len(sink.events))
	}
	if sink.events[0].Timestamp.IsZero() {
		t.Error("timestamp was not stamped")
	}
}
