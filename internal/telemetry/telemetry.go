// Package telemetry records routing and execution outcomes on a bounded
// background queue. Recording never blocks the request path: when the queue
// is full the event is dropped and counted, not queued.
package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sheetmind/internal/logging"
)

// Event is one recorded outcome.
type Event struct {
	Kind       string // "route", "outcome", "promotion", "execution"
	Command    string // truncated original command
	SkillID    string
	Mode       string // classified output mode
	Action     string // classified sheet action, if any
	Tier       string // which classifier tier answered: "cache", "ai", "fallback"
	Confidence float64
	Success    bool
	LatencyMS  int64
	Timestamp  time.Time
}

// Sink receives drained events. Implementations must tolerate bursts.
type Sink interface {
	Record(ctx context.Context, events []Event) error
}

// Recorder is the bounded async queue in front of a Sink.
type Recorder struct {
	queue   chan Event
	sink    Sink
	dropped atomic.Int64

	flushEvery time.Duration
	batchMax   int

	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

const (
	defaultQueueSize  = 256
	defaultFlushEvery = 5 * time.Second
	defaultBatchMax   = 64
)

// NewRecorder starts the drain goroutine. Call Close to flush and stop it.
func NewRecorder(sink Sink) *Recorder {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Recorder{
		queue:      make(chan Event, defaultQueueSize),
		sink:       sink,
		flushEvery: defaultFlushEvery,
		batchMax:   defaultBatchMax,
		cancel:     cancel,
	}
	r.wg.Add(1)
	go r.drain(ctx)
	return r
}

// Record enqueues an event without blocking. Full queue drops the event.
func (r *Recorder) Record(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case r.queue <- ev:
	default:
		n := r.dropped.Add(1)
		if n%100 == 1 {
			logging.Get(logging.CategoryTelemetry).Warn("Telemetry queue full, %d events dropped so far", n)
		}
	}
}

// Dropped reports how many events were discarded due to backpressure.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close flushes pending events and stops the drain goroutine.
func (r *Recorder) Close() {
	r.once.Do(func() {
		r.cancel()
		r.wg.Wait()
	})
}

func (r *Recorder) drain(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.flushEvery)
	defer ticker.Stop()

	batch := make([]Event, 0, r.batchMax)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.sink.Record(flushCtx, batch); err != nil {
			logging.Get(logging.CategoryTelemetry).Warn("Telemetry flush failed: %v", err)
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case ev := <-r.queue:
			batch = append(batch, ev)
			if len(batch) >= r.batchMax {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			// Drain whatever is still queued, then final flush.
			for {
				select {
				case ev := <-r.queue:
					batch = append(batch, ev)
					if len(batch) >= r.batchMax {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// LogSink writes events to the telemetry log category. Used when no
// persistent sink is configured.
type LogSink struct{}

func (LogSink) Record(_ context.Context, events []Event) error {
	for _, ev := range events {
		logging.Telemetry("%s kind=%s skill=%s tier=%s success=%t latency=%dms",
			ev.Command, ev.Kind, ev.SkillID, ev.Tier, ev.Success, ev.LatencyMS)
	}
	return nil
}
