package router

import (
	"context"

	"sheetmind/internal/embedding"
	"sheetmind/internal/logging"
	"sheetmind/internal/store"
	"sheetmind/internal/telemetry"
)

// =============================================================================
// LEARNING LOOP
// =============================================================================
// Outcomes flow through the telemetry queue, never the response path. The
// LearningSink drains them: outcome events update rolling success rates,
// promotion events embed the command and upsert it into the learned cache.

// LearnFromOutcome records how the executed plan went. AI-sourced
// classifications with confidence at or above the promotion threshold are
// promoted into the cache on success. Returns immediately; all work is
// queued.
func (r *Router) LearnFromOutcome(command string, cls Classification, success bool) {
	if r.recorder == nil {
		return
	}

	r.recorder.Record(telemetry.Event{
		Kind:       "outcome",
		Command:    command,
		SkillID:    cls.SkillID,
		Mode:       string(cls.OutputMode),
		Action:     cls.SheetAction,
		Tier:       string(cls.Source),
		Confidence: cls.Confidence,
		Success:    success,
	})

	if cls.Source == SourceAI && cls.Confidence >= r.promoteConfidence && success {
		logging.RouterDebug("Queueing promotion of %q (%.2f)", truncate(command, 60), cls.Confidence)
		r.recorder.Record(telemetry.Event{
			Kind:       "promotion",
			Command:    command,
			SkillID:    cls.SkillID,
			Mode:       string(cls.OutputMode),
			Action:     cls.SheetAction,
			Confidence: cls.Confidence,
			Success:    true,
		})
	}
}

// LearningSink applies drained telemetry events to the learned cache.
// Failures are logged and swallowed; learning is advisory.
type LearningSink struct {
	Engine embedding.Engine
	Cache  *store.IntentCache
	Next   telemetry.Sink // optional chained sink for all events
}

func (s *LearningSink) Record(ctx context.Context, events []telemetry.Event) error {
	for _, ev := range events {
		switch ev.Kind {
		case "outcome":
			if s.Cache == nil {
				continue
			}
			if err := s.Cache.RecordOutcome(ctx, ev.Command, ev.Success); err != nil {
				logging.Get(logging.CategoryTelemetry).Warn("Outcome write failed: %v", err)
			}
		case "promotion":
			s.promote(ctx, ev)
		}
	}
	if s.Next != nil {
		return s.Next.Record(ctx, events)
	}
	return nil
}

func (s *LearningSink) promote(ctx context.Context, ev telemetry.Event) {
	if s.Engine == nil || s.Cache == nil {
		return
	}
	embed, err := s.Engine.Embed(ctx, ev.Command)
	if err != nil {
		logging.Get(logging.CategoryTelemetry).Warn("Promotion embed failed for %q: %v", ev.Command, err)
		return
	}
	if err := s.Cache.Upsert(ctx, ev.Command, embed, ev.Mode, ev.SkillID, ev.Action, ev.Confidence); err != nil {
		logging.Get(logging.CategoryTelemetry).Warn("Promotion upsert failed for %q: %v", ev.Command, err)
		return
	}
	logging.Router("Promoted %q to intent cache (%s/%s)", ev.Command, ev.Mode, ev.SkillID)
}
