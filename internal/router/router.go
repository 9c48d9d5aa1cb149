package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sheetmind/internal/config"
	"sheetmind/internal/embedding"
	"sheetmind/internal/logging"
	"sheetmind/internal/provider"
	"sheetmind/internal/sheet"
	"sheetmind/internal/skills"
	"sheetmind/internal/store"
	"sheetmind/internal/telemetry"
)

// =============================================================================
// ROUTER
// =============================================================================

// Router is the three-tier intent classifier.
type Router struct {
	engine   embedding.Engine
	caches   []*store.IntentCache
	ai       provider.StructuredGenerator
	registry *skills.Registry
	recorder *telemetry.Recorder

	cacheSimilarity   float64
	promoteConfidence float64
}

// New builds a router. Any dependency may be nil; the corresponding tier is
// simply skipped. caches may hold both a read-only seed cache and the
// learned cache; they are searched in parallel and the best match wins.
func New(engine embedding.Engine, ai provider.StructuredGenerator, registry *skills.Registry,
	recorder *telemetry.Recorder, cfg *config.RoutingConfig, caches ...*store.IntentCache) *Router {

	r := &Router{
		engine:            engine,
		caches:            caches,
		ai:                ai,
		registry:          registry,
		recorder:          recorder,
		cacheSimilarity:   cfg.CacheSimilarity,
		promoteConfidence: cfg.PromoteConfidence,
	}
	if r.cacheSimilarity <= 0 {
		r.cacheSimilarity = 0.85
	}
	if r.promoteConfidence <= 0 {
		r.promoteConfidence = 0.8
	}
	return r
}

// Classify runs the cascade. It never returns an error: the heuristic tier
// answers when everything above it failed.
func (r *Router) Classify(ctx context.Context, command string, dataCtx *sheet.DataContext) Classification {
	timer := logging.StartTimer(logging.CategoryRouter, "Classify")
	defer timer.Stop()

	start := time.Now()

	if cls, ok := r.classifyFromCache(ctx, command); ok {
		r.recordRoute(command, cls, start)
		return cls
	}

	cls, err := r.classifyWithAI(ctx, command, dataCtx)
	if err == nil {
		r.recordRoute(command, cls, start)
		return cls
	}
	logging.Router("AI classification failed, using heuristics: %v", err)

	cls = classifyHeuristically(command)
	r.recordRoute(command, cls, start)
	return cls
}

func (r *Router) recordRoute(command string, cls Classification, start time.Time) {
	if r.recorder == nil {
		return
	}
	r.recorder.Record(telemetry.Event{
		Kind:       "route",
		Command:    truncate(command, 120),
		SkillID:    cls.SkillID,
		Mode:       string(cls.OutputMode),
		Action:     cls.SheetAction,
		Tier:       string(cls.Source),
		Confidence: cls.Confidence,
		LatencyMS:  time.Since(start).Milliseconds(),
	})
}

// =============================================================================
// TIER 1: EMBEDDING CACHE
// =============================================================================

// classifyFromCache embeds the command and searches every configured cache
// concurrently. Embedding failure skips the semantic path entirely.
func (r *Router) classifyFromCache(ctx context.Context, command string) (Classification, bool) {
	if r.engine == nil || len(r.caches) == 0 {
		return Classification{}, false
	}

	embed, err := r.engine.Embed(ctx, command)
	if err != nil {
		logging.RouterDebug("Embedding failed, skipping cache tier: %v", err)
		return Classification{}, false
	}

	matches := make([]*store.Match, len(r.caches))
	g, gctx := errgroup.WithContext(ctx)
	for i, cache := range r.caches {
		g.Go(func() error {
			m, err := cache.FindSimilar(gctx, embed, r.cacheSimilarity)
			if err != nil {
				logging.RouterDebug("Cache search failed: %v", err)
				return nil
			}
			matches[i] = m
			return nil
		})
	}
	_ = g.Wait()

	var best *store.Match
	for _, m := range matches {
		if m != nil && (best == nil || m.Similarity > best.Similarity) {
			best = m
		}
	}
	if best == nil {
		return Classification{}, false
	}

	logging.Router("Cache hit (%.4f) for %q -> %s/%s",
		best.Similarity, truncate(command, 60), best.Intent.OutputMode, best.Intent.SkillID)

	return Classification{
		OutputMode:  OutputMode(best.Intent.OutputMode),
		SkillID:     best.Intent.SkillID,
		SheetAction: best.Intent.SheetAction,
		Confidence:  clampConfidence(best.Similarity),
		Source:      SourceCache,
		Reasoning:   fmt.Sprintf("similar to cached %q", best.Intent.Command),
	}, true
}

// =============================================================================
// TIER 2: AI CLASSIFICATION
// =============================================================================

var classificationSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"outputMode": {"type": "string", "enum": ["sheet", "formula", "chat", "columns", "workflow"]},
		"skillId": {"type": "string"},
		"sheetAction": {"type": "string"},
		"confidence": {"type": "number"},
		"reasoning": {"type": "string"}
	},
	"required": ["outputMode", "confidence"]
}`)

const classifySystem = `You classify spreadsheet assistant commands. Decide the execution
strategy for one command. Respond with ONLY the JSON object, no prose.

outputMode meanings:
- chat: answer or clarify in conversation, nothing touches the sheet
- formula: a single native spreadsheet formula solves it
- sheet: one native sheet action (chart, format, conditionalFormat, dataValidation, filter, writeData, createTable, sheetOps)
- columns: an AI transformation over every data row, writing new columns
- workflow: a saved multi-step workflow template applies`

// classifyWithAI issues one low-temperature structured call and validates
// the result against the closed vocabularies. Unknown enum values are
// coerced to chat rather than rejected.
func (r *Router) classifyWithAI(ctx context.Context, command string, dataCtx *sheet.DataContext) (Classification, error) {
	if r.ai == nil {
		return Classification{}, fmt.Errorf("no structured generator configured")
	}

	var b strings.Builder
	b.WriteString("Command: ")
	b.WriteString(command)
	b.WriteString("\n\n")
	if dataCtx != nil {
		b.WriteString("Sheet context:\n")
		b.WriteString(dataCtx.Summary())
		b.WriteString("\n\n")
	}
	if r.registry != nil {
		b.WriteString("Available skills:\n")
		for _, line := range r.registry.CapabilitySummaries() {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	raw, err := r.ai.CompleteStructured(ctx, classificationSchema, classifySystem, b.String())
	if err != nil {
		return Classification{}, fmt.Errorf("classification call: %w", err)
	}

	var parsed struct {
		OutputMode  string  `json:"outputMode"`
		SkillID     string  `json:"skillId"`
		SheetAction string  `json:"sheetAction"`
		Confidence  float64 `json:"confidence"`
		Reasoning   string  `json:"reasoning"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Classification{}, fmt.Errorf("classification response: %w", err)
	}

	cls := Classification{
		OutputMode:  OutputMode(parsed.OutputMode),
		SkillID:     parsed.SkillID,
		SheetAction: parsed.SheetAction,
		Confidence:  clampConfidence(parsed.Confidence),
		Source:      SourceAI,
		Reasoning:   parsed.Reasoning,
	}

	if !validOutputModes[cls.OutputMode] {
		logging.Router("Unknown outputMode %q coerced to chat", parsed.OutputMode)
		cls.OutputMode = ModeChat
		cls.SheetAction = ""
	}
	if cls.SheetAction != "" && !validSheetActions[cls.SheetAction] {
		logging.Router("Unknown sheetAction %q dropped", cls.SheetAction)
		cls.SheetAction = ""
	}
	if cls.SkillID != "" && r.registry != nil && r.registry.Get(cls.SkillID) == nil {
		logging.Router("Unknown skillId %q dropped", cls.SkillID)
		cls.SkillID = ""
	}

	return cls, nil
}

// =============================================================================
// TIER 3: HEURISTICS
// =============================================================================

// classifyHeuristically is the last line of defense. It never fails and
// always returns a value, applying structural patterns in priority order.
func classifyHeuristically(command string) Classification {
	lower := strings.ToLower(command)

	switch {
	case looksLikeTable(command):
		return heuristic(ModeSheet, "write_data", "writeData", 0.9, "literal table or CSV data detected")
	case looksLikeQuestion(command):
		return heuristic(ModeChat, skills.ConversationalSkillID, "", 0.8, "question phrasing")
	case containsAny(lower, "chart", "graph", "plot", "visualize", "visualise"):
		return heuristic(ModeSheet, "chart_creation", "chart", 0.7, "chart keywords")
	case containsAny(lower, "bold", "italic", "highlight", "color", "colour", "format", "background"):
		return heuristic(ModeSheet, "cell_formatting", "format", 0.7, "formatting keywords")
	case containsAny(lower, "translate", "uppercase", "lowercase", "extract"):
		return heuristic(ModeFormula, "formula_generation", "", 0.7, "formula keywords")
	default:
		return heuristic(ModeChat, skills.ConversationalSkillID, "", 0.5, "no pattern matched")
	}
}

func heuristic(mode OutputMode, skillID, action string, conf float64, reason string) Classification {
	return Classification{
		OutputMode:  mode,
		SkillID:     skillID,
		SheetAction: action,
		Confidence:  conf,
		Source:      SourceFallback,
		Reasoning:   reason,
	}
}

var tableSeps = []string{"|", "\t"}

func looksLikeTable(command string) bool {
	lines := strings.Split(command, "\n")
	delimited := 0
	for _, line := range lines {
		for _, sep := range tableSeps {
			if strings.Count(line, sep) >= 1 && strings.TrimSpace(line) != "" {
				delimited++
				break
			}
		}
		if strings.Count(line, ",") >= 2 {
			delimited++
		}
	}
	return delimited >= 2
}

func looksLikeQuestion(command string) bool {
	trimmed := strings.TrimSpace(command)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, prefix := range []string{"what ", "why ", "how ", "when ", "which ", "who ", "can you ", "could you ", "is there ", "are there ", "does ", "do you "} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
