package router

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sheetmind/internal/config"
	"sheetmind/internal/provider"
	"sheetmind/internal/sheet"
	"sheetmind/internal/skills"
	"sheetmind/internal/store"
	"sheetmind/internal/telemetry"
)

// fakeEngine returns canned vectors per text. Unknown texts get a vector
// orthogonal to everything configured.
type fakeEngine struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEngine) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0, 1}, nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return 4 }
func (f *fakeEngine) Name() string    { return "fake" }

func testRegistry(t *testing.T) *skills.Registry {
	t.Helper()
	r, err := skills.NewRegistry(&config.SkillsConfig{MinConfidence: 0.6, MaxSkills: 2})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func testCache(t *testing.T) *store.IntentCache {
	t.Helper()
	c, err := store.NewIntentCache(filepath.Join(t.TempDir(), "intents.db"))
	if err != nil {
		t.Fatalf("NewIntentCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func routingCfg() *config.RoutingConfig {
	return &config.RoutingConfig{CacheSimilarity: 0.85, PromoteConfidence: 0.8}
}

func TestClassifyCacheTierHit(t *testing.T) {
	cache := testCache(t)
	engine := &fakeEngine{vectors: map[string][]float32{
		"translate column B to Spanish": {1, 0, 0, 0},
	}}
	ctx := context.Background()
	err := cache.Upsert(ctx, "translate column B to Spanish", []float32{1, 0, 0, 0}, "formula", "formula_generation", "", 0.9)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// AI tier errors so a miss would be visible as a fallback result.
	ai := &provider.FakeStructuredGenerator{Err: errors.New("should not be reached")}
	r := New(engine, ai, testRegistry(t), nil, routingCfg(), cache)

	cls := r.Classify(ctx, "translate column B to Spanish", nil)
	if cls.Source != SourceCache {
		t.Fatalf("source = %s, want cache", cls.Source)
	}
	if cls.OutputMode != ModeFormula || cls.SkillID != "formula_generation" {
		t.Errorf("classification = %+v", cls)
	}
	if cls.Confidence < 0.99 || cls.Confidence > 1 {
		t.Errorf("confidence = %.4f, want ~1.0 similarity", cls.Confidence)
	}
}

func TestClassifyCacheMissFallsToAI(t *testing.T) {
	cache := testCache(t)
	engine := &fakeEngine{vectors: map[string][]float32{}}
	ai := &provider.FakeStructuredGenerator{Responses: []json.RawMessage{
		json.RawMessage(`{"outputMode": "columns", "skillId": "column_workflow", "confidence": 0.9, "reasoning": "row-wise transform"}`),
	}}
	r := New(engine, ai, testRegistry(t), nil, routingCfg(), cache)

	cls := r.Classify(context.Background(), "classify each lead by industry", nil)
	if cls.Source != SourceAI {
		t.Fatalf("source = %s, want ai", cls.Source)
	}
	if cls.OutputMode != ModeColumns || cls.SkillID != "column_workflow" {
		t.Errorf("classification = %+v", cls)
	}
}

func TestClassifyAICoercesUnknownEnums(t *testing.T) {
	ai := &provider.FakeStructuredGenerator{Responses: []json.RawMessage{
		json.RawMessage(`{"outputMode": "spreadsheet_magic", "skillId": "nonexistent", "sheetAction": "explode", "confidence": 1.7}`),
	}}
	r := New(nil, ai, testRegistry(t), nil, routingCfg())

	cls := r.Classify(context.Background(), "do the thing", nil)
	if cls.OutputMode != ModeChat {
		t.Errorf("unknown outputMode should coerce to chat, got %s", cls.OutputMode)
	}
	if cls.SheetAction != "" || cls.SkillID != "" {
		t.Errorf("unknown enums should be dropped: %+v", cls)
	}
	if cls.Confidence < 0 || cls.Confidence > 1 {
		t.Errorf("confidence = %.2f, want clamped to [0,1]", cls.Confidence)
	}
}

func TestClassifyHeuristicTierNeverErrors(t *testing.T) {
	// Both upper tiers broken.
	engine := &fakeEngine{err: errors.New("embeddings down")}
	ai := &provider.FakeStructuredGenerator{Err: errors.New("llm down")}
	r := New(engine, ai, testRegistry(t), nil, routingCfg(), testCache(t))

	cases := []struct {
		command string
		mode    OutputMode
		action  string
		conf    float64
	}{
		{"Name | Revenue\nAcme | 100\nGlobex | 200", ModeSheet, "writeData", 0.9},
		{"what does this formula do?", ModeChat, "", 0.8},
		{"plot revenue by region", ModeSheet, "chart", 0.7},
		{"bold the header row", ModeSheet, "format", 0.7},
		{"translate column B to Spanish", ModeFormula, "", 0.7},
		{"hmm", ModeChat, "", 0.5},
	}
	for _, tc := range cases {
		cls := r.Classify(context.Background(), tc.command, nil)
		if cls.Source != SourceFallback {
			t.Errorf("%q: source = %s, want fallback", tc.command, cls.Source)
		}
		if cls.OutputMode != tc.mode || cls.SheetAction != tc.action {
			t.Errorf("%q: got %s/%s, want %s/%s", tc.command, cls.OutputMode, cls.SheetAction, tc.mode, tc.action)
		}
		if cls.Confidence != tc.conf {
			t.Errorf("%q: confidence = %.2f, want %.2f", tc.command, cls.Confidence, tc.conf)
		}
	}
}

func TestClassifyConfidenceAlwaysInRange(t *testing.T) {
	ai := &provider.FakeStructuredGenerator{Responses: []json.RawMessage{
		json.RawMessage(`{"outputMode": "chat", "confidence": -3.0}`),
		json.RawMessage(`{"outputMode": "chat", "confidence": 42}`),
	}}
	r := New(nil, ai, nil, nil, routingCfg())
	for i := 0; i < 2; i++ {
		cls := r.Classify(context.Background(), "anything", nil)
		if cls.Confidence < 0 || cls.Confidence > 1 {
			t.Errorf("confidence = %.2f out of range", cls.Confidence)
		}
	}
}

func TestClassifyUsesContextSummaryInPrompt(t *testing.T) {
	ai := &provider.FakeStructuredGenerator{Responses: []json.RawMessage{
		json.RawMessage(`{"outputMode": "chat", "confidence": 0.5}`),
	}}
	r := New(nil, ai, testRegistry(t), nil, routingCfg())

	dataCtx := sheet.NewDataContext(sheet.ContextInput{
		Headers: map[string]string{"A": "Name", "B": "Revenue"},
	})
	r.Classify(context.Background(), "summarize", dataCtx)

	if len(ai.Prompts) != 1 {
		t.Fatalf("prompts = %d, want 1", len(ai.Prompts))
	}
	for _, want := range []string{"Revenue", "column_workflow"} {
		if !containsStr(ai.Prompts[0], want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestLearnFromOutcomePromotesToCacheTier(t *testing.T) {
	cache := testCache(t)
	command := "score each customer by churn risk"
	engine := &fakeEngine{vectors: map[string][]float32{
		command: {0, 1, 0, 0},
	}}
	ai := &provider.FakeStructuredGenerator{Responses: []json.RawMessage{
		json.RawMessage(`{"outputMode": "columns", "skillId": "column_workflow", "confidence": 0.9}`),
	}}

	recorder := telemetry.NewRecorder(&LearningSink{Engine: engine, Cache: cache})
	r := New(engine, ai, testRegistry(t), recorder, routingCfg(), cache)

	ctx := context.Background()
	cls := r.Classify(ctx, command, nil)
	if cls.Source != SourceAI {
		t.Fatalf("first classification source = %s, want ai", cls.Source)
	}

	r.LearnFromOutcome(command, cls, true)
	recorder.Close() // flush the promotion

	second := r.Classify(ctx, command, nil)
	if second.Source != SourceCache {
		t.Fatalf("post-promotion source = %s, want cache", second.Source)
	}
	if second.OutputMode != ModeColumns || second.SkillID != "column_workflow" {
		t.Errorf("promoted classification = %+v", second)
	}
}

func TestLearnFromOutcomeSkipsLowConfidenceAndFailures(t *testing.T) {
	cache := testCache(t)
	engine := &fakeEngine{vectors: map[string][]float32{
		"a": {1, 0, 0, 0}, "b": {0, 1, 0, 0},
	}}
	recorder := telemetry.NewRecorder(&LearningSink{Engine: engine, Cache: cache})
	r := New(engine, nil, nil, recorder, routingCfg(), cache)

	// Below the promotion threshold.
	r.LearnFromOutcome("a", Classification{OutputMode: ModeChat, Confidence: 0.7, Source: SourceAI}, true)
	// High confidence but failed execution.
	r.LearnFromOutcome("b", Classification{OutputMode: ModeChat, Confidence: 0.95, Source: SourceAI}, false)
	recorder.Close()

	stats, err := cache.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if got := stats["total_intents"].(int); got != 0 {
		t.Errorf("cache has %d intents, want 0", got)
	}
}

func TestLearnFromOutcomeNeverBlocks(t *testing.T) {
	r := New(nil, nil, nil, nil, routingCfg())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.LearnFromOutcome("x", Classification{Source: SourceAI, Confidence: 0.9}, true)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("LearnFromOutcome blocked")
	}
}

func containsStr(s, sub string) bool {
	return strings.Contains(s, sub)
}
