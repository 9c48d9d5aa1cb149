package engine

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"sheetmind/internal/config"
	"sheetmind/internal/planner"
	"sheetmind/internal/provider"
	"sheetmind/internal/router"
	"sheetmind/internal/sheet"
	"sheetmind/internal/skills"
)

func testEngine(t *testing.T, textgen provider.TextGenerator, ai provider.StructuredGenerator) *Engine {
	t.Helper()
	registry, err := skills.NewRegistry(&config.SkillsConfig{MinConfidence: 0.6, MaxSkills: 2})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(func() { registry.Close() })

	rt := router.New(nil, ai, registry, nil, &config.RoutingConfig{CacheSimilarity: 0.85, PromoteConfidence: 0.8})
	return New(rt, registry, textgen, planner.NewParser(0.8), nil)
}

func TestEndToEndTranslateFormula(t *testing.T) {
	dataCtx := sheet.NewDataContext(sheet.ContextInput{
		Headers:     map[string]string{"A": "Name", "B": "Description"},
		DataColumns: []string{"A", "B"},
		RowStart:    2,
		RowEnd:      11,
	})

	textgen := &provider.FakeTextGenerator{Responses: []string{
		"```json\n{\"outputMode\": \"formula\", \"steps\": [{\"formula\": \"=GOOGLETRANSLATE(B{{ROW}}, \\\"auto\\\", \\\"es\\\")\"}]}\n```",
	}}
	ai := &provider.FakeStructuredGenerator{Responses: []json.RawMessage{
		json.RawMessage(`{"outputMode": "formula", "skillId": "formula_generation", "confidence": 0.92}`),
	}}

	e := testEngine(t, textgen, ai)
	res := e.Process(context.Background(), "translate column B to Spanish", dataCtx)

	if res.Plan.OutputMode != "formula" {
		t.Fatalf("outputMode = %s, want formula", res.Plan.OutputMode)
	}
	want := regexp.MustCompile(`GOOGLETRANSLATE\(B\{\{ROW\}\}, "auto", "es"\)`)
	if !want.MatchString(res.Plan.Formula) {
		t.Errorf("formula = %q, want GOOGLETRANSLATE(B{{ROW}}, \"auto\", \"es\")", res.Plan.Formula)
	}
	if res.Classification.Source != router.SourceAI {
		t.Errorf("classification source = %s", res.Classification.Source)
	}
	if res.RequestID == "" {
		t.Error("request id missing")
	}
}

func TestEndToEndClassifyThenSummarize(t *testing.T) {
	dataCtx := sheet.NewDataContext(sheet.ContextInput{
		Headers:      map[string]string{"A": "Lead", "B": "Company", "C": "Notes"},
		DataColumns:  []string{"A", "B", "C"},
		RowStart:     2,
		RowEnd:       21,
		RowCount:     20,
		EmptyColumns: []string{"D", "E", "F", "G"},
	})

	textgen := &provider.FakeTextGenerator{Responses: []string{
		`{"outputMode": "columns", "steps": [
			{"action": "classify", "description": "Classify each lead", "instruction": "classify leads", "outputFormat": "Category"},
			{"action": "summarize", "description": "Summarize by category", "instruction": "summarize by category", "outputFormat": "Summary"}
		]}`,
	}}
	ai := &provider.FakeStructuredGenerator{Responses: []json.RawMessage{
		json.RawMessage(`{"outputMode": "columns", "skillId": "column_workflow", "confidence": 0.88}`),
	}}

	e := testEngine(t, textgen, ai)
	res := e.Process(context.Background(), "classify leads then summarize by category", dataCtx)

	plan := res.Plan
	if plan.OutputMode != "columns" || len(plan.Steps) != 2 {
		t.Fatalf("plan = %+v", plan)
	}
	if plan.Steps[0].OutputColumn != "D" {
		t.Errorf("step 1 output = %s, want D", plan.Steps[0].OutputColumn)
	}
	if got := plan.Steps[0].InputColumns; len(got) != 3 || got[0] != "A" || got[2] != "C" {
		t.Errorf("step 1 inputs = %v, want [A B C]", got)
	}
	found := false
	for _, col := range plan.Steps[1].InputColumns {
		if col == "D" {
			found = true
		}
	}
	if !found {
		t.Errorf("step 2 inputs = %v, must include D", plan.Steps[1].InputColumns)
	}
}

func TestEndToEndProviderFailureStillYieldsPlan(t *testing.T) {
	textgen := &provider.FakeTextGenerator{Err: errors.New("llm down")}
	ai := &provider.FakeStructuredGenerator{Err: errors.New("llm down")}

	e := testEngine(t, textgen, ai)
	res := e.Process(context.Background(), "summarize my data", nil)

	if res.Plan == nil {
		t.Fatal("plan is nil")
	}
	if res.Plan.OutputMode != "columns" || len(res.Plan.Steps) != 2 {
		t.Errorf("fallback plan = %+v", res.Plan)
	}
	if res.Classification.Source != router.SourceFallback {
		t.Errorf("classification source = %s, want fallback", res.Classification.Source)
	}
}

func TestEndToEndVagueCommandChats(t *testing.T) {
	textgen := &provider.FakeTextGenerator{Responses: []string{
		`{"outputMode": "chat", "chatResponse": "What would you like to improve?", "suggestedActions": ["Bold the headers", "Add a chart"]}`,
	}}
	ai := &provider.FakeStructuredGenerator{Responses: []json.RawMessage{
		json.RawMessage(`{"outputMode": "chat", "skillId": "conversational", "confidence": 0.85}`),
	}}

	e := testEngine(t, textgen, ai)
	res := e.Process(context.Background(), "make it look nicer", nil)

	if res.Plan.OutputMode != "chat" {
		t.Fatalf("outputMode = %s, want chat", res.Plan.OutputMode)
	}
	if len(res.Selection.Skills) != 1 || res.Selection.Skills[0].ID != skills.ConversationalSkillID {
		t.Errorf("vague command must select conversational only")
	}
	if len(res.Plan.SuggestedActions) != 2 {
		t.Errorf("suggestedActions = %v", res.Plan.SuggestedActions)
	}
}
