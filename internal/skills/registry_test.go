package skills

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sheetmind/internal/analyzer"
	"sheetmind/internal/config"
	"sheetmind/internal/sheet"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(&config.SkillsConfig{MinConfidence: 0.6, MaxSkills: 2})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func testCtx() *sheet.DataContext {
	return sheet.NewDataContext(sheet.ContextInput{
		Headers: map[string]string{"A": "Name", "B": "Revenue"},
	})
}

func TestSelectVagueForcesConversationalOnly(t *testing.T) {
	r := testRegistry(t)
	cmd := "make the chart data look better somehow"
	a := analyzer.Analyze(cmd, nil)
	if a.Type != analyzer.TypeVague {
		t.Fatalf("precondition: type = %s, want vague", a.Type)
	}

	sel := r.Select(cmd, testCtx(), a)
	if len(sel.Skills) != 1 || sel.Skills[0].ID != ConversationalSkillID {
		t.Errorf("vague command selected %v, want conversational only", skillIDs(sel.Skills))
	}
	if !sel.VagueOverride {
		t.Error("expected VagueOverride flag")
	}
}

func TestSelectSpecificCommandGetsActionSkill(t *testing.T) {
	r := testRegistry(t)
	cmd := "translate column B to Spanish"
	sel := r.Select(cmd, testCtx(), analyzer.Analyze(cmd, nil))
	if !containsSkill(sel.Skills, "formula_generation") {
		t.Errorf("selected %v, want formula_generation", skillIDs(sel.Skills))
	}
	if sel.VagueOverride {
		t.Error("specific command must not trigger vague override")
	}
}

func TestSelectCapsAtTwoSkills(t *testing.T) {
	r := testRegistry(t)
	cmd := "create a bar chart of Revenue and bold the headers and add a dropdown validation"
	sel := r.Select(cmd, testCtx(), analyzer.Analysis{Type: analyzer.TypeComposite})
	if len(sel.Skills) > 2 {
		t.Errorf("selected %d skills, want <= 2", len(sel.Skills))
	}
}

func TestSelectSkipsConflictingSkill(t *testing.T) {
	r := testRegistry(t)
	// Literal data plus chart keywords: write_data scores 0.95 first, chart
	// conflicts with it and must be skipped.
	cmd := "add this and chart it:\nName | Revenue\nAcme | 100"
	sel := r.Select(cmd, testCtx(), analyzer.Analysis{Type: analyzer.TypeSpecific})
	if containsSkill(sel.Skills, "write_data") && containsSkill(sel.Skills, "chart_creation") {
		t.Errorf("conflicting skills selected together: %v", skillIDs(sel.Skills))
	}
	if !containsSkill(sel.Skills, "write_data") {
		t.Errorf("selected %v, want write_data first", skillIDs(sel.Skills))
	}
}

func TestSelectFallsBackToConversational(t *testing.T) {
	r := testRegistry(t)
	sel := r.Select("zzzzz qqqqq", testCtx(), analyzer.Analysis{Type: analyzer.TypeSpecific})
	if len(sel.Skills) != 1 || sel.Skills[0].ID != ConversationalSkillID {
		t.Errorf("selected %v, want conversational fallback", skillIDs(sel.Skills))
	}
}

func TestSelectTokenCostAccumulates(t *testing.T) {
	r := testRegistry(t)
	cmd := "translate column B to Spanish"
	sel := r.Select(cmd, testCtx(), analyzer.Analyze(cmd, nil))
	want := 0
	for _, sk := range sel.Skills {
		want += sk.TokenCost
	}
	if sel.EstimatedTokenCost != want {
		t.Errorf("token cost = %d, want %d", sel.EstimatedTokenCost, want)
	}
}

func TestAssemblePromptIncludesInstructionsAndExamples(t *testing.T) {
	r := testRegistry(t)
	cmd := "translate column B to Spanish"
	sel := r.Select(cmd, testCtx(), analyzer.Analyze(cmd, nil))
	prompt := r.AssemblePrompt(sel, cmd)

	if !contains(prompt, "formula_generation") {
		t.Error("prompt missing skill header")
	}
	if !contains(prompt, "GOOGLETRANSLATE") {
		t.Error("prompt missing translate example")
	}
	// The uppercase example has no keyword overlap with this command.
	if contains(prompt, "=UPPER(") {
		t.Error("irrelevant example leaked into prompt")
	}
}

func TestOverridesFileAppliesAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overrides.yaml")
	write := func(instructions string) {
		content := "skills:\n  chart_creation:\n    instructions: " + instructions + "\n    version: 9\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write overrides: %v", err)
		}
	}
	write("charts v9")

	r, err := NewRegistry(&config.SkillsConfig{MinConfidence: 0.6, MaxSkills: 2, OverridesPath: path})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer r.Close()

	sk := r.Get("chart_creation")
	if sk.Instructions != "charts v9" || sk.Version != 9 {
		t.Fatalf("override not applied: %q v%d", sk.Instructions, sk.Version)
	}

	write("charts v10")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.Get("chart_creation").Instructions == "charts v10" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("override file change was not picked up")
}

func TestTemplateCacheTTL(t *testing.T) {
	r, err := NewRegistry(&config.SkillsConfig{MinConfidence: 0.6, MaxSkills: 2, TemplateTTLSeconds: 1})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	defer r.Close()

	loads := 0
	r.SetTemplateLoader(func() (map[string]string, error) {
		loads++
		return map[string]string{"lead_scoring": "score each lead"}, nil
	})

	r.Templates()
	r.Templates()
	if loads != 1 {
		t.Errorf("loads = %d, want 1 within TTL", loads)
	}

	r.Invalidate()
	r.Templates()
	if loads != 2 {
		t.Errorf("loads = %d, want 2 after invalidate", loads)
	}
}

func TestTemplateCacheServesStaleOnError(t *testing.T) {
	r := testRegistry(t)
	good := true
	r.SetTemplateLoader(func() (map[string]string, error) {
		if good {
			return map[string]string{"k": "v"}, nil
		}
		return nil, errors.New("backend down")
	})

	if got := r.Templates(); got["k"] != "v" {
		t.Fatalf("initial load failed: %v", got)
	}
	good = false
	r.Invalidate()
	if got := r.Templates(); got["k"] != "v" {
		t.Errorf("stale copy not served on refresh error: %v", got)
	}
}

func skillIDs(skills []*Skill) []string {
	ids := make([]string, len(skills))
	for i, sk := range skills {
		ids[i] = sk.ID
	}
	return ids
}

func containsSkill(skills []*Skill, id string) bool {
	for _, sk := range skills {
		if sk.ID == id {
			return true
		}
	}
	return false
}

func contains(s, sub string) bool {
	return strings.Contains(s, sub)
}
