package analyzer

import (
	"testing"

	"sheetmind/internal/sheet"
)

func testContext(t *testing.T) *sheet.DataContext {
	t.Helper()
	return sheet.NewDataContext(sheet.ContextInput{
		Headers: map[string]string{"A": "Name", "B": "Revenue", "C": "Region"},
	})
}

func TestAnalyzeSpecificCommand(t *testing.T) {
	a := Analyze(`bold the values in column B`, testContext(t))
	if a.Type != TypeSpecific {
		t.Errorf("type = %s, want specific", a.Type)
	}
	if a.Specificity < 0.6 {
		t.Errorf("specificity = %.2f, want >= 0.6", a.Specificity)
	}
	if a.Recommendation != RecommendExecute {
		t.Errorf("recommendation = %s, want execute", a.Recommendation)
	}
}

func TestAnalyzeVagueCommand(t *testing.T) {
	a := Analyze("make it look better", nil)
	if a.Type != TypeVague {
		t.Errorf("type = %s, want vague", a.Type)
	}
	if a.Recommendation == RecommendExecute {
		t.Error("vague command must not recommend execute")
	}
	// Vague without a concrete type halves whatever accumulated.
	if a.Specificity >= 0.5 {
		t.Errorf("specificity = %.2f, want < 0.5", a.Specificity)
	}
}

func TestAnalyzeVagueWithConcreteTypeIsNotVague(t *testing.T) {
	// "nicer" is vague but "bold" plus a target keeps it actionable.
	a := Analyze("make column A nicer with bold red headers", nil)
	if a.Type == TypeVague {
		t.Error("concrete type should prevent vague classification")
	}
	if a.HasVagueTerm && !a.HasConcreteType {
		t.Error("expected concrete type detection")
	}
}

func TestAnalyzeQuestionWinsOverEverything(t *testing.T) {
	a := Analyze("what does the SUM formula in column B do?", nil)
	if a.Type != TypeQuestion {
		t.Errorf("type = %s, want question", a.Type)
	}
	if a.Recommendation != RecommendClarify {
		t.Errorf("recommendation = %s, want clarify", a.Recommendation)
	}
}

func TestAnalyzeLiteralTableShortCircuit(t *testing.T) {
	cmd := "add this:\nName | Revenue | Region\nAcme | 100 | West"
	a := Analyze(cmd, nil)
	if !a.HasLiteralTable {
		t.Fatal("expected literal table detection")
	}
	if a.Specificity != 0.95 {
		t.Errorf("specificity = %.2f, want 0.95", a.Specificity)
	}
	if a.Type != TypeSpecific {
		t.Errorf("type = %s, want specific", a.Type)
	}
	if a.Recommendation != RecommendExecute {
		t.Errorf("recommendation = %s, want execute", a.Recommendation)
	}
}

func TestAnalyzeCompositeCommand(t *testing.T) {
	a := Analyze("create a bar chart of column B and bold the headers and add a filter to column C", nil)
	if a.ImpliedActions < 2 {
		t.Fatalf("implied actions = %d, want >= 2", a.ImpliedActions)
	}
	if a.Type != TypeComposite {
		t.Errorf("type = %s, want composite", a.Type)
	}
	if a.Recommendation != RecommendSuggestOptions {
		t.Errorf("recommendation = %s, want suggest_options", a.Recommendation)
	}
}

func TestAnalyzeCompositePenaltyAboveTwoActions(t *testing.T) {
	two := Analyze("create a bar chart of column B and bold column A", nil)
	three := Analyze("create a bar chart of column B and bold column A and filter column C", nil)
	if three.ImpliedActions <= 2 {
		t.Skipf("implied actions = %d, penalty not applicable", three.ImpliedActions)
	}
	if three.Specificity >= two.Specificity {
		t.Errorf("3-action specificity %.2f should be below 2-action %.2f",
			three.Specificity, two.Specificity)
	}
}

func TestAnalyzeHeaderNameCountsAsTarget(t *testing.T) {
	a := Analyze("sum the Revenue values", testContext(t))
	if !a.HasTarget {
		t.Error("header name in command should count as target")
	}
}

func TestAnalyzeWeightAccumulation(t *testing.T) {
	// Verb (0.25) + target (0.25) + concrete type (0.3) + no vagueness (0.2) = 1.0
	a := Analyze("translate column A to Spanish", nil)
	if !a.HasActionVerb || !a.HasTarget || !a.HasConcreteType || a.HasVagueTerm {
		t.Fatalf("signal detection off: %+v", a)
	}
	if a.Specificity != 1.0 {
		t.Errorf("specificity = %.2f, want 1.0", a.Specificity)
	}
}

func TestAnalyzeEmptyCommand(t *testing.T) {
	a := Analyze("", nil)
	if a.Type != TypeVague {
		t.Errorf("type = %s, want vague", a.Type)
	}
	if a.Recommendation != RecommendClarify {
		t.Errorf("recommendation = %s, want clarify", a.Recommendation)
	}
}

func TestAnalyzeVagueWithCategoryGetsSuggestions(t *testing.T) {
	a := Analyze("somehow organize the chart data", nil)
	if a.Type != TypeVague {
		t.Fatalf("type = %s, want vague", a.Type)
	}
	if len(a.Categories) == 0 {
		t.Fatal("expected chart category detection")
	}
	if a.Recommendation != RecommendSuggestOptions {
		t.Errorf("recommendation = %s, want suggest_options", a.Recommendation)
	}
}
