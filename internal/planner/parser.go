package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"sheetmind/internal/logging"
	"sheetmind/internal/router"
	"sheetmind/internal/sheet"
)

// =============================================================================
// PARSER
// =============================================================================

// Parser turns raw model text into a canonical Plan. It never returns an
// error: unparseable input produces the deterministic fallback plan.
type Parser struct {
	// OverrideConfidence is the classifier confidence at which the
	// classifier's sheet action beats a conflicting parsed action.
	OverrideConfidence float64
}

// NewParser builds a parser with the given override threshold (0 uses 0.8).
func NewParser(overrideConfidence float64) *Parser {
	if overrideConfidence <= 0 {
		overrideConfidence = 0.8
	}
	return &Parser{OverrideConfidence: overrideConfidence}
}

// Parse extracts a plan from raw model text without a classifier verdict.
func (p *Parser) Parse(raw string, dataCtx *sheet.DataContext, command string) *Plan {
	return p.ParseClassified(raw, dataCtx, command, nil)
}

// ParseClassified extracts a plan, letting a confident upstream
// classification override the parsed sheet action on disagreement.
func (p *Parser) ParseClassified(raw string, dataCtx *sheet.DataContext, command string, cls *router.Classification) *Plan {
	timer := logging.StartTimer(logging.CategoryParser, "Parse")
	defer timer.Stop()

	if dataCtx == nil {
		dataCtx = sheet.NewDataContext(sheet.ContextInput{})
	}

	doc := extractJSON(raw)
	if doc == "" {
		logging.Parser("No JSON object found, using fallback plan: %s", truncate(raw, 200))
		return p.fallbackPlan(dataCtx, command)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(doc), &body); err != nil {
		logging.Parser("JSON parse failed (%v), using fallback plan: %s", err, truncate(doc, 200))
		return p.fallbackPlan(dataCtx, command)
	}

	mode := getString(body, "outputMode")
	switch mode {
	case "chat":
		return p.parseChat(body)
	case "formula":
		return p.parseFormula(body, dataCtx, command)
	case "sheet":
		return p.parseSheet(body, dataCtx, command, cls)
	case "columns", "workflow":
		return p.parseColumns(body, dataCtx, command)
	default:
		// No usable mode: let a confident classifier steer, else infer
		// from shape.
		if cls != nil && cls.Confidence >= p.OverrideConfidence {
			switch cls.OutputMode {
			case router.ModeChat:
				return p.parseChat(body)
			case router.ModeFormula:
				return p.parseFormula(body, dataCtx, command)
			case router.ModeSheet:
				return p.parseSheet(body, dataCtx, command, cls)
			case router.ModeColumns, router.ModeWorkflow:
				return p.parseColumns(body, dataCtx, command)
			}
		}
		if _, ok := body["steps"]; ok {
			return p.parseColumns(body, dataCtx, command)
		}
		if _, ok := body["sheetAction"]; ok {
			return p.parseSheet(body, dataCtx, command, cls)
		}
		logging.Parser("Unrecognized outputMode %q, using fallback plan", mode)
		return p.fallbackPlan(dataCtx, command)
	}
}

// =============================================================================
// FALLBACK
// =============================================================================

// fallbackPlan is the deterministic two-step plan used whenever model output
// is unusable: analyze the data, then generate results, over the next two
// empty columns.
func (p *Parser) fallbackPlan(dataCtx *sheet.DataContext, command string) *Plan {
	alloc := sheet.NewAllocator(dataCtx.EmptyColumns)
	first := alloc.Next(1)[0]
	second := alloc.Next(1)[0]

	plan := &Plan{
		OutputMode:    "columns",
		Summary:       "Analyze the data, then generate results",
		WasNormalized: true,
		Steps: []Step{
			{
				Action:       "analyze",
				Description:  "Analyze the data",
				Instruction:  command,
				InputColumns: dataCtx.DataColumns,
				OutputColumn: first,
			},
			{
				Action:       "generate",
				Description:  "Generate results",
				Instruction:  command,
				InputColumns: append(append([]string{}, dataCtx.DataColumns...), first),
				OutputColumn: second,
				DependsOn:    1,
			},
		},
	}
	p.fillChainInputs(plan, dataCtx)
	return plan
}

// =============================================================================
// CHAT AND FORMULA BRANCHES
// =============================================================================

func (p *Parser) parseChat(body map[string]any) *Plan {
	return &Plan{
		OutputMode:       "chat",
		Summary:          getString(body, "summary"),
		Clarification:    getString(body, "clarification"),
		ChatResponse:     getString(body, "chatResponse"),
		SuggestedActions: getStringSlice(body, "suggestedActions"),
	}
}

// parseFormula takes the first declared step's formula. The output column is
// explicit user column > first empty column > literal "D".
func (p *Parser) parseFormula(body map[string]any, dataCtx *sheet.DataContext, command string) *Plan {
	formula := getString(body, "formula")
	steps := getSlice(body, "steps")
	if formula == "" && len(steps) > 0 {
		if st, ok := steps[0].(map[string]any); ok {
			formula = getString(st, "formula")
		}
	}

	outCol := sheet.ExplicitOutputColumn(command)
	if outCol == "" && len(dataCtx.EmptyColumns) > 0 {
		outCol = dataCtx.EmptyColumns[0]
	}
	if outCol == "" {
		outCol = "D"
	}

	return &Plan{
		OutputMode:    "formula",
		Summary:       getString(body, "summary"),
		Formula:       formula,
		OutputColumn:  outCol,
		EstimatedTime: "Instant",
		Steps: []Step{{
			Action:       "generate",
			Description:  getString(body, "summary"),
			Instruction:  command,
			Formula:      formula,
			OutputColumn: outCol,
		}},
	}
}

// fillChainInputs sets the chain-level input description from the context.
func (p *Parser) fillChainInputs(plan *Plan, dataCtx *sheet.DataContext) {
	plan.InputRange = dataCtx.DataRange()
	plan.InputColumns = dataCtx.DataColumns
	if len(dataCtx.DataColumns) > 0 {
		plan.InputColumn = dataCtx.DataColumns[0]
	}
	plan.RowCount = dataCtx.RowCount
}

// =============================================================================
// MAP HELPERS
// =============================================================================

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getMap(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

func getSlice(m map[string]any, key string) []any {
	if v, ok := m[key].([]any); ok {
		return v
	}
	return nil
}

func getStringSlice(m map[string]any, key string) []string {
	raw := getSlice(m, key)
	if raw == nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getFloat(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
