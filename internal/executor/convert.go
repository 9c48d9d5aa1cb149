package executor

import (
	"sheetmind/internal/logging"
	"sheetmind/internal/planner"
	"sheetmind/internal/provider"
	"sheetmind/internal/sheet"
)

// =============================================================================
// PLAN CONVERSION
// =============================================================================
// The loop's exit always produces the same canonical plan shape the parser
// emits: multi-tool batches become a sequential columns chain, a single
// tool becomes the instant sheet/formula shortcut, and zero tools becomes a
// clarification plan carrying the raw text and context.

func convertToPlan(resp *provider.ToolResponse, dataCtx *sheet.DataContext, command string) *planner.Plan {
	if resp == nil || len(resp.ToolCalls) == 0 {
		return clarificationPlan(resp, dataCtx)
	}
	if len(resp.ToolCalls) == 1 {
		return singleCallPlan(resp.ToolCalls[0], dataCtx, command)
	}
	return multiCallPlan(resp.ToolCalls, dataCtx, command)
}

// clarificationPlan surfaces the raw model text so the caller can show it
// to the user, alongside the current data description.
func clarificationPlan(resp *provider.ToolResponse, dataCtx *sheet.DataContext) *planner.Plan {
	raw := ""
	if resp != nil {
		raw = resp.Text
	}
	logging.ExecutorDebug("No tool calls emitted, returning clarification plan")
	plan := &planner.Plan{
		OutputMode:         "chat",
		NeedsClarification: true,
		ChatResponse:       raw,
		RawResponse:        raw,
	}
	fillChain(plan, dataCtx)
	return plan
}

// singleCallPlan is the instant single-action shortcut.
func singleCallPlan(call provider.ToolCall, dataCtx *sheet.DataContext, command string) *planner.Plan {
	if call.Name == "formula" {
		formula, _ := call.Arguments["formula"].(string)
		outCol := sheet.ExplicitOutputColumn(command)
		if outCol == "" && len(dataCtx.EmptyColumns) > 0 {
			outCol = dataCtx.EmptyColumns[0]
		}
		if outCol == "" {
			outCol = "D"
		}
		return &planner.Plan{
			OutputMode:    "formula",
			Formula:       formula,
			OutputColumn:  outCol,
			EstimatedTime: "Instant",
			Steps: []planner.Step{{
				Action:       "generate",
				Instruction:  command,
				Formula:      formula,
				OutputColumn: outCol,
			}},
		}
	}

	return &planner.Plan{
		OutputMode:    "sheet",
		SheetAction:   call.Name,
		SheetConfig:   call.Arguments,
		EstimatedTime: "Instant",
	}
}

// multiCallPlan sequences the batch as a columns-mode chain.
func multiCallPlan(calls []provider.ToolCall, dataCtx *sheet.DataContext, command string) *planner.Plan {
	steps := make([]planner.Step, 0, len(calls))
	for i, call := range calls {
		step := planner.Step{
			Action:      call.Name,
			Instruction: command,
			Config:      call.Arguments,
		}
		if desc, ok := call.Arguments["description"].(string); ok {
			step.Description = desc
		}
		if i > 0 {
			step.DependsOn = i
		}
		steps = append(steps, step)
	}

	plan := &planner.Plan{
		OutputMode: "columns",
		Steps:      steps,
	}
	fillChain(plan, dataCtx)
	return plan
}

func fillChain(plan *planner.Plan, dataCtx *sheet.DataContext) {
	plan.InputRange = dataCtx.DataRange()
	plan.InputColumns = dataCtx.DataColumns
	if len(dataCtx.DataColumns) > 0 {
		plan.InputColumn = dataCtx.DataColumns[0]
	}
	plan.RowCount = dataCtx.RowCount
}

// DefaultTools declares the native sheet actions plus the formula shortcut
// to the tool-calling model.
func DefaultTools() []provider.ToolDefinition {
	rangeParam := map[string]any{"type": "string", "description": "A1 notation range"}
	return []provider.ToolDefinition{
		{Name: "formula", Description: "Write one native spreadsheet formula", Parameters: map[string]any{
			"formula": map[string]any{"type": "string"},
		}},
		{Name: "chart", Description: "Create a chart", Parameters: map[string]any{
			"chartType": map[string]any{"type": "string"}, "dataRange": rangeParam, "title": map[string]any{"type": "string"},
		}},
		{Name: "format", Description: "Apply visual formatting", Parameters: map[string]any{
			"range": rangeParam, "bold": map[string]any{"type": "boolean"}, "backgroundColor": map[string]any{"type": "string"},
		}},
		{Name: "conditionalFormat", Description: "Apply rule-based formatting", Parameters: map[string]any{
			"range": rangeParam, "rules": map[string]any{"type": "array"},
		}},
		{Name: "dataValidation", Description: "Restrict allowed cell values", Parameters: map[string]any{
			"range": rangeParam, "validationType": map[string]any{"type": "string"},
			"values": map[string]any{"type": "array"}, "min": map[string]any{"type": "number"}, "max": map[string]any{"type": "number"},
		}},
		{Name: "filter", Description: "Filter or sort rows", Parameters: map[string]any{
			"range": rangeParam, "column": map[string]any{"type": "string"}, "condition": map[string]any{"type": "string"},
		}},
		{Name: "writeData", Description: "Write literal values to cells", Parameters: map[string]any{
			"startCell": map[string]any{"type": "string"}, "data": map[string]any{"type": "array"},
		}},
		{Name: "sheetOps", Description: "Structural sheet operation", Parameters: map[string]any{
			"operation": map[string]any{"type": "string"},
		}},
	}
}
