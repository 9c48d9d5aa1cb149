package planner

import (
	"fmt"
	"strings"

	"sheetmind/internal/logging"
	"sheetmind/internal/sheet"
)

// maxWorkflowSteps caps a columns-mode chain.
const maxWorkflowSteps = 4

// =============================================================================
// COLUMNS BRANCH: MULTI-STEP WORKFLOW
// =============================================================================

// parseColumns normalizes a multi-step AI transformation chain: closed
// action vocabulary, multi-aspect column assignment, input chaining, and
// instruction defaulting so the user's intent is never silently dropped.
func (p *Parser) parseColumns(body map[string]any, dataCtx *sheet.DataContext, command string) *Plan {
	rawSteps := getSlice(body, "steps")
	if len(rawSteps) == 0 {
		logging.Parser("Columns plan without steps, using fallback")
		return p.fallbackPlan(dataCtx, command)
	}
	if len(rawSteps) > maxWorkflowSteps {
		logging.Parser("Truncating workflow from %d to %d steps", len(rawSteps), maxWorkflowSteps)
		rawSteps = rawSteps[:maxWorkflowSteps]
	}

	normalized := false
	alloc := sheet.NewAllocator(dataCtx.EmptyColumns)
	explicit := sheet.ExplicitOutputColumn(command)
	if explicit != "" {
		// Keep the pinned column out of the pool so no later step lands
		// on it.
		alloc.Reserve(explicit)
	}

	var steps []Step
	var assigned []string
	for i, rawStep := range rawSteps {
		st, ok := rawStep.(map[string]any)
		if !ok {
			normalized = true
			continue
		}

		action, fixed := normalizeAction(strings.ToLower(strings.TrimSpace(getString(st, "action"))))
		if fixed {
			normalized = true
		}

		outputFormat := getString(st, "outputFormat")
		aspects := splitAspects(outputFormat)

		// An explicit user column pins the first step to exactly one
		// column, whatever the aspect count; the model packs multiple
		// aspects into that single cell.
		var outCols []string
		if i == 0 && explicit != "" {
			outCols = []string{explicit}
			if len(aspects) > 1 {
				normalized = true
			}
		} else {
			outCols = alloc.Next(len(aspects))
		}

		instruction := getString(st, "instruction")
		if instruction == "" {
			instruction = command
			normalized = true
		}

		inputs := append([]string{}, dataCtx.DataColumns...)
		inputs = append(inputs, assigned...)

		step := Step{
			Action:       action,
			Description:  getString(st, "description"),
			Instruction:  instruction,
			InputColumns: inputs,
			OutputFormat: outputFormat,
		}
		if len(outCols) == 1 {
			step.OutputColumn = outCols[0]
		} else {
			step.OutputColumns = outCols
			step.OutputColumn = outCols[0]
		}
		if len(steps) > 0 {
			step.DependsOn = len(steps)
		}

		assigned = append(assigned, outCols...)
		steps = append(steps, step)
	}

	if len(steps) == 0 {
		return p.fallbackPlan(dataCtx, command)
	}

	plan := &Plan{
		OutputMode:    "columns",
		Summary:       getString(body, "summary"),
		Steps:         steps,
		EstimatedTime: estimateTime(dataCtx.RowCount, len(steps)),
		WasNormalized: normalized,
	}
	p.fillChainInputs(plan, dataCtx)

	logging.Parser("Columns plan: %d steps, outputs %s", len(steps), strings.Join(assigned, ","))
	return plan
}

// splitAspects splits an output format on "|". No format or no separator
// means a single aspect.
func splitAspects(outputFormat string) []string {
	if !strings.Contains(outputFormat, "|") {
		if strings.TrimSpace(outputFormat) == "" {
			return []string{""}
		}
		return []string{strings.TrimSpace(outputFormat)}
	}
	parts := strings.Split(outputFormat, "|")
	aspects := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			aspects = append(aspects, trimmed)
		}
	}
	if len(aspects) == 0 {
		return []string{""}
	}
	return aspects
}

// estimateTime gives a rough human-readable duration for a chain.
func estimateTime(rowCount, stepCount int) string {
	if rowCount <= 0 {
		rowCount = 10
	}
	seconds := rowCount * stepCount / 5
	switch {
	case seconds < 15:
		return "~15 seconds"
	case seconds < 60:
		return fmt.Sprintf("~%d seconds", seconds)
	default:
		return fmt.Sprintf("~%d minutes", (seconds+59)/60)
	}
}
