package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"sheetmind/internal/analyzer"
	"sheetmind/internal/engine"
	"sheetmind/internal/router"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(14)
	modeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stepStyle  = lipgloss.NewStyle().PaddingLeft(2)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func renderClassification(command string, analysis analyzer.Analysis, cls router.Classification) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Classification") + "\n")
	row(&b, "command", command)
	row(&b, "mode", modeStyle.Render(string(cls.OutputMode)))
	if cls.SkillID != "" {
		row(&b, "skill", cls.SkillID)
	}
	if cls.SheetAction != "" {
		row(&b, "sheet action", cls.SheetAction)
	}
	row(&b, "confidence", fmt.Sprintf("%.2f", cls.Confidence))
	row(&b, "tier", string(cls.Source))
	if cls.Reasoning != "" {
		row(&b, "reasoning", dimStyle.Render(cls.Reasoning))
	}
	b.WriteString("\n" + titleStyle.Render("Analysis") + "\n")
	row(&b, "type", string(analysis.Type))
	row(&b, "specificity", fmt.Sprintf("%.2f", analysis.Specificity))
	row(&b, "recommends", string(analysis.Recommendation))
	if len(analysis.Categories) > 0 {
		row(&b, "categories", strings.Join(analysis.Categories, ", "))
	}
	return b.String()
}

func renderPlan(res *engine.Result) string {
	plan := res.Plan
	var b strings.Builder

	b.WriteString(titleStyle.Render("Execution Plan") + "\n")
	row(&b, "mode", modeStyle.Render(plan.OutputMode))
	if plan.Summary != "" {
		row(&b, "summary", plan.Summary)
	}
	if plan.EstimatedTime != "" {
		row(&b, "time", plan.EstimatedTime)
	}
	if plan.WasNormalized {
		row(&b, "", warnStyle.Render("model output was repaired during parsing"))
	}

	switch plan.OutputMode {
	case "chat":
		if rendered := renderMarkdown(plan.ChatResponse); rendered != "" {
			b.WriteString("\n" + rendered)
		}
		if plan.Clarification != "" {
			row(&b, "clarify", plan.Clarification)
		}
		for _, action := range plan.SuggestedActions {
			b.WriteString(stepStyle.Render("• "+action) + "\n")
		}
	case "formula":
		row(&b, "formula", plan.Formula)
		row(&b, "column", plan.OutputColumn)
	case "sheet":
		row(&b, "action", plan.SheetAction)
		if cfgJSON, err := json.MarshalIndent(plan.SheetConfig, "  ", "  "); err == nil {
			b.WriteString(stepStyle.Render(string(cfgJSON)) + "\n")
		}
	case "columns":
		row(&b, "input", plan.InputRange)
		for i, step := range plan.Steps {
			out := step.OutputColumn
			if len(step.OutputColumns) > 0 {
				out = strings.Join(step.OutputColumns, ",")
			}
			b.WriteString(stepStyle.Render(fmt.Sprintf("%d. %s -> %s  %s",
				i+1, step.Action, out, dimStyle.Render(step.Description))) + "\n")
		}
	}

	b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("request %s  classified %s/%.2f via %s",
		res.RequestID, res.Classification.OutputMode, res.Classification.Confidence, res.Classification.Source)))
	return b.String()
}

// renderMarkdown renders chat-mode markdown for the terminal, degrading to
// plain text when the renderer is unavailable.
func renderMarkdown(md string) string {
	if md == "" {
		return ""
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func planAsJSON(plan any) (string, error) {
	out, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal plan: %w", err)
	}
	return string(out), nil
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label) + " " + value + "\n")
}
