package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sheetmind/internal/analyzer"
)

// classifyCmd runs the analyzer and router without generating a plan.
var classifyCmd = &cobra.Command{
	Use:   "classify [command...]",
	Short: "Classify a command without generating a plan",
	Long: `Runs the request analyzer and the three-tier intent router over a
command and prints the verdict: output mode, skill, sheet action,
confidence, and which tier answered.

Example:
  sheetmind classify "translate column B to Spanish"
  sheetmind classify --workbook leads.xlsx "classify each lead by industry"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	command := joinArgs(args)

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	dataCtx, err := loadContext()
	if err != nil {
		return err
	}

	analysis := analyzer.Analyze(command, dataCtx)
	cls := rt.router.Classify(context.Background(), command, dataCtx)

	fmt.Println(renderClassification(command, analysis, cls))
	return nil
}
