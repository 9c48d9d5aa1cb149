package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	planJSON    bool
	planOutcome string
)

// planCmd runs the full pipeline and prints the resulting plan.
var planCmd = &cobra.Command{
	Use:   "plan [command...]",
	Short: "Run the full pipeline and print the execution plan",
	Long: `Processes a command end to end: analyze, classify, select skills, call
the model, and parse the response into the canonical execution plan.

Example:
  sheetmind plan "bold the header row"
  sheetmind plan --workbook leads.xlsx "classify leads then summarize by category"
  sheetmind plan --json "translate column B to Spanish"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Print the raw plan JSON instead of styled output")
	planCmd.Flags().StringVar(&planOutcome, "report", "", "Report the previous run's outcome first: success or failure")
}

func runPlan(cmd *cobra.Command, args []string) error {
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

	res := rt.engine.Process(context.Background(), command, dataCtx)

	if planOutcome == "success" || planOutcome == "failure" {
		rt.engine.ReportOutcome(command, res.Classification, planOutcome == "success")
	}

	if planJSON {
		out, err := planAsJSON(res.Plan)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	fmt.Println(renderPlan(res))
	return nil
}
