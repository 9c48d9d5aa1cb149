// Package executor runs the bounded self-correcting tool loop: generate
// candidate tool calls, evaluate the batch against the goal, retry with
// feedback, and convert the surviving calls into a canonical plan.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sheetmind/internal/config"
	"sheetmind/internal/logging"
	"sheetmind/internal/planner"
	"sheetmind/internal/provider"
	"sheetmind/internal/sheet"
)

// State is where the correction loop ended.
type State string

const (
	StateGenerating State = "generating"
	StateEvaluating State = "evaluating"
	StateSatisfied  State = "satisfied"
	StateExhausted  State = "exhausted"
	StateTimedOut   State = "timed_out"
)

// Result is the loop's outcome: always a usable plan, plus diagnostics.
type Result struct {
	Plan     *planner.Plan
	State    State
	Attempts int
	Issues   []string
}

// evaluation is the evaluator's structured verdict over one attempt.
type evaluation struct {
	MeetsGoal bool     `json:"meetsGoal"`
	Issues    []string `json:"issues"`
}

// Executor wraps a tool-calling model in the evaluate/retry loop.
type Executor struct {
	tools     provider.ToolCaller
	evaluator provider.StructuredGenerator // nil disables evaluation

	maxAttempts int
	softBudget  time.Duration

	// now is swappable for budget tests.
	now func() time.Time
}

// New builds an executor. A nil evaluator auto-satisfies every attempt.
func New(tools provider.ToolCaller, evaluator provider.StructuredGenerator, cfg *config.ExecutorConfig) *Executor {
	e := &Executor{
		tools:       tools,
		evaluator:   evaluator,
		maxAttempts: cfg.MaxAttempts,
		softBudget:  time.Duration(cfg.SoftBudgetSeconds) * time.Second,
		now:         time.Now,
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = 2
	}
	if e.softBudget <= 0 {
		e.softBudget = 45 * time.Second
	}
	return e
}

// Execute runs the loop and always returns a well-formed plan. Timeouts and
// evaluator failures degrade, they never error.
func (e *Executor) Execute(ctx context.Context, command, systemPrompt string, dataCtx *sheet.DataContext, tools []provider.ToolDefinition) *Result {
	timer := logging.StartTimer(logging.CategoryExecutor, "Execute")
	defer timer.Stop()

	if dataCtx == nil {
		dataCtx = sheet.NewDataContext(sheet.ContextInput{})
	}

	start := e.now()
	res := &Result{State: StateGenerating}
	var last *provider.ToolResponse

	for res.Attempts < e.maxAttempts && res.State != StateSatisfied {
		// The budget is checked before starting another attempt, never by
		// aborting one in flight.
		if res.Attempts > 0 && e.now().Sub(start) > e.softBudget {
			logging.Executor("Soft budget exceeded after %d attempts, returning best result", res.Attempts)
			res.State = StateTimedOut
			break
		}
		res.Attempts++

		prompt := e.buildPrompt(command, dataCtx, res.Attempts, res.Issues)
		resp, err := e.tools.CompleteWithTools(ctx, systemPrompt, prompt, tools)
		if err != nil {
			logging.Executor("Attempt %d generation failed: %v", res.Attempts, err)
			res.Issues = append(res.Issues, fmt.Sprintf("generation error: %v", err))
			continue
		}
		last = resp
		logging.ExecutorDebug("Attempt %d: %d tool calls", res.Attempts, len(resp.ToolCalls))

		if e.skipEvaluation(resp, start) {
			res.State = StateSatisfied
			continue
		}

		res.State = StateEvaluating
		verdict := e.evaluate(ctx, command, resp)
		if verdict.MeetsGoal {
			res.State = StateSatisfied
		} else {
			res.Issues = verdict.Issues
			logging.Executor("Attempt %d rejected: %s", res.Attempts, strings.Join(verdict.Issues, "; "))
		}
	}

	if res.State != StateSatisfied && res.State != StateTimedOut {
		res.State = StateExhausted
	}

	res.Plan = convertToPlan(last, dataCtx, command)
	return res
}

// buildPrompt renders the attempt prompt; from attempt 2 it carries a
// feedback block with the unresolved issues from the previous evaluation.
func (e *Executor) buildPrompt(command string, dataCtx *sheet.DataContext, attempt int, issues []string) string {
	var b strings.Builder
	b.WriteString("Request: ")
	b.WriteString(command)
	b.WriteString("\n\nSheet context:\n")
	b.WriteString(dataCtx.Summary())

	if attempt >= 2 && len(issues) > 0 {
		b.WriteString("\nYour previous attempt had these problems:\n")
		for _, issue := range issues {
			b.WriteString("- ")
			b.WriteString(issue)
			b.WriteString("\n")
		}
		b.WriteString("Fix them and respond again with tool calls.\n")
	}
	return b.String()
}

// skipEvaluation decides when an attempt is auto-satisfied: no evaluator,
// nothing to evaluate, budget already spent, or a single trivial formula
// call that cannot meaningfully fail evaluation.
func (e *Executor) skipEvaluation(resp *provider.ToolResponse, start time.Time) bool {
	if e.evaluator == nil {
		return true
	}
	if len(resp.ToolCalls) == 0 {
		return true
	}
	if e.now().Sub(start) > e.softBudget {
		logging.ExecutorDebug("Skipping evaluation, soft budget exceeded")
		return true
	}
	if len(resp.ToolCalls) == 1 && resp.ToolCalls[0].Name == "formula" {
		return true
	}
	return false
}

var evaluationSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"meetsGoal": {"type": "boolean"},
		"issues": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["meetsGoal"]
}`)

const evaluatorSystem = `You evaluate whether a batch of spreadsheet tool calls satisfies a
user's request. The batch executes as ONE workflow: judge the whole set
together, and never penalize an individual tool for covering only part of a
multi-tool goal. List concrete issues only when the batch as a whole would
not satisfy the request.`

// evaluate runs one structured evaluation over the entire batch. An
// evaluator error is an optimistic pass; a broken judge must never block a
// response.
func (e *Executor) evaluate(ctx context.Context, command string, resp *provider.ToolResponse) evaluation {
	var b strings.Builder
	b.WriteString("User request: ")
	b.WriteString(command)
	b.WriteString("\n\nTool calls made (one combined workflow):\n")
	for i, call := range resp.ToolCalls {
		args, _ := json.Marshal(call.Arguments)
		fmt.Fprintf(&b, "%d. %s(%s)\n", i+1, call.Name, args)
	}

	raw, err := e.evaluator.CompleteStructured(ctx, evaluationSchema, evaluatorSystem, b.String())
	if err != nil {
		logging.Executor("Evaluator failed, treating batch as satisfied: %v", err)
		return evaluation{MeetsGoal: true}
	}

	var verdict evaluation
	if err := json.Unmarshal(raw, &verdict); err != nil {
		logging.Executor("Evaluator returned unparseable verdict, passing: %v", err)
		return evaluation{MeetsGoal: true}
	}
	return verdict
}
