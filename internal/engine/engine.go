// Package engine wires the full pipeline: analyze the command, classify it,
// select skills, call the model, and parse the response into a canonical
// plan. The self-correcting executor is the alternate path for workflow
// classifications.
package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"sheetmind/internal/analyzer"
	"sheetmind/internal/executor"
	"sheetmind/internal/logging"
	"sheetmind/internal/planner"
	"sheetmind/internal/provider"
	"sheetmind/internal/router"
	"sheetmind/internal/sheet"
	"sheetmind/internal/skills"
)

// Engine runs commands end to end.
type Engine struct {
	router   *router.Router
	registry *skills.Registry
	textgen  provider.TextGenerator
	parser   *planner.Parser
	agent    *executor.Executor // optional tool-calling path
}

// Result is everything one processed command produced.
type Result struct {
	RequestID      string
	Analysis       analyzer.Analysis
	Classification router.Classification
	Selection      skills.Selection
	Plan           *planner.Plan
}

// New wires an engine. agent may be nil; workflow classifications then fall
// through the ordinary generate-and-parse path.
func New(rt *router.Router, registry *skills.Registry, textgen provider.TextGenerator,
	parser *planner.Parser, agent *executor.Executor) *Engine {
	return &Engine{
		router:   rt,
		registry: registry,
		textgen:  textgen,
		parser:   parser,
		agent:    agent,
	}
}

const responseContract = `Respond with ONLY one JSON object, no prose around it.
The object must declare "outputMode" as one of: chat, formula, sheet, columns.`

// Process runs one command through the pipeline. It always returns a
// well-formed plan; provider failures degrade to the deterministic fallback.
func (e *Engine) Process(ctx context.Context, command string, dataCtx *sheet.DataContext) *Result {
	requestID := uuid.NewString()
	timer := logging.StartTimer(logging.CategoryAPI, "Process")
	defer timer.Stop()

	if dataCtx == nil {
		dataCtx = sheet.NewDataContext(sheet.ContextInput{})
	}

	res := &Result{RequestID: requestID}
	res.Analysis = analyzer.Analyze(command, dataCtx)
	res.Classification = e.router.Classify(ctx, command, dataCtx)
	res.Selection = e.registry.Select(command, dataCtx, res.Analysis)

	logging.API("[%s] %q -> %s/%s (%.2f via %s), skills=%d",
		requestID, truncate(command, 60), res.Classification.OutputMode,
		res.Classification.SkillID, res.Classification.Confidence,
		res.Classification.Source, len(res.Selection.Skills))

	// Tool-calling agent path for workflow classifications.
	if e.agent != nil && res.Classification.OutputMode == router.ModeWorkflow {
		system := e.registry.AssemblePrompt(res.Selection, command)
		agentRes := e.agent.Execute(ctx, command, system, dataCtx, executor.DefaultTools())
		res.Plan = agentRes.Plan
		logging.API("[%s] agent path: state=%s attempts=%d", requestID, agentRes.State, agentRes.Attempts)
		return res
	}

	var b strings.Builder
	b.WriteString(e.registry.AssemblePrompt(res.Selection, command))
	b.WriteString("\n\n")
	b.WriteString(responseContract)
	system := b.String()

	var user strings.Builder
	user.WriteString("Command: ")
	user.WriteString(command)
	user.WriteString("\n\nSheet context:\n")
	user.WriteString(dataCtx.Summary())

	raw := ""
	if e.textgen != nil {
		var err error
		raw, err = e.textgen.CompleteWithSystem(ctx, system, user.String())
		if err != nil {
			logging.API("[%s] generation failed, using fallback plan: %v", requestID, err)
			raw = ""
		}
	}

	res.Plan = e.parser.ParseClassified(raw, dataCtx, command, &res.Classification)
	return res
}

// ReportOutcome feeds the execution result back into the learning loop.
func (e *Engine) ReportOutcome(command string, cls router.Classification, success bool) {
	e.router.LearnFromOutcome(command, cls, success)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
