// Package router classifies a command into an output mode, skill, and sheet
// action through a three-tier cascade: embedding cache, structured AI call,
// keyword heuristics. The cascade never fails; the final tier always answers.
package router

// OutputMode is the top-level execution strategy for a command.
type OutputMode string

const (
	ModeSheet    OutputMode = "sheet"
	ModeFormula  OutputMode = "formula"
	ModeChat     OutputMode = "chat"
	ModeColumns  OutputMode = "columns"
	ModeWorkflow OutputMode = "workflow"
)

// Source records which tier produced a classification.
type Source string

const (
	SourceCache    Source = "cache"
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// Classification is the router's verdict for one command.
type Classification struct {
	OutputMode  OutputMode `json:"outputMode"`
	SkillID     string     `json:"skillId,omitempty"`
	SheetAction string     `json:"sheetAction,omitempty"`
	Confidence  float64    `json:"confidence"`
	Source      Source     `json:"source"`
	Reasoning   string     `json:"reasoning,omitempty"`
}

// validOutputModes is the closed vocabulary the AI tier is held to.
var validOutputModes = map[OutputMode]bool{
	ModeSheet:    true,
	ModeFormula:  true,
	ModeChat:     true,
	ModeColumns:  true,
	ModeWorkflow: true,
}

// validSheetActions is the closed sheet action vocabulary.
var validSheetActions = map[string]bool{
	"chart":             true,
	"format":            true,
	"conditionalFormat": true,
	"dataValidation":    true,
	"filter":            true,
	"writeData":         true,
	"createTable":       true,
	"sheetOps":          true,
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
