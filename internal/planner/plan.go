// Package planner extracts and repairs execution plans from raw model text.
// Models routinely emit fenced, misnamed, or mis-nested JSON; the parser's
// job is to always hand the caller a well-formed plan anyway.
package planner

// Plan is the canonical execution plan. The JSON field names are the wire
// contract with the downstream execution layer and must remain stable.
type Plan struct {
	OutputMode string `json:"outputMode"`
	Steps      []Step `json:"steps,omitempty"`

	Summary          string   `json:"summary,omitempty"`
	Clarification    string   `json:"clarification,omitempty"`
	ChatResponse     string   `json:"chatResponse,omitempty"`
	SuggestedActions []string `json:"suggestedActions,omitempty"`

	// Sheet mode.
	SheetAction string         `json:"sheetAction,omitempty"`
	SheetConfig map[string]any `json:"sheetConfig,omitempty"`

	// Formula mode.
	Formula      string `json:"formula,omitempty"`
	OutputColumn string `json:"outputColumn,omitempty"`

	EstimatedTime string `json:"estimatedTime,omitempty"`

	// Columns mode chain-level input description.
	InputRange   string   `json:"inputRange,omitempty"`
	InputColumn  string   `json:"inputColumn,omitempty"`
	InputColumns []string `json:"inputColumns,omitempty"`
	RowCount     int      `json:"rowCount,omitempty"`

	NeedsClarification bool `json:"needsClarification,omitempty"`

	// WasNormalized reports whether any repair rule fired during parsing.
	// Diagnostic only, not part of the wire contract consumers rely on.
	WasNormalized bool `json:"wasNormalized,omitempty"`

	// RawResponse carries the unparsed model text when clarification is
	// needed, so the caller can show it to the user.
	RawResponse string `json:"rawResponse,omitempty"`
}

// Step is one unit of work in a plan.
type Step struct {
	Action       string   `json:"action"`
	Description  string   `json:"description,omitempty"`
	Instruction  string   `json:"instruction,omitempty"`
	Formula      string   `json:"formula,omitempty"`
	InputColumns []string `json:"inputColumns,omitempty"`
	OutputColumn string   `json:"outputColumn,omitempty"`

	// OutputColumns is set for multi-aspect steps, one column per aspect.
	OutputColumns []string `json:"outputColumns,omitempty"`
	OutputFormat  string   `json:"outputFormat,omitempty"`

	// DependsOn is the 1-based index of the step this one consumes; 0 for
	// independent steps.
	DependsOn int `json:"dependsOn,omitempty"`

	// Config carries a native sheet action's arguments when a step was
	// converted from a tool call rather than parsed from model JSON.
	Config map[string]any `json:"config,omitempty"`
}

// stepActions is the closed action vocabulary for columns-mode steps.
var stepActions = map[string]bool{
	"analyze":   true,
	"classify":  true,
	"extract":   true,
	"generate":  true,
	"summarize": true,
	"translate": true,
	"format":    true,
	"score":     true,
}

// actionAliases maps the names models actually emit to the canonical
// vocabulary.
var actionAliases = map[string]string{
	"process":    "analyze",
	"analyse":    "analyze",
	"evaluate":   "analyze",
	"categorize": "classify",
	"categorise": "classify",
	"label":      "classify",
	"tag":        "classify",
	"find":       "extract",
	"identify":   "extract",
	"parse":      "extract",
	"pull":       "extract",
	"create":     "generate",
	"write":      "generate",
	"compose":    "generate",
	"condense":   "summarize",
	"summarise":  "summarize",
	"convert":    "translate",
	"clean":      "format",
	"normalize":  "format",
	"rate":       "score",
	"rank":       "score",
	"grade":      "score",
}

// normalizeAction maps any model-emitted action name into the closed
// vocabulary, defaulting to analyze.
func normalizeAction(action string) (string, bool) {
	if stepActions[action] {
		return action, false
	}
	if canonical, ok := actionAliases[action]; ok {
		return canonical, true
	}
	return "analyze", true
}
