package skills

import (
	"regexp"
	"strings"

	"sheetmind/internal/sheet"
)

// ConversationalSkillID is selected exclusively for vague commands and used
// as the fallback when nothing else clears the confidence floor.
const ConversationalSkillID = "conversational"

// =============================================================================
// STATIC SKILL TABLE
// =============================================================================
// One table keyed by id. Version is bookkeeping data, not a source-level fork:
// bump it when an instruction block changes materially.

func defaultSkills() map[string]*Skill {
	table := map[string]*Skill{
		ConversationalSkillID: {
			ID:      ConversationalSkillID,
			Version: 3,
			Instructions: `When the request is vague, ambiguous, or a question, respond in chat mode.
Return {"outputMode": "chat", "summary": "...", "chatResponse": "...", "suggestedActions": [...]}.
Ask one clarifying question when the intent is genuinely unclear. Offer 2-3
concrete suggestedActions the user could pick instead of guessing.`,
			RequiredFields: []string{"outputMode", "chatResponse"},
			OptionalFields: []string{"summary", "suggestedActions", "clarification"},
			Keywords:       []string{"what", "how", "why", "help", "explain", "can you"},
			TokenCost:      180,
			Priority:       1,
		},
		"formula_generation": {
			ID:      "formula_generation",
			Version: 5,
			Instructions: `For single-cell transformations use a native spreadsheet formula.
Return {"outputMode": "formula", "steps": [{"formula": "=...", "outputColumn": "..."}]}.
Use {{ROW}} as the row placeholder, e.g. =GOOGLETRANSLATE(B{{ROW}}, "auto", "es").
Prefer built-in functions (GOOGLETRANSLATE, UPPER, LOWER, SPLIT, REGEXEXTRACT)
over AI transformation whenever one exists.`,
			RequiredFields: []string{"outputMode", "steps"},
			OptionalFields: []string{"summary", "estimatedTime"},
			Keywords:       []string{"translate", "uppercase", "lowercase", "extract", "formula", "calculate", "sum", "average", "concatenate", "split"},
			TokenCost:      260,
			Priority:       8,
			ComposableWith: []string{ConversationalSkillID},
			Examples: []WorkedExample{
				{
					Command:  "translate column B to Spanish",
					Response: `{"outputMode":"formula","steps":[{"formula":"=GOOGLETRANSLATE(B{{ROW}}, \"auto\", \"es\")","outputColumn":"C"}]}`,
					Keywords: []string{"translate", "spanish", "french", "german", "language"},
				},
				{
					Command:  "make column A uppercase",
					Response: `{"outputMode":"formula","steps":[{"formula":"=UPPER(A{{ROW}})","outputColumn":"B"}]}`,
					Keywords: []string{"uppercase", "lowercase", "case"},
				},
			},
		},
		"chart_creation": {
			ID:      "chart_creation",
			Version: 4,
			Instructions: `For chart requests return a single sheet action.
Return {"outputMode": "sheet", "sheetAction": "chart", "sheetConfig": {"chartType": "bar|line|pie|scatter|area", "dataRange": "A1:B10", "title": "..."}}.
Pick the chart type the user named; default to bar for categorical data and
line for time series.`,
			RequiredFields: []string{"outputMode", "sheetAction", "sheetConfig"},
			OptionalFields: []string{"summary"},
			Keywords:       []string{"chart", "graph", "plot", "visualize", "bar chart", "pie chart", "line chart"},
			TokenCost:      240,
			Priority:       7,
			ConflictsWith:  []string{"write_data"},
		},
		"cell_formatting": {
			ID:      "cell_formatting",
			Version: 6,
			Instructions: `For visual formatting return a single sheet action.
Return {"outputMode": "sheet", "sheetAction": "format", "sheetConfig": {"range": "A1:A10", "bold": true, "backgroundColor": "#FF0000", ...}}.
Use hex colors. Apply to the exact range the user named, or the header row
when they say "headers".`,
			RequiredFields: []string{"outputMode", "sheetAction", "sheetConfig"},
			OptionalFields: []string{"summary"},
			Keywords:       []string{"bold", "italic", "color", "highlight", "format", "background", "font", "underline"},
			TokenCost:      220,
			Priority:       6,
		},
		"conditional_formatting": {
			ID:      "conditional_formatting",
			Version: 3,
			Instructions: `For rule-based formatting return sheetAction "conditionalFormat".
Return {"outputMode": "sheet", "sheetAction": "conditionalFormat", "sheetConfig": {"range": "...", "rules": [{"condition": "lessThan|greaterThan|equals|textContains", "value": ..., "backgroundColor": "#..."}]}}.
Every rule needs a condition, a value, and a color.`,
			RequiredFields: []string{"outputMode", "sheetAction", "sheetConfig"},
			OptionalFields: []string{"summary"},
			Keywords:       []string{"conditional", "when", "if negative", "values above", "values below", "greater than", "less than"},
			TokenCost:      280,
			Priority:       7,
		},
		"data_validation": {
			ID:      "data_validation",
			Version: 4,
			Instructions: `For input restrictions return sheetAction "dataValidation".
Return {"outputMode": "sheet", "sheetAction": "dataValidation", "sheetConfig": {"range": "...", "validationType": "list|number|date|checkbox", "values": [...], "min": ..., "max": ...}}.
List validation needs values; number validation needs min and max.`,
			RequiredFields: []string{"outputMode", "sheetAction", "sheetConfig"},
			OptionalFields: []string{"summary"},
			Keywords:       []string{"dropdown", "validation", "restrict", "must be", "only allow", "checkbox", "between"},
			TokenCost:      260,
			Priority:       7,
		},
		"data_filter": {
			ID:      "data_filter",
			Version: 2,
			Instructions: `For filtering and sorting return sheetAction "filter".
Return {"outputMode": "sheet", "sheetAction": "filter", "sheetConfig": {"range": "...", "column": "...", "condition": "...", "value": ..., "sortBy": "...", "ascending": true}}.`,
			RequiredFields: []string{"outputMode", "sheetAction", "sheetConfig"},
			OptionalFields: []string{"summary"},
			Keywords:       []string{"filter", "sort", "hide rows", "show only", "ascending", "descending"},
			TokenCost:      200,
			Priority:       6,
		},
		"write_data": {
			ID:      "write_data",
			Version: 3,
			Instructions: `When the user pastes literal data, write it to the sheet.
Return {"outputMode": "sheet", "sheetAction": "writeData", "sheetConfig": {"startCell": "A1", "data": [[...], [...]]}}.
Parse markdown tables and CSV into a 2D array. Never invent rows the user
did not supply.`,
			RequiredFields: []string{"outputMode", "sheetAction", "sheetConfig"},
			OptionalFields: []string{"summary"},
			Keywords:       []string{"paste", "insert data", "add this", "add these", "add the following"},
			Scorer:         scoreWriteData,
			TokenCost:      200,
			Priority:       9,
			ConflictsWith:  []string{"chart_creation"},
		},
		"create_table": {
			ID:      "create_table",
			Version: 2,
			Instructions: `For "make me a table of X" requests, generate the table content.
Return {"outputMode": "sheet", "sheetAction": "createTable", "sheetConfig": {"startCell": "A1", "headers": [...], "data": [[...]]}}.`,
			RequiredFields: []string{"outputMode", "sheetAction", "sheetConfig"},
			OptionalFields: []string{"summary"},
			Keywords:       []string{"create a table", "make a table", "build a table", "table of"},
			TokenCost:      240,
			Priority:       5,
		},
		"sheet_operations": {
			ID:      "sheet_operations",
			Version: 2,
			Instructions: `For structural operations return sheetAction "sheetOps".
Return {"outputMode": "sheet", "sheetAction": "sheetOps", "sheetConfig": {"operation": "insertRow|insertColumn|deleteRow|deleteColumn|freeze|merge", ...}}.`,
			RequiredFields: []string{"outputMode", "sheetAction", "sheetConfig"},
			OptionalFields: []string{"summary"},
			Keywords:       []string{"insert row", "insert column", "delete row", "delete column", "freeze", "merge cells"},
			TokenCost:      180,
			Priority:       5,
		},
		"column_workflow": {
			ID:      "column_workflow",
			Version: 7,
			Instructions: `For AI transformations over every row (classify, summarize, score,
analyze) return a multi-step workflow writing into new columns.
Return {"outputMode": "columns", "steps": [{"action": "analyze|classify|extract|generate|summarize|translate|format|score", "description": "...", "instruction": "...", "outputFormat": "..."}]}.
Use at most 4 steps. Separate multiple output aspects with " | " in
outputFormat, one column per aspect. Each step may depend on earlier steps'
output columns.`,
			RequiredFields: []string{"outputMode", "steps"},
			OptionalFields: []string{"summary", "estimatedTime"},
			Keywords:       []string{"classify", "categorize", "summarize", "score", "analyze", "sentiment", "clean up", "generate", "for each row"},
			TokenCost:      340,
			Priority:       8,
			Examples: []WorkedExample{
				{
					Command:  "classify leads then summarize by category",
					Response: `{"outputMode":"columns","steps":[{"action":"classify","description":"Classify each lead","outputFormat":"Category"},{"action":"summarize","description":"Summarize by category","outputFormat":"Summary"}]}`,
					Keywords: []string{"classify", "categorize", "summarize"},
				},
			},
		},
	}
	return table
}

var literalDataRe = regexp.MustCompile(`(?m)^\s*\|?[^|\n]+\|[^|\n]+\||^[^,\n]+,[^,\n]+,[^,\n]+$`)

// scoreWriteData boosts hard on pasted tabular data, which keyword matching
// alone underrates.
func scoreWriteData(command string, _ *sheet.DataContext) float64 {
	if literalDataRe.MatchString(command) {
		return 0.95
	}
	return keywordScore(command, []string{"paste", "insert data", "add this", "add these", "add the following"})
}

// sheetActionForSkill maps a skill id to its canonical sheet action, for
// callers that need the reverse association.
func sheetActionForSkill(id string) string {
	switch id {
	case "chart_creation":
		return "chart"
	case "cell_formatting":
		return "format"
	case "conditional_formatting":
		return "conditionalFormat"
	case "data_validation":
		return "dataValidation"
	case "data_filter":
		return "filter"
	case "write_data":
		return "writeData"
	case "create_table":
		return "createTable"
	case "sheet_operations":
		return "sheetOps"
	default:
		return ""
	}
}

// SheetActionForSkill is the exported lookup.
func SheetActionForSkill(id string) string { return sheetActionForSkill(id) }

// SkillForSheetAction is the inverse lookup.
func SkillForSheetAction(action string) string {
	for _, id := range []string{"chart_creation", "cell_formatting", "conditional_formatting", "data_validation", "data_filter", "write_data", "create_table", "sheet_operations"} {
		if strings.EqualFold(sheetActionForSkill(id), action) {
			return id
		}
	}
	return ""
}
