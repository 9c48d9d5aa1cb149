// Package analyzer scores how specific or vague a spreadsheet command is
// before any model is consulted. The result steers skill selection: genuinely
// vague input gets the conversational skill only, while specific commands
// (even composite ones) proceed to action skills.
package analyzer

import (
	"regexp"
	"strings"

	"sheetmind/internal/logging"
	"sheetmind/internal/sheet"
)

// RequestType classifies the overall shape of a command.
type RequestType string

const (
	TypeSpecific  RequestType = "specific"
	TypeComposite RequestType = "composite"
	TypeVague     RequestType = "vague"
	TypeQuestion  RequestType = "question"
)

// Recommendation is what the caller should do with the command.
type Recommendation string

const (
	RecommendExecute        Recommendation = "execute"
	RecommendSuggestOptions Recommendation = "suggest_options"
	RecommendClarify        Recommendation = "clarify"
)

// Analysis is the derived, read-only classification of one command.
// Computed fresh per command, never cached.
type Analysis struct {
	Type           RequestType
	Specificity    float64
	ImpliedActions int
	Categories     []string
	Recommendation Recommendation

	// Raw signals, kept for diagnosis and for the skill registry's
	// vague-vs-composite distinction.
	HasActionVerb   bool
	HasTarget       bool
	HasConcreteType bool
	HasVagueTerm    bool
	IsComposite     bool
	IsQuestion      bool
	HasLiteralTable bool
}

// Specificity score weights. The score starts at zero and accumulates these,
// then penalties apply.
const (
	weightActionVerb   = 0.25
	weightTarget       = 0.25
	weightConcreteType = 0.3
	weightNotVague     = 0.2

	penaltyVague     = 0.5 // x0.5 when vague without a concrete type
	penaltyComposite = 0.7 // x0.7 when composite with >2 implied actions

	// Pasted tabular data is unambiguous regardless of wording.
	literalTableSpecificity = 0.95

	executeFloor = 0.6
)

var (
	actionVerbRe = regexp.MustCompile(`(?i)\b(add|apply|bold|build|calculate|categorize|change|chart|classify|clean|color|convert|count|create|delete|extract|fill|filter|format|generate|graph|highlight|insert|make|merge|plot|remove|rename|replace|score|sort|split|sum|summarize|translate|validate|write)\b`)

	// Column letters, A1 ranges, "column X", "row N", or a quoted header.
	targetRe = regexp.MustCompile(`(?i)\b(column\s+[A-Z]{1,2}|row\s+\d+|[A-Z]{1,2}\d+(:[A-Z]{1,2}\d+)?|[A-Z]{1,2}:[A-Z]{1,2})\b|"[^"]+"|'[^']+'`)

	concreteTypeRe = regexp.MustCompile(`(?i)\b(bar|line|pie|scatter|area|column chart|bold|italic|underline|red|green|blue|yellow|orange|purple|dark|light|currency|percent|percentage|date|number|text|dropdown|checkbox|spanish|french|german|english|chinese|japanese|uppercase|lowercase|email|phone|url)\b`)

	vagueTermRe = regexp.MustCompile(`(?i)\b(better|nicer|cleaner|prettier|good|nice|improve|organize|fix up|something|somehow|maybe|pretty|beautiful|fancy)\b`)

	connectorRe = regexp.MustCompile(`(?i)\b(and|also|then|plus)\b|,\s*(?:then\s+)?(?:add|apply|make|create)`)

	questionRe = regexp.MustCompile(`(?i)^\s*(what|why|how|when|where|which|who|can you|could you|is there|are there|does|do you)\b|\?\s*$`)

	// A markdown-style table: at least one pipe-delimited row.
	literalTableRe = regexp.MustCompile(`(?m)^\s*\|?[^|\n]+\|[^|\n]+\|`)
)

// actionCategories maps keyword patterns to detected action categories.
var actionCategories = []struct {
	name string
	re   *regexp.Regexp
}{
	{"chart", regexp.MustCompile(`(?i)\b(chart|graph|plot|visuali[sz]e)\b`)},
	{"format", regexp.MustCompile(`(?i)\b(format|bold|italic|color|highlight|background)\b`)},
	{"validation", regexp.MustCompile(`(?i)\b(validat|dropdown|restrict|must be)\b`)},
	{"filter", regexp.MustCompile(`(?i)\b(filter|hide|show only|sort)\b`)},
	{"formula", regexp.MustCompile(`(?i)\b(translate|uppercase|lowercase|extract|calculate|sum|average|count)\b`)},
	{"transform", regexp.MustCompile(`(?i)\b(classify|categorize|summarize|score|analy[sz]e|clean|generate)\b`)},
	{"write", regexp.MustCompile(`(?i)\b(paste|insert data|add (?:this|these|the following))\b`)},
}

// Analyze scores a command's specificity and recommends how to proceed.
// The context is optional; it only sharpens target detection.
func Analyze(command string, ctx *sheet.DataContext) Analysis {
	timer := logging.StartTimer(logging.CategoryAnalyzer, "Analyze")
	defer timer.Stop()

	a := Analysis{
		HasActionVerb:   actionVerbRe.MatchString(command),
		HasTarget:       hasTarget(command, ctx),
		HasConcreteType: concreteTypeRe.MatchString(command),
		HasVagueTerm:    vagueTermRe.MatchString(command),
		IsQuestion:      questionRe.MatchString(command),
		HasLiteralTable: literalTableRe.MatchString(command),
	}

	a.Categories = detectCategories(command)
	a.ImpliedActions = impliedActions(command, a.Categories)
	a.IsComposite = a.ImpliedActions > 1 && connectorRe.MatchString(command)

	a.Specificity = scoreSpecificity(a)
	a.Type = classifyType(a)
	a.Recommendation = recommend(a)

	logging.AnalyzerDebug("Analyzed %q: type=%s specificity=%.2f actions=%d rec=%s",
		truncate(command, 60), a.Type, a.Specificity, a.ImpliedActions, a.Recommendation)

	return a
}

// scoreSpecificity accumulates fixed weights, then applies penalties. A
// literal table short-circuits everything: pasted data is unambiguous.
func scoreSpecificity(a Analysis) float64 {
	if a.HasLiteralTable {
		return literalTableSpecificity
	}

	score := 0.0
	if a.HasActionVerb {
		score += weightActionVerb
	}
	if a.HasTarget {
		score += weightTarget
	}
	if a.HasConcreteType {
		score += weightConcreteType
	}
	if !a.HasVagueTerm {
		score += weightNotVague
	}

	if a.HasVagueTerm && !a.HasConcreteType {
		score *= penaltyVague
	}
	if a.IsComposite && a.ImpliedActions > 2 {
		score *= penaltyComposite
	}

	return score
}

// classifyType follows a fixed decision order:
// question > literal table > vague-without-type > composite > specificity.
func classifyType(a Analysis) RequestType {
	switch {
	case a.IsQuestion:
		return TypeQuestion
	case a.HasLiteralTable:
		return TypeSpecific
	case a.HasVagueTerm && !a.HasConcreteType:
		return TypeVague
	case a.IsComposite:
		return TypeComposite
	case a.Specificity >= 0.5:
		return TypeSpecific
	default:
		return TypeVague
	}
}

func recommend(a Analysis) Recommendation {
	switch {
	case a.Type == TypeSpecific && a.Specificity >= executeFloor:
		return RecommendExecute
	case a.Type == TypeComposite:
		return RecommendSuggestOptions
	case a.Type == TypeVague && len(a.Categories) > 0:
		return RecommendSuggestOptions
	default:
		return RecommendClarify
	}
}

// hasTarget detects an explicit column/range/header reference. Header names
// from the context count as targets too.
func hasTarget(command string, ctx *sheet.DataContext) bool {
	if targetRe.MatchString(command) {
		return true
	}
	if ctx == nil {
		return false
	}
	lower := strings.ToLower(command)
	for _, name := range ctx.Headers {
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			return true
		}
	}
	return false
}

func detectCategories(command string) []string {
	var cats []string
	for _, cat := range actionCategories {
		if cat.re.MatchString(command) {
			cats = append(cats, cat.name)
		}
	}
	return cats
}

// impliedActions estimates how many distinct actions the command implies.
// Distinct categories dominate; connectors add evidence for at least two.
func impliedActions(command string, categories []string) int {
	n := len(categories)
	if n == 0 {
		if actionVerbRe.MatchString(command) {
			n = 1
		}
	}
	if n < 2 && connectorRe.MatchString(command) && len(actionVerbRe.FindAllString(command, -1)) > 1 {
		n = 2
	}
	return n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
