package planner

import (
	"regexp"
	"strconv"
	"strings"

	"sheetmind/internal/logging"
	"sheetmind/internal/router"
	"sheetmind/internal/sheet"
)

// =============================================================================
// SHEET BRANCH: NORMALIZATION CASCADE
// =============================================================================
// Models misname and mis-nest sheet actions constantly. Each rule below
// repairs one observed failure shape; the order matters. Ambiguity resolves
// by fixed priority: explicit classifier override > structural inference >
// default.

func (p *Parser) parseSheet(body map[string]any, dataCtx *sheet.DataContext, command string, cls *router.Classification) *Plan {
	action := getString(body, "sheetAction")
	if action == "" {
		action = getString(body, "action")
	}
	config := getMap(body, "sheetConfig")
	if config == nil {
		config = getMap(body, "config")
	}
	if config == nil {
		config = map[string]any{}
	}
	normalized := false

	// Rule 1: absent action, infer from the shape of a steps array.
	if action == "" {
		if inferred := inferActionFromSteps(getSlice(body, "steps")); inferred != "" {
			logging.ParserDebug("Inferred action %q from steps shape", inferred)
			action = inferred
			normalized = true
		}
	}

	// Rule 2: "format" that the user literally asked to be conditional.
	// Gated on the literal word so plain formatting commands are never
	// rewritten.
	if action == "format" && strings.Contains(strings.ToLower(command), "conditional") {
		if _, hasRules := config["rules"]; !hasRules {
			if rules := synthesizeConditionalRules(command); len(rules) > 0 {
				action = "conditionalFormat"
				config["rules"] = rules
				normalized = true
				logging.Parser("Synthesized %d conditional rules from command text", len(rules))
			}
		}
	}

	// Rule 3: the common misname.
	if action == "validation" {
		action = "dataValidation"
		normalized = true
	}

	// Rule 4: validation or conditional-format config nested under a
	// generic format action's options object.
	if action == "format" {
		if opts := getMap(config, "options"); opts != nil {
			if hoisted, newAction := hoistNestedConfig(opts); newAction != "" {
				action = newAction
				for k, v := range hoisted {
					config[k] = v
				}
				delete(config, "options")
				normalized = true
				logging.ParserDebug("Hoisted nested %s config from options", newAction)
			}
		}
	}

	// Rule 5: criteria.minimum/maximum flattened to top-level min/max.
	if criteria := getMap(config, "criteria"); criteria != nil {
		if v, ok := getFloat(criteria, "minimum"); ok {
			config["min"] = v
			normalized = true
		}
		if v, ok := getFloat(criteria, "maximum"); ok {
			config["max"] = v
			normalized = true
		}
		if _, hasMin := config["min"]; hasMin {
			delete(config, "criteria")
		}
	}

	// Rule 6: number validation missing min/max, recover the bounds from
	// the command text.
	if action == "dataValidation" && getString(config, "validationType") == "number" {
		_, hasMin := config["min"]
		_, hasMax := config["max"]
		if !hasMin || !hasMax {
			if lo, hi, ok := extractNumberBounds(command); ok {
				config["min"] = lo
				config["max"] = hi
				normalized = true
				logging.ParserDebug("Extracted validation bounds %g-%g from command", lo, hi)
			}
		}
	}

	// Rule 7: bare full-column validation range, narrowed to the real data
	// rows when we know them.
	if action == "dataValidation" && dataCtx.RowMeta != nil {
		if rng := getString(config, "range"); isBareColumnRange(rng) {
			col := strings.SplitN(rng, ":", 2)[0]
			config["range"] = sheet.BuildRange(col, col, dataCtx.RowStart, dataCtx.RowEnd)
			normalized = true
		}
	}

	// A confident classifier beats whatever we parsed.
	if cls != nil && cls.SheetAction != "" && cls.Confidence >= p.OverrideConfidence && cls.SheetAction != action {
		logging.Parser("Classifier override: %q -> %q (confidence %.2f)", action, cls.SheetAction, cls.Confidence)
		action = cls.SheetAction
		normalized = true
	}

	// Last-resort shape inference, then the absolute default.
	if action == "" {
		action = inferActionFromConfig(config)
		normalized = true
		logging.ParserDebug("Action inferred from config shape: %s", action)
	}

	return &Plan{
		OutputMode:    "sheet",
		Summary:       getString(body, "summary"),
		SheetAction:   action,
		SheetConfig:   config,
		EstimatedTime: "Instant",
		WasNormalized: normalized,
	}
}

// inferActionFromSteps looks at the first step's fields: formatting-like
// fields mean format, chart-like fields mean chart.
func inferActionFromSteps(steps []any) string {
	if len(steps) == 0 {
		return ""
	}
	st, ok := steps[0].(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"bold", "italic", "backgroundColor", "fontColor", "textFormat"} {
		if _, present := st[key]; present {
			return "format"
		}
	}
	for _, key := range []string{"chartType", "series", "axis"} {
		if _, present := st[key]; present {
			return "chart"
		}
	}
	return ""
}

// inferActionFromConfig is the final shape-inference ladder.
func inferActionFromConfig(config map[string]any) string {
	switch {
	case config["chartType"] != nil:
		return "chart"
	case config["rules"] != nil:
		return "conditionalFormat"
	case config["validationType"] != nil:
		return "dataValidation"
	case config["data"] != nil:
		return "writeData"
	case config["operation"] != nil:
		return "sheetOps"
	default:
		return "format"
	}
}

// hoistNestedConfig recognizes validation or conditional-format fields
// buried in an options object and returns them with the corrected action.
func hoistNestedConfig(opts map[string]any) (map[string]any, string) {
	if opts["validationType"] != nil {
		return opts, "dataValidation"
	}
	if opts["rules"] != nil {
		return opts, "conditionalFormat"
	}
	return nil, ""
}

var (
	// "equals closed ... green" style phrases.
	equalsRuleRe = regexp.MustCompile(`(?i)equals?\s+"?([\w .-]+?)"?\s+(?:\w+\s+){0,4}?(red|green|blue|yellow|orange|purple|pink|gray|grey|white|black)\b`)

	colorHex = map[string]string{
		"red": "#F4C7C3", "green": "#D9EAD3", "blue": "#C9DAF8", "yellow": "#FFF2CC",
		"orange": "#FCE5CD", "purple": "#D9D2E9", "pink": "#EAD1DC", "gray": "#D9D9D9",
		"grey": "#D9D9D9", "white": "#FFFFFF", "black": "#000000",
	}
)

// synthesizeConditionalRules extracts "equals <value> ... <color>" phrases.
func synthesizeConditionalRules(command string) []any {
	var rules []any
	for _, m := range equalsRuleRe.FindAllStringSubmatch(command, -1) {
		value := strings.TrimSpace(m[1])
		color := strings.ToLower(m[2])
		rules = append(rules, map[string]any{
			"condition":       "equals",
			"value":           value,
			"backgroundColor": colorHex[color],
		})
	}
	return rules
}

var boundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)between\s+(-?\d+(?:\.\d+)?)\s+and\s+(-?\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)from\s+(-?\d+(?:\.\d+)?)\s+to\s+(-?\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*-\s*(-?\d+(?:\.\d+)?)`),
}

// extractNumberBounds recovers min/max from "between X and Y" style phrases.
// The lesser number is always min.
func extractNumberBounds(command string) (float64, float64, bool) {
	for _, re := range boundPatterns {
		m := re.FindStringSubmatch(command)
		if m == nil {
			continue
		}
		lo, okLo := parseFloat(m[1])
		hi, okHi := parseFloat(m[2])
		if !okLo || !okHi {
			continue
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return lo, hi, true
	}
	return 0, 0, false
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

var bareColumnRangeRe = regexp.MustCompile(`^[A-Z]{1,2}:[A-Z]{1,2}$`)

func isBareColumnRange(rng string) bool {
	return bareColumnRangeRe.MatchString(strings.ToUpper(strings.TrimSpace(rng)))
}
