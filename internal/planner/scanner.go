package planner

import "strings"

// stripFences removes markdown code fences around a model response. The
// fence language tag (```json) is discarded with the fence line.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.Contains(trimmed, "```") {
		return trimmed
	}

	var out []string
	inFence := false
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// findJSONCandidates scans for top-level JSON object candidates, handling
// nested braces and string escapes with a byte-level state machine. ASCII
// delimiter bytes never appear inside UTF-8 multi-byte sequences, so byte
// iteration is safe.
func findJSONCandidates(s string) []string {
	var candidates []string
	var depth int
	start := -1
	var inString, escape bool

	for i := 0; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}

		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}

		if b == '"' {
			inString = true
			continue
		}

		if b == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if b == '}' {
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					candidates = append(candidates, s[start:i+1])
					start = -1
				}
			}
		}
	}

	return candidates
}

// extractJSON returns the first balanced top-level object after fence
// stripping, or "" when none exists.
func extractJSON(raw string) string {
	candidates := findJSONCandidates(stripFences(raw))
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}
