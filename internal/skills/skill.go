// Package skills holds the static skill table and the registry that selects
// and assembles skills into a prompt fragment for one command.
package skills

import (
	"strings"

	"sheetmind/internal/sheet"
)

// Skill is one self-contained capability bundle. Statically defined,
// selected at request time, never mutated.
type Skill struct {
	ID      string
	Version int

	// Instructions is the model-facing text block injected into the prompt
	// when this skill is selected.
	Instructions string

	// Declared I/O schema of the skill's JSON response.
	RequiredFields []string
	OptionalFields []string

	// Keywords score the skill against a command when no Scorer is set.
	Keywords []string

	// Scorer overrides keyword matching with skill-specific logic.
	Scorer func(command string, ctx *sheet.DataContext) float64

	TokenCost int
	Priority  int

	ComposableWith []string
	ConflictsWith  []string

	Examples []WorkedExample
}

// WorkedExample is an input/output pair shown to the model when its keywords
// overlap the command.
type WorkedExample struct {
	Command  string
	Response string
	Keywords []string
}

// Score computes this skill's intent score for a command in [0,1].
func (s *Skill) Score(command string, ctx *sheet.DataContext) float64 {
	if s.Scorer != nil {
		return clamp01(s.Scorer(command, ctx))
	}
	return keywordScore(command, s.Keywords)
}

// ConflictsWithAny reports whether this skill conflicts with any selected id.
func (s *Skill) ConflictsWithAny(selected []*Skill) bool {
	for _, other := range selected {
		for _, id := range s.ConflictsWith {
			if id == other.ID {
				return true
			}
		}
		for _, id := range other.ConflictsWith {
			if id == s.ID {
				return true
			}
		}
	}
	return false
}

// keywordScore is the default matcher: the strongest single keyword hit wins,
// with a small bonus per additional hit.
func keywordScore(command string, keywords []string) float64 {
	lower := strings.ToLower(command)
	best := 0.0
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			hits++
			// Longer keywords are stronger evidence than short ones.
			w := 0.7
			if len(kw) >= 8 {
				w = 0.85
			}
			if w > best {
				best = w
			}
		}
	}
	if hits > 1 {
		best += 0.05 * float64(hits-1)
	}
	return clamp01(best)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
