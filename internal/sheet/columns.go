// Package sheet models the visible spreadsheet region a command operates on
// and owns all column-letter arithmetic. Column letters use bijective base-26
// numbering: there is no zero digit, "Z" is 26 and "AA" is 27. All placement
// of generated output columns goes through the Allocator so no two steps ever
// share a column.
package sheet

import (
	"fmt"
	"regexp"
	"strings"

	"sheetmind/internal/logging"
)

// LetterToNumber converts a column letter string to its 1-based column number.
// "A" -> 1, "Z" -> 26, "AA" -> 27. Returns 0 for an empty string.
func LetterToNumber(letters string) int {
	n := 0
	for _, r := range strings.ToUpper(letters) {
		if r < 'A' || r > 'Z' {
			continue
		}
		n = n*26 + int(r-'A'+1)
	}
	return n
}

// NumberToLetter converts a 1-based column number to its letter form.
// Bijective base-26 requires the (n-1) recurrence: a naive mod-26 would map
// 26 to "A0" instead of "Z".
func NumberToLetter(num int) string {
	if num <= 0 {
		return ""
	}
	var b []byte
	for num > 0 {
		rem := (num - 1) % 26
		b = append([]byte{byte('A' + rem)}, b...)
		num = (num - 1) / 26
	}
	return string(b)
}

// EmptyColumnsAfter returns count column letters starting immediately after
// the highest column present in dataColumns. With no data columns it starts
// at column 1. Pure function, no side effects.
func EmptyColumnsAfter(dataColumns []string, count int) []string {
	if count <= 0 {
		return nil
	}

	maxCol := 0
	for _, col := range dataColumns {
		if n := LetterToNumber(col); n > maxCol {
			maxCol = n
		}
	}

	out := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		out = append(out, NumberToLetter(maxCol+i))
	}
	return out
}

// BuildRange constructs an A1-style range string. Ordering of the endpoints
// is the caller's responsibility; no validation is performed here.
func BuildRange(startCol, endCol string, startRow, endRow int) string {
	return fmt.Sprintf("%s%d:%s%d", startCol, startRow, endCol, endRow)
}

// =============================================================================
// ALLOCATOR - consecutive output column assignment
// =============================================================================

// Allocator hands out consecutive output columns from an empty-column pool.
// When the pool runs dry it synthesizes the next letter arithmetically rather
// than failing; a multi-step plan must always get its columns.
type Allocator struct {
	pool     []string
	cursor   int
	reserved map[string]bool
	// lastIssued tracks the highest column number handed out so synthesized
	// columns continue past both the pool and anything already issued.
	lastIssued int
}

// NewAllocator creates an allocator over the context's empty columns.
func NewAllocator(emptyColumns []string) *Allocator {
	return &Allocator{pool: emptyColumns}
}

// Reserve withdraws a column from the pool so Next never hands it out again.
// Callers use this when the user pinned an output column directly. Reserving
// also advances lastIssued so synthesized columns land past the reservation.
func (a *Allocator) Reserve(col string) {
	col = strings.ToUpper(strings.TrimSpace(col))
	if col == "" {
		return
	}
	if a.reserved == nil {
		a.reserved = make(map[string]bool)
	}
	a.reserved[col] = true
	if num := LetterToNumber(col); num > a.lastIssued {
		a.lastIssued = num
	}
	logging.AllocatorDebug("Reserved column %s", col)
}

// Next reserves n consecutive columns and advances the cursor. Columns are
// never reused across calls.
func (a *Allocator) Next(n int) []string {
	if n <= 0 {
		n = 1
	}

	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		for a.cursor < len(a.pool) && a.reserved[a.pool[a.cursor]] {
			a.cursor++
		}
		if a.cursor < len(a.pool) {
			col := a.pool[a.cursor]
			a.cursor++
			if num := LetterToNumber(col); num > a.lastIssued {
				a.lastIssued = num
			}
			out = append(out, col)
			continue
		}
		// Pool exhausted: synthesize the next letter arithmetically.
		a.lastIssued++
		if a.lastIssued <= 0 {
			a.lastIssued = 1
		}
		col := NumberToLetter(a.lastIssued)
		logging.AllocatorDebug("Pool exhausted, synthesized column %s", col)
		out = append(out, col)
	}

	logging.AllocatorDebug("Allocated %d column(s): %v", n, out)
	return out
}

// Remaining reports how many pooled columns are still unissued.
func (a *Allocator) Remaining() int {
	n := 0
	for i := a.cursor; i < len(a.pool); i++ {
		if !a.reserved[a.pool[i]] {
			n++
		}
	}
	return n
}

// explicitColumnRe matches directives like "to column H", "in column AB",
// "into column C".
var explicitColumnRe = regexp.MustCompile(`(?i)\b(?:to|in|into)\s+column\s+([A-Z]{1,2})\b`)

// ExplicitOutputColumn extracts a user-specified output column from the
// command text, e.g. "summarize reviews to column H" -> "H". Returns the
// empty string if the command does not name one.
func ExplicitOutputColumn(command string) string {
	m := explicitColumnRe.FindStringSubmatch(command)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}
