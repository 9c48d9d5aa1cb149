package sheet

import (
	"fmt"
	"sort"
	"strings"

	"sheetmind/internal/logging"
)

// maxSamplesPerColumn caps how many example values ride along per column.
const maxSamplesPerColumn = 3

// RowMetadata carries explicit range information when the caller knows it.
type RowMetadata struct {
	HeaderRange string `json:"headerRange,omitempty"`
	DataRange   string `json:"dataRange,omitempty"`
	FullRange   string `json:"fullRange,omitempty"`
}

// DataContext describes the currently visible spreadsheet region. It is
// constructed once at the system boundary and never mutated afterwards;
// every pipeline stage reads from the same value.
type DataContext struct {
	// Headers maps column letter to header name ("A" -> "Name").
	Headers map[string]string `json:"headers"`

	// DataColumns lists the data-bearing columns in sheet order.
	DataColumns []string `json:"dataColumns"`

	// SampleValues holds up to 3 example values per column.
	SampleValues map[string][]string `json:"sampleValues,omitempty"`

	// Row bounds of the data region (1-based, inclusive).
	RowStart int `json:"rowStart"`
	RowEnd   int `json:"rowEnd"`
	RowCount int `json:"rowCount"`

	// EmptyColumns lists columns currently free for output.
	EmptyColumns []string `json:"emptyColumns"`

	// RowMeta is optional explicit range metadata.
	RowMeta *RowMetadata `json:"rowMeta,omitempty"`
}

// ContextInput is the untyped shape callers hand us. Fields may be missing
// or partially filled; NewDataContext repairs what it can and defaults the
// rest so the core never sees a malformed context.
type ContextInput struct {
	Headers      map[string]string   `json:"headers"`
	DataColumns  []string            `json:"dataColumns"`
	SampleValues map[string][]string `json:"sampleValues"`
	RowStart     int                 `json:"rowStart"`
	RowEnd       int                 `json:"rowEnd"`
	RowCount     int                 `json:"rowCount"`
	EmptyColumns []string            `json:"emptyColumns"`
	RowMeta      *RowMetadata        `json:"rowMeta"`
}

// NewDataContext validates caller input into a canonical DataContext.
// Unknown or inconsistent shapes are repaired here, not deep inside the core.
func NewDataContext(in ContextInput) *DataContext {
	ctx := &DataContext{
		Headers:      in.Headers,
		DataColumns:  normalizeColumns(in.DataColumns),
		SampleValues: in.SampleValues,
		RowStart:     in.RowStart,
		RowEnd:       in.RowEnd,
		RowCount:     in.RowCount,
		EmptyColumns: normalizeColumns(in.EmptyColumns),
		RowMeta:      in.RowMeta,
	}

	if ctx.Headers == nil {
		ctx.Headers = map[string]string{}
	}

	// Derive data columns from headers if the caller omitted them.
	if len(ctx.DataColumns) == 0 && len(ctx.Headers) > 0 {
		for col := range ctx.Headers {
			ctx.DataColumns = append(ctx.DataColumns, strings.ToUpper(col))
		}
		sort.Slice(ctx.DataColumns, func(i, j int) bool {
			return LetterToNumber(ctx.DataColumns[i]) < LetterToNumber(ctx.DataColumns[j])
		})
	}

	// Repair row bounds.
	if ctx.RowStart <= 0 {
		ctx.RowStart = 2 // row 1 is assumed to be the header
	}
	if ctx.RowCount <= 0 && ctx.RowEnd >= ctx.RowStart {
		ctx.RowCount = ctx.RowEnd - ctx.RowStart + 1
	}
	if ctx.RowEnd < ctx.RowStart {
		if ctx.RowCount > 0 {
			ctx.RowEnd = ctx.RowStart + ctx.RowCount - 1
		} else {
			ctx.RowEnd = ctx.RowStart
			ctx.RowCount = 1
		}
	}

	// Default the empty-column pool to the columns after the data.
	if len(ctx.EmptyColumns) == 0 {
		ctx.EmptyColumns = EmptyColumnsAfter(ctx.DataColumns, 10)
	}

	// Clamp samples.
	for col, samples := range ctx.SampleValues {
		if len(samples) > maxSamplesPerColumn {
			ctx.SampleValues[col] = samples[:maxSamplesPerColumn]
		}
	}

	logging.AnalyzerDebug("DataContext built: %d data columns, %d empty columns, rows %d-%d",
		len(ctx.DataColumns), len(ctx.EmptyColumns), ctx.RowStart, ctx.RowEnd)

	return ctx
}

// DataRange returns the A1 range covering the data region across the data
// columns, preferring explicit metadata when present.
func (c *DataContext) DataRange() string {
	if c.RowMeta != nil && c.RowMeta.DataRange != "" {
		return c.RowMeta.DataRange
	}
	if len(c.DataColumns) == 0 {
		return ""
	}
	return BuildRange(c.DataColumns[0], c.DataColumns[len(c.DataColumns)-1], c.RowStart, c.RowEnd)
}

// HeaderName returns the header for a column, falling back to the letter.
func (c *DataContext) HeaderName(col string) string {
	if name, ok := c.Headers[col]; ok && name != "" {
		return name
	}
	return col
}

// Summary renders a compact description of the visible data for prompts:
// column letters with headers, sample values, and row bounds.
func (c *DataContext) Summary() string {
	var b strings.Builder

	if len(c.DataColumns) == 0 {
		b.WriteString("The sheet is empty.")
		return b.String()
	}

	b.WriteString("Columns:\n")
	for _, col := range c.DataColumns {
		fmt.Fprintf(&b, "  %s: %s", col, c.HeaderName(col))
		if samples := c.SampleValues[col]; len(samples) > 0 {
			fmt.Fprintf(&b, " (e.g. %s)", strings.Join(samples, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Rows: %d-%d (%d data rows)\n", c.RowStart, c.RowEnd, c.RowCount)
	if len(c.EmptyColumns) > 0 {
		end := len(c.EmptyColumns)
		if end > 5 {
			end = 5
		}
		fmt.Fprintf(&b, "Empty columns: %s\n", strings.Join(c.EmptyColumns[:end], ", "))
	}

	return b.String()
}

// normalizeColumns uppercases and drops anything that is not a column letter.
func normalizeColumns(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, col := range cols {
		col = strings.ToUpper(strings.TrimSpace(col))
		if col == "" || LetterToNumber(col) == 0 {
			continue
		}
		out = append(out, col)
	}
	return out
}
