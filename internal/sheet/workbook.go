package sheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"sheetmind/internal/logging"
)

// BuildContextFromWorkbook opens an .xlsx file and derives a DataContext from
// the named sheet (or the active sheet when sheetName is empty). Row 1 is
// treated as the header row. This is a convenience for the CLI; server
// callers usually hand us a ContextInput directly.
func BuildContextFromWorkbook(path, sheetName string) (*DataContext, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(f.GetActiveSheetIndex())
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return NewDataContext(ContextInput{}), nil
	}

	in := ContextInput{
		Headers:      map[string]string{},
		SampleValues: map[string][]string{},
	}

	// Header row.
	for i, name := range rows[0] {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		col := NumberToLetter(i + 1)
		in.Headers[col] = name
		in.DataColumns = append(in.DataColumns, col)
	}

	// Sample values from the first data rows.
	for r := 1; r < len(rows) && r <= maxSamplesPerColumn; r++ {
		for i, val := range rows[r] {
			val = strings.TrimSpace(val)
			if val == "" {
				continue
			}
			col := NumberToLetter(i + 1)
			if _, ok := in.Headers[col]; !ok {
				continue
			}
			in.SampleValues[col] = append(in.SampleValues[col], val)
		}
	}

	in.RowStart = 2
	in.RowEnd = len(rows)
	if in.RowEnd < in.RowStart {
		in.RowEnd = in.RowStart
	}
	in.RowCount = in.RowEnd - in.RowStart + 1

	logging.AnalyzerDebug("Workbook context: sheet=%q, %d columns, %d rows",
		sheetName, len(in.DataColumns), in.RowCount)

	return NewDataContext(in), nil
}
