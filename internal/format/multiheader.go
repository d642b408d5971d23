package format

import (
	"fmt"
	"strings"

	"roster-etl/internal/logging"
	"roster-etl/internal/model"
)

// minSplitHeaderRows is the smallest table that can hold a metadata block,
// both header rows, and at least one data row.
const minSplitHeaderRows = 6

// ResolvedTable is the single-header view of a raw table after header
// resolution: composite column names plus the data rows beneath them.
type ResolvedTable struct {
	Headers []string
	Data    [][]string
}

// ResolveSplitHeader locates the main/sub header pair in a vendor export
// whose first rows are a metadata block, and merges them into composite
// column names. window bounds the search for the main header row since
// vendors vary slightly in metadata block length. On failure the caller
// falls back to single-header parsing.
func ResolveSplitHeader(table *model.RawTable, window int) (*ResolvedTable, error) {
	if len(table.Rows) < minSplitHeaderRows {
		return nil, fmt.Errorf("split-header resolution requires at least %d rows, got %d", minSplitHeaderRows, len(table.Rows))
	}
	if window <= 0 || window > len(table.Rows)-1 {
		window = len(table.Rows) - 1
	}

	mainIdx := -1
	for i := 0; i < window; i++ {
		if rowHasDemographicTokens(table.Rows[i]) {
			mainIdx = i
			break
		}
	}
	if mainIdx < 0 {
		return nil, fmt.Errorf("no row within the first %d rows carries the demographic header tokens", window)
	}
	if mainIdx+1 >= len(table.Rows) {
		return nil, fmt.Errorf("main header row %d has no sub-header row beneath it", mainIdx)
	}

	mainRow := table.Rows[mainIdx]
	subRow := table.Rows[mainIdx+1]

	width := len(mainRow)
	if len(subRow) > width {
		width = len(subRow)
	}

	boundary := assessmentBoundary(mainRow)
	headers := make([]string, 0, width)
	lastMain := ""
	for col := 0; col < width; col++ {
		main := cellAt(mainRow, col)
		sub := cellAt(subRow, col)

		if col >= boundary {
			// Spreadsheet merged cells surface as one label followed by
			// blanks; carry the label across its sub-columns.
			if main == "" {
				main = lastMain
			} else {
				lastMain = main
			}
			if sub != "" && !strings.EqualFold(sub, main) {
				headers = append(headers, main+" - "+sub)
				continue
			}
		}
		headers = append(headers, main)
	}

	var data [][]string
	for _, row := range table.Rows[mainIdx+2:] {
		if rowIsBlank(row) {
			continue
		}
		data = append(data, row)
	}

	logging.Logf(logging.Debug, "Split header resolved: main row %d, %d columns, %d data rows", mainIdx, len(headers), len(data))
	return &ResolvedTable{Headers: headers, Data: data}, nil
}

// ResolveSingleHeader treats the first row as the header and the rest as
// data; blank rows are dropped. Used for generic tables and as the fallback
// when split-header resolution fails.
func ResolveSingleHeader(table *model.RawTable) (*ResolvedTable, error) {
	if len(table.Rows) < 2 {
		return nil, fmt.Errorf("table needs a header row and at least one data row, got %d rows", len(table.Rows))
	}
	var data [][]string
	for _, row := range table.Rows[1:] {
		if rowIsBlank(row) {
			continue
		}
		data = append(data, row)
	}
	return &ResolvedTable{Headers: table.Rows[0], Data: data}, nil
}

// assessmentBoundary returns the first column whose label reads as an
// assessment block name. Columns before it are demographics; columns at or
// after it belong to assessment blocks. Returns len(row) when no column
// qualifies.
func assessmentBoundary(row []string) int {
	for i, cell := range row {
		if isAssessmentLabel(cell) {
			return i
		}
	}
	return len(row)
}

func isAssessmentLabel(label string) bool {
	lower := strings.ToLower(label)
	return containsAny(lower, subjectTokens) ||
		schoolYearPattern.MatchString(label) ||
		standardsCodePattern.MatchString(label)
}

func rowHasDemographicTokens(row []string) bool {
	var hasStudent, hasID, hasGrade bool
	for _, cell := range row {
		switch lower := strings.ToLower(strings.TrimSpace(cell)); {
		case strings.Contains(lower, "student"):
			hasStudent = true
		case lower == "id" || strings.Contains(lower, " id"):
			hasID = true
		case strings.Contains(lower, "grade"):
			hasGrade = true
		}
	}
	return hasStudent && hasID && hasGrade
}

func rowIsBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}
