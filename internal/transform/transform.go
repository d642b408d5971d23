// Package transform converts mapped row data into canonical assessment
// records, applying the vendor business rules for subjects, program types,
// and subscore fan-out.
package transform

import (
	"regexp"
	"strconv"
	"strings"

	"roster-etl/internal/logging"
	"roster-etl/internal/model"
	"roster-etl/internal/util"
)

var schoolYearPattern = regexp.MustCompile(`\d{4}-\d{2}`)

// subscoreDimensions is the fixed list of recognized sub-dimension column
// groups. Each present dimension fans out into its own sibling record.
var subscoreDimensions = []string{
	"Reading: Literary Text",
	"Reading: Informational Text",
	"Reading: Vocabulary",
	"Writing: Expression",
	"Writing: Conventions",
}

// InferSubject derives the canonical subject from an assessment block name.
// Unrecognized names default to ELA, matching the dominant export mix.
func InferSubject(label string) string {
	lower := strings.ToLower(label)
	switch {
	case strings.Contains(lower, "math"):
		return "Mathematics"
	case strings.Contains(lower, "ela"):
		return "ELA"
	default:
		return "ELA"
	}
}

// subjectTag is the short subject token embedded in assessment type tags.
func subjectTag(label string) string {
	if strings.Contains(strings.ToLower(label), "math") {
		return "MATH"
	}
	return "ELA"
}

// InferAssessmentType derives the program type tag from an assessment block
// name. The cascade is ordered most-specific-first: Start Strong before
// NJSLS (whose Form A/B split defaults to Form A) before plain NJSLA, with a
// bare subject tag when no program token matches.
func InferAssessmentType(label string) string {
	lower := strings.ToLower(label)
	subj := subjectTag(label)
	switch {
	case strings.Contains(lower, "start strong"):
		return "START_STRONG_" + subj
	case strings.Contains(lower, "njsls"):
		if strings.Contains(lower, "form b") {
			return "NJSLS_" + subj + "_FORM_B"
		}
		return "NJSLS_" + subj + "_FORM_A"
	case strings.Contains(lower, "njsla"):
		return "NJSLA_" + subj
	default:
		return subj
	}
}

// SchoolYearFrom extracts the first embedded year-range token (e.g.
// "2023-24") from an assessment block name, or "" when absent.
func SchoolYearFrom(label string) string {
	return schoolYearPattern.FindString(label)
}

// isAssessmentName reports whether a label reads as an assessment block
// name: it carries a subject/program token or a year-range token.
func isAssessmentName(label string) bool {
	lower := strings.ToLower(label)
	for _, token := range []string{"ela", "math", "njsla", "njsls", "start strong"} {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return schoolYearPattern.MatchString(label)
}

// AssessmentBlocks returns the distinct assessment block names present in a
// header set, in first-appearance order. A block surfaces either as a bare
// column or as the prefix of composite "<block> - <attribute>" columns.
// Subscore dimension groups are not blocks.
func AssessmentBlocks(headers []string) []string {
	var blocks []string
	seen := make(map[string]bool)
	for _, h := range headers {
		name := h
		if base, _, ok := strings.Cut(h, " - "); ok {
			name = base
		}
		name = strings.TrimSpace(name)
		if !isAssessmentName(name) || isSubscoreDimension(name) || seen[name] {
			continue
		}
		seen[name] = true
		blocks = append(blocks, name)
	}
	return blocks
}

func isSubscoreDimension(name string) bool {
	for _, dim := range subscoreDimensions {
		if strings.EqualFold(name, dim) {
			return true
		}
	}
	return false
}

// parseScore parses a scale score with missing/unparseable treated as zero.
// Score cells in vendor exports routinely hold blanks or placeholders and
// must never block a row.
func parseScore(raw string) float64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	score, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		logging.Logf(logging.Debug, "Unparseable score '%s' treated as 0", raw)
		return 0
	}
	return score
}

// LinkItRow fans one data row out into canonical assessment records. Each
// assessment block yields a base record; each populated subscore dimension
// yields a sibling record sharing the parent's student, date and grade.
// Rows with no assessment block emit a single zero-score placeholder so the
// student's unassessed state is still visible downstream.
func LinkItRow(headers []string, row []string, emit func(model.AssessmentRecord)) error {
	cells := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(row) {
			cells[h] = strings.TrimSpace(row[i])
		}
	}
	lookup := func(name string) string {
		if v, ok := cells[name]; ok {
			return v
		}
		for h, v := range cells {
			if strings.EqualFold(h, name) {
				return v
			}
		}
		return ""
	}

	studentID := lookup("ID")
	studentName := lookup("Student")
	grade := lookup("Grade")

	// Present subscore dimensions, gathered up front: the base record
	// carries them as a summary map and each also fans out into a sibling
	// record below.
	type dimValue struct {
		name   string
		level  string
		scaled string
	}
	var dims []dimValue
	subscores := make(map[string]string)
	for _, dim := range subscoreDimensions {
		level := lookup(dim + " - Level")
		scaled := lookup(dim + " - Scaled")
		if level == "" && scaled == "" {
			continue
		}
		dims = append(dims, dimValue{name: dim, level: level, scaled: scaled})
		if scaled != "" {
			subscores[util.Normalize(dim)] = scaled
		} else {
			subscores[util.Normalize(dim)] = level
		}
	}
	if len(subscores) == 0 {
		subscores = nil
	}

	blocks := AssessmentBlocks(headers)
	if len(blocks) == 0 {
		emit(model.AssessmentRecord{
			StudentID:            studentID,
			StudentName:          studentName,
			AssessmentName:       "Unassessed",
			Grade:                grade,
			GradeLevel:           grade,
			ScaleScore:           0,
			PerformanceLevelText: "Not Assessed",
		})
		return nil
	}

	var parent model.AssessmentRecord
	for i, block := range blocks {
		testDate := lookup(block + " - Result Date")
		rec := model.AssessmentRecord{
			StudentID:            studentID,
			StudentName:          studentName,
			AssessmentName:       block,
			AssessmentDate:       testDate,
			Subject:              InferSubject(block),
			Grade:                grade,
			GradeLevel:           grade,
			ScaleScore:           parseScore(lookup(block + " - Scaled")),
			PerformanceLevelText: lookup(block + " - Level"),
			TestDate:             testDate,
			AssessmentType:       InferAssessmentType(block),
		}
		if i == 0 {
			rec.Subscores = subscores
			parent = rec
		}
		emit(rec)
	}

	for _, dim := range dims {
		emit(model.AssessmentRecord{
			StudentID:            parent.StudentID,
			StudentName:          parent.StudentName,
			AssessmentName:       dim.name,
			AssessmentDate:       parent.AssessmentDate,
			Subject:              parent.Subject,
			Grade:                parent.Grade,
			GradeLevel:           parent.GradeLevel,
			ScaleScore:           parseScore(dim.scaled),
			PerformanceLevelText: dim.level,
			TestDate:             parent.TestDate,
			AssessmentType:       parent.AssessmentType,
			QuestionID:           util.Normalize(dim.name),
		})
	}
	return nil
}
