// Package mapper generates field mappings from resolved column headers to
// canonical target fields. Structural rule families run first; a fuzzy
// similarity fallback covers columns no rule claims.
package mapper

import (
	"strings"

	"roster-etl/internal/logging"
	"roster-etl/internal/model"
	"roster-etl/internal/transform"
	"roster-etl/internal/util"
)

// demographicRules are the exact-name rules of the vendor export. Each is
// required; the mapper emits the mapping only when the column exists and the
// validator enforces the resulting fields.
var demographicRules = map[string]string{
	"student": model.FieldStudentName,
	"id":      model.FieldSchoolStudentID,
	"grade":   model.FieldGradeLevel,
}

// attributeSuffixRules match composite assessment columns by their
// "<block> - <attribute>" suffix. Each is optional.
var attributeSuffixRules = []struct {
	suffix string
	target string
}{
	{" - Result Date", model.FieldTestDate},
	{" - Level", model.FieldPerformanceLevelText},
	{" - Scaled", model.FieldScaleScore},
}

// fuzzyCatalog maps normalized candidate column names to canonical targets
// for the similarity fallback. Several candidates may share a target.
var fuzzyCatalog = []struct {
	name   string
	target string
}{
	{"school_student_id", model.FieldSchoolStudentID},
	{"student_id", model.FieldSchoolStudentID},
	{"student_number", model.FieldSchoolStudentID},
	{"student_name", model.FieldStudentName},
	{"name", model.FieldStudentName},
	{"first_name", model.FieldFirstName},
	{"last_name", model.FieldLastName},
	{"date_of_birth", model.FieldDOB},
	{"dob", model.FieldDOB},
	{"birth_date", model.FieldDOB},
	{"grade_level", model.FieldGradeLevel},
	{"grade", model.FieldGradeLevel},
	{"enrollment_date", model.FieldEnrollmentDate},
	{"graduation_year", model.FieldGraduationYear},
	{"gpa", model.FieldCurrentGPA},
	{"current_gpa", model.FieldCurrentGPA},
	{"academic_status", model.FieldAcademicStatus},
	{"status", model.FieldAcademicStatus},
	{"school_id", model.FieldSchoolID},
	{"school", model.FieldSchoolID},
}

// LinkItMappings generates the mapping set for the vendor export. Rule
// families are independent and not mutually exclusive: one header may
// contribute an attribute mapping while its block name also feeds the
// derived school-year and assessment-type mappings. Insertion order follows
// the header order.
func LinkItMappings(headers []string, threshold float64) []model.FieldMapping {
	var mappings []model.FieldMapping

	for _, header := range headers {
		matched := false
		trimmed := strings.TrimSpace(header)

		if target, ok := demographicRules[strings.ToLower(trimmed)]; ok {
			mappings = append(mappings, model.FieldMapping{
				SourceField: trimmed,
				TargetField: target,
				Required:    true,
			})
			matched = true
		}

		for _, rule := range attributeSuffixRules {
			if strings.EqualFold(trimmed, strings.TrimPrefix(rule.suffix, " - ")) ||
				hasSuffixFold(trimmed, rule.suffix) {
				mappings = append(mappings, model.FieldMapping{
					SourceField: trimmed,
					TargetField: rule.target,
				})
				matched = true
			}
		}

		if !matched {
			if m, ok := fuzzyMapping(trimmed, threshold); ok {
				mappings = append(mappings, m)
			}
		}
	}

	mappings = append(mappings, derivedMappings(headers)...)

	logging.Logf(logging.Debug, "Mapper produced %d mappings from %d headers", len(mappings), len(headers))
	return mappings
}

// derivedMappings synthesizes school_year and assessment_type mappings from
// the assessment block names embedded in the headers. The value is computed
// into DefaultValue rather than read from a source cell.
func derivedMappings(headers []string) []model.FieldMapping {
	var mappings []model.FieldMapping
	for _, block := range transform.AssessmentBlocks(headers) {
		if year := transform.SchoolYearFrom(block); year != "" {
			mappings = append(mappings, model.FieldMapping{
				SourceField:  block,
				TargetField:  model.FieldSchoolYear,
				DefaultValue: year,
			})
		}
		mappings = append(mappings, model.FieldMapping{
			SourceField:  block,
			TargetField:  model.FieldAssessmentType,
			DefaultValue: transform.InferAssessmentType(block),
		})
	}
	return mappings
}

// GenericMappings maps an unrecognized table purely by similarity against
// the canonical field catalog.
func GenericMappings(headers []string, threshold float64) []model.FieldMapping {
	var mappings []model.FieldMapping
	for _, header := range headers {
		if m, ok := fuzzyMapping(strings.TrimSpace(header), threshold); ok {
			mappings = append(mappings, m)
		}
	}
	logging.Logf(logging.Debug, "Generic mapper produced %d mappings from %d headers", len(mappings), len(headers))
	return mappings
}

// fuzzyMapping finds the best catalog match for a header by normalized
// edit-distance similarity. The mapping is accepted only at or above the
// threshold.
func fuzzyMapping(header string, threshold float64) (model.FieldMapping, bool) {
	normalized := util.Normalize(header)
	if normalized == "" {
		return model.FieldMapping{}, false
	}

	bestScore := 0.0
	bestTarget := ""
	for _, candidate := range fuzzyCatalog {
		score := util.Similarity(normalized, candidate.name)
		if score > bestScore {
			bestScore = score
			bestTarget = candidate.target
		}
	}
	if bestScore < threshold || bestTarget == "" {
		return model.FieldMapping{}, false
	}
	return model.FieldMapping{
		SourceField: header,
		TargetField: bestTarget,
		Similarity:  bestScore,
	}, true
}

func hasSuffixFold(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	return strings.EqualFold(s[len(s)-len(suffix):], suffix)
}
