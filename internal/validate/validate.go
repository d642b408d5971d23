// Package validate checks canonical student records against a rule table
// plus a pass of cross-field business rules. Rule failures block the record;
// business-rule findings are advisory warnings only.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Knetic/govaluate"

	"roster-etl/internal/config"
	"roster-etl/internal/logging"
	"roster-etl/internal/model"
)

// timeNow allows tests to pin the clock for the date-consistency rules.
var timeNow = time.Now

// builtinRules is the baseline student rule set. Config-supplied rules are
// appended after it.
var builtinRules = []config.ValidationRule{
	{Field: model.FieldSchoolStudentID, Kind: config.RuleKindRequired, Message: "school student id is required"},
	{Field: model.FieldFirstName, Kind: config.RuleKindRequired, Message: "first name is required"},
	{Field: model.FieldLastName, Kind: config.RuleKindRequired, Message: "last name is required"},
	{Field: model.FieldGradeLevel, Kind: config.RuleKindRange, Min: floatPtr(0), Max: floatPtr(13), Message: "grade level must be between 0 and 13"},
	{Field: model.FieldCurrentGPA, Kind: config.RuleKindRange, Min: floatPtr(0), Max: floatPtr(4), Message: "GPA must be between 0.0 and 4.0"},
	{Field: model.FieldGraduationYear, Kind: config.RuleKindFormat, Pattern: `^\d{4}$`, Message: "graduation year must be a four-digit year"},
}

func floatPtr(f float64) *float64 { return &f }

type compiledRule struct {
	rule    config.ValidationRule
	pattern *regexp.Regexp
	expr    *govaluate.EvaluableExpression
}

// Validator applies the built-in student rules plus any configured extras.
type Validator struct {
	rules []compiledRule
}

// NewValidator compiles the rule table. Config rules are assumed
// structurally valid (checked at config load); compile failures here are
// still reported rather than deferred to evaluation time.
func NewValidator(cfg config.ValidationConfig) (*Validator, error) {
	all := make([]config.ValidationRule, 0, len(builtinRules)+len(cfg.Rules))
	all = append(all, builtinRules...)
	all = append(all, cfg.Rules...)

	v := &Validator{rules: make([]compiledRule, 0, len(all))}
	for _, rule := range all {
		cr := compiledRule{rule: rule}
		switch rule.Kind {
		case config.RuleKindFormat:
			pattern, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return nil, fmt.Errorf("format rule for '%s': invalid pattern: %w", rule.Field, err)
			}
			cr.pattern = pattern
		case config.RuleKindCustom:
			expr, err := govaluate.NewEvaluableExpression(rule.Expr)
			if err != nil {
				return nil, fmt.Errorf("custom rule for '%s': invalid expression: %w", rule.Field, err)
			}
			cr.expr = expr
		}
		v.rules = append(v.rules, cr)
	}
	return v, nil
}

// ValidateStudent runs the rule table and the business-rule pass against one
// record. Errors block persistence; warnings never do.
func (v *Validator) ValidateStudent(rec *model.StudentRecord) model.ValidationResult {
	result := model.ValidationResult{Valid: true}

	for _, cr := range v.rules {
		v.applyRule(cr, rec, &result)
	}
	businessWarnings(rec, &result)

	if !result.Valid {
		logging.Logf(logging.Debug, "Student '%s' failed validation with %d error(s)", rec.SchoolStudentID, len(result.Errors))
	}
	return result
}

func (v *Validator) applyRule(cr compiledRule, rec *model.StudentRecord, result *model.ValidationResult) {
	rule := cr.rule
	value := strings.TrimSpace(rec.Field(rule.Field))

	if rule.Kind == config.RuleKindRequired {
		if value == "" {
			result.AddError(rule.Field, messageOr(rule, "value is required"), value)
		}
		return
	}
	// Non-required kinds are presence-gated: an absent value passes.
	if value == "" {
		return
	}

	switch rule.Kind {
	case config.RuleKindFormat:
		if !cr.pattern.MatchString(value) {
			result.AddError(rule.Field, messageOr(rule, fmt.Sprintf("value does not match pattern '%s'", rule.Pattern)), value)
		}
	case config.RuleKindRange:
		num, err := strconv.ParseFloat(value, 64)
		if err != nil {
			result.AddError(rule.Field, messageOr(rule, "value is not numeric"), value)
			return
		}
		if rule.Min != nil && num < *rule.Min {
			result.AddError(rule.Field, messageOr(rule, fmt.Sprintf("value below minimum %v", *rule.Min)), value)
		}
		if rule.Max != nil && num > *rule.Max {
			result.AddError(rule.Field, messageOr(rule, fmt.Sprintf("value above maximum %v", *rule.Max)), value)
		}
	case config.RuleKindCustom:
		params := expressionParams(rec)
		params["value"] = value
		out, err := cr.expr.Evaluate(params)
		if err != nil {
			result.AddError(rule.Field, messageOr(rule, fmt.Sprintf("rule evaluation failed: %v", err)), value)
			return
		}
		if pass, ok := out.(bool); !ok || !pass {
			result.AddError(rule.Field, messageOr(rule, "value failed custom rule"), value)
		}
	}
}

// expressionParams exposes the record's scalar fields to custom rule
// expressions under their canonical names.
func expressionParams(rec *model.StudentRecord) map[string]interface{} {
	names := []string{
		model.FieldSchoolStudentID, model.FieldFirstName, model.FieldLastName,
		model.FieldDOB, model.FieldGradeLevel, model.FieldEnrollmentDate,
		model.FieldGraduationYear, model.FieldCurrentGPA,
		model.FieldAcademicStatus, model.FieldSchoolID,
	}
	params := make(map[string]interface{}, len(names)+1)
	for _, name := range names {
		params[name] = rec.Field(name)
	}
	return params
}

func messageOr(rule config.ValidationRule, fallback string) string {
	if rule.Message != "" {
		return rule.Message
	}
	return fallback
}

// businessWarnings is the cross-field consistency pass. Findings here are
// plausible-but-suspicious, so they warn instead of block.
func businessWarnings(rec *model.StudentRecord, result *model.ValidationResult) {
	now := timeNow()

	grade, gradeOK := parseIntField(rec.GradeLevel)

	if gradeOK {
		if gradYear, ok := parseIntField(rec.GraduationYear); ok {
			projected := now.Year() + (12 - grade)
			if abs(gradYear-projected) > 2 {
				result.AddWarning(model.FieldGraduationYear,
					fmt.Sprintf("graduation year %d is inconsistent with grade %d (projected %d)", gradYear, grade, projected),
					rec.GraduationYear)
			}
		}
	}

	if enrolled, ok := parseDateField(rec.EnrollmentDate); ok {
		if enrolled.Before(now.AddDate(-1, 0, 0)) || enrolled.After(now.AddDate(1, 0, 0)) {
			result.AddWarning(model.FieldEnrollmentDate,
				"enrollment date is more than a year from today", rec.EnrollmentDate)
		}
	}

	if gradeOK {
		if dob, ok := parseDateField(rec.DOB); ok {
			age := yearsBetween(dob, now)
			expected := 5 + grade
			if abs(age-expected) > 3 {
				result.AddWarning(model.FieldDOB,
					fmt.Sprintf("age %d is inconsistent with grade %d (expected around %d)", age, grade, expected),
					rec.DOB)
			}
		}
	}

	checkEmergencyContact(rec, result)
}

// checkEmergencyContact flags a partially-filled emergency contact: any of
// the three attributes present without the others.
func checkEmergencyContact(rec *model.StudentRecord, result *model.ValidationResult) {
	name := rec.SpecialNeeds["emergency_contact_name"]
	phone := rec.SpecialNeeds["emergency_contact_phone"]
	relationship := rec.SpecialNeeds["emergency_contact_relationship"]

	filled := 0
	for _, v := range []string{name, phone, relationship} {
		if strings.TrimSpace(v) != "" {
			filled++
		}
	}
	if filled > 0 && filled < 3 {
		result.AddWarning("emergency_contact",
			"emergency contact information is incomplete", "")
	}
}

func parseIntField(raw string) (int, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseDateField accepts the date layouts seen across vendor exports.
func parseDateField(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", "01/02/2006", "1/2/2006"} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func yearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	if to.Month() < from.Month() || (to.Month() == from.Month() && to.Day() < from.Day()) {
		years--
	}
	return years
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
