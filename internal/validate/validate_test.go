package validate

import (
	"testing"
	"time"

	"roster-etl/internal/config"
	"roster-etl/internal/model"
)

func pinClock(t *testing.T, iso string) {
	t.Helper()
	fixed, err := time.Parse("2006-01-02", iso)
	if err != nil {
		t.Fatalf("bad test date %q: %v", iso, err)
	}
	orig := timeNow
	timeNow = func() time.Time { return fixed }
	t.Cleanup(func() { timeNow = orig })
}

func validStudent() model.StudentRecord {
	return model.StudentRecord{
		SchoolStudentID: "S100",
		FirstName:       "Jane",
		LastName:        "Doe",
		GradeLevel:      "4",
	}
}

func newTestValidator(t *testing.T, rules ...config.ValidationRule) *Validator {
	t.Helper()
	v, err := NewValidator(config.ValidationConfig{Rules: rules})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func hasErrorOn(result model.ValidationResult, field string) bool {
	for _, issue := range result.Errors {
		if issue.Field == field {
			return true
		}
	}
	return false
}

func hasWarningOn(result model.ValidationResult, field string) bool {
	for _, issue := range result.Warnings {
		if issue.Field == field {
			return true
		}
	}
	return false
}

func TestValidateStudentRequiredFields(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name      string
		mutate    func(*model.StudentRecord)
		wantField string
	}{
		{"missing school id", func(s *model.StudentRecord) { s.SchoolStudentID = "" }, model.FieldSchoolStudentID},
		{"missing first name", func(s *model.StudentRecord) { s.FirstName = "" }, model.FieldFirstName},
		{"missing last name", func(s *model.StudentRecord) { s.LastName = "" }, model.FieldLastName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			student := validStudent()
			tt.mutate(&student)
			result := v.ValidateStudent(&student)
			if result.Valid {
				t.Error("record validated despite missing required field")
			}
			if !hasErrorOn(result, tt.wantField) {
				t.Errorf("no error on field %s: %+v", tt.wantField, result.Errors)
			}
		})
	}
}

func TestValidateStudentGradeLevelBounds(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		grade   string
		wantErr bool
	}{
		{"0", false},
		{"13", false},
		{"14", true},
		{"-1", true},
		{"four", true},
		{"", false}, // presence-gated
	}
	for _, tt := range tests {
		t.Run("grade "+tt.grade, func(t *testing.T) {
			student := validStudent()
			student.GradeLevel = tt.grade
			result := v.ValidateStudent(&student)
			if got := hasErrorOn(result, model.FieldGradeLevel); got != tt.wantErr {
				t.Errorf("grade %q: error present = %v, want %v (%+v)", tt.grade, got, tt.wantErr, result.Errors)
			}
		})
	}
}

func TestValidateStudentGPAAndGraduationYear(t *testing.T) {
	v := newTestValidator(t)

	student := validStudent()
	student.CurrentGPA = "4.5"
	if result := v.ValidateStudent(&student); !hasErrorOn(result, model.FieldCurrentGPA) {
		t.Error("GPA 4.5 accepted, want range error")
	}

	student = validStudent()
	student.CurrentGPA = "3.5"
	if result := v.ValidateStudent(&student); hasErrorOn(result, model.FieldCurrentGPA) {
		t.Error("GPA 3.5 rejected")
	}

	student = validStudent()
	student.GraduationYear = "20240"
	if result := v.ValidateStudent(&student); !hasErrorOn(result, model.FieldGraduationYear) {
		t.Error("graduation year 20240 accepted, want format error")
	}
}

func TestValidateStudentCustomRule(t *testing.T) {
	v := newTestValidator(t, config.ValidationRule{
		Field:   model.FieldAcademicStatus,
		Kind:    config.RuleKindCustom,
		Expr:    "value == 'active' || value == 'inactive'",
		Message: "unknown status",
	})

	student := validStudent()
	student.AcademicStatus = "active"
	if result := v.ValidateStudent(&student); hasErrorOn(result, model.FieldAcademicStatus) {
		t.Error("status 'active' rejected by custom rule")
	}

	student.AcademicStatus = "expelled"
	if result := v.ValidateStudent(&student); !hasErrorOn(result, model.FieldAcademicStatus) {
		t.Error("status 'expelled' accepted by custom rule")
	}

	// Presence-gated like format rules.
	student.AcademicStatus = ""
	if result := v.ValidateStudent(&student); hasErrorOn(result, model.FieldAcademicStatus) {
		t.Error("empty status triggered custom rule")
	}
}

func TestNewValidatorRejectsBadCustomExpression(t *testing.T) {
	_, err := NewValidator(config.ValidationConfig{Rules: []config.ValidationRule{
		{Field: model.FieldDOB, Kind: config.RuleKindCustom, Expr: "((("},
	}})
	if err == nil {
		t.Error("NewValidator accepted an uncompilable expression")
	}
}

func TestGraduationYearConsistencyWarning(t *testing.T) {
	pinClock(t, "2024-09-01")
	v := newTestValidator(t)

	tests := []struct {
		name     string
		grade    string
		gradYear string
		want     bool
	}{
		{"projected exactly", "4", "2032", false}, // 2024 + (12-4)
		{"within tolerance", "4", "2034", false},
		{"beyond tolerance", "4", "2040", true},
		{"far in the past", "4", "2020", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			student := validStudent()
			student.GradeLevel = tt.grade
			student.GraduationYear = tt.gradYear
			result := v.ValidateStudent(&student)
			if result.Valid != true {
				t.Errorf("warnings must not block: %+v", result.Errors)
			}
			if got := hasWarningOn(result, model.FieldGraduationYear); got != tt.want {
				t.Errorf("warning present = %v, want %v (%+v)", got, tt.want, result.Warnings)
			}
		})
	}
}

func TestEnrollmentDateWarning(t *testing.T) {
	pinClock(t, "2024-09-01")
	v := newTestValidator(t)

	tests := []struct {
		date string
		want bool
	}{
		{"2024-08-15", false},
		{"2025-01-10", false},
		{"2020-09-01", true},
		{"2026-09-01", true},
	}
	for _, tt := range tests {
		student := validStudent()
		student.EnrollmentDate = tt.date
		result := v.ValidateStudent(&student)
		if got := hasWarningOn(result, model.FieldEnrollmentDate); got != tt.want {
			t.Errorf("enrollment %q: warning present = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestDOBGradeConsistencyWarning(t *testing.T) {
	pinClock(t, "2024-09-01")
	v := newTestValidator(t)

	tests := []struct {
		name string
		dob  string
		want bool
	}{
		{"age matches grade", "2015-03-10", false}, // age 9, grade 4 expects ~9
		{"within tolerance", "2012-03-10", false},  // age 12
		{"too old for grade", "2010-03-10", true},  // age 14
		{"too young for grade", "2020-03-10", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			student := validStudent()
			student.DOB = tt.dob
			result := v.ValidateStudent(&student)
			if got := hasWarningOn(result, model.FieldDOB); got != tt.want {
				t.Errorf("dob %q: warning present = %v, want %v", tt.dob, got, tt.want)
			}
		})
	}
}

func TestEmergencyContactWarning(t *testing.T) {
	v := newTestValidator(t)

	student := validStudent()
	student.SpecialNeeds = map[string]string{"emergency_contact_phone": "555-0100"}
	if result := v.ValidateStudent(&student); !hasWarningOn(result, "emergency_contact") {
		t.Error("partial emergency contact not flagged")
	}

	student.SpecialNeeds = map[string]string{
		"emergency_contact_name":         "Pat Doe",
		"emergency_contact_phone":        "555-0100",
		"emergency_contact_relationship": "parent",
	}
	if result := v.ValidateStudent(&student); hasWarningOn(result, "emergency_contact") {
		t.Error("complete emergency contact flagged as incomplete")
	}

	student.SpecialNeeds = map[string]string{"iep": "yes"}
	if result := v.ValidateStudent(&student); hasWarningOn(result, "emergency_contact") {
		t.Error("absent emergency contact flagged as incomplete")
	}
}
