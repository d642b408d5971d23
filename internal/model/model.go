// Package model holds the canonical data types shared by every pipeline
// stage: raw tables, detected source formats, field mappings, canonical
// student/assessment records, and per-record outcomes.
package model

// SourceFormat identifies a recognized vendor export layout.
type SourceFormat string

const (
	FormatLinkIt      SourceFormat = "linkit"
	FormatGenesis     SourceFormat = "genesis"
	FormatNJSLADirect SourceFormat = "njsla_direct"
	FormatGeneric     SourceFormat = "generic"
)

// RawTable is the ordered row/cell view of one input file, produced once by
// the tabular reader and immutable afterwards. No header semantics are
// attached at this stage.
type RawTable struct {
	Rows [][]string
}

// Window returns up to the first n rows for header sniffing.
func (t *RawTable) Window(n int) [][]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// FieldMapping records one detected correspondence between a source column
// and a canonical target field. A single source column may contribute zero,
// one, or several mappings, and several source columns may share a target.
type FieldMapping struct {
	SourceField  string
	TargetField  string
	Required     bool
	// DefaultValue, when non-empty, supplies the target value directly
	// (derived-value rules) instead of reading the source column.
	DefaultValue string
	// Similarity is set only for fuzzy-derived mappings.
	Similarity float64
}

// Canonical student field names used by mappings, validation rules, and the
// reconciliation diff.
const (
	FieldSchoolStudentID = "school_student_id"
	FieldStudentName     = "student_name"
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldDOB             = "dob"
	FieldGradeLevel      = "grade_level"
	FieldEnrollmentDate  = "enrollment_date"
	FieldGraduationYear  = "graduation_year"
	FieldCurrentGPA      = "current_gpa"
	FieldAcademicStatus  = "academic_status"
	FieldSchoolID        = "school_id"
	FieldSpecialNeeds    = "special_needs"

	FieldTestDate             = "test_date"
	FieldScaleScore           = "scale_score"
	FieldPerformanceLevelText = "performance_level_text"
	FieldSchoolYear           = "school_year"
	FieldAssessmentType       = "assessment_type"
)

// AssessmentRecord is the canonical, vendor-independent assessment row.
// A source row fans out into a base record plus one sibling record per
// populated subscore dimension; siblings share StudentID, TestDate and
// GradeLevel and are distinguished by QuestionID.
type AssessmentRecord struct {
	StudentID            string
	StudentName          string
	AssessmentName       string
	AssessmentDate       string
	Subject              string
	Grade                string
	ScaleScore           float64
	PerformanceLevelText string
	TestDate             string
	GradeLevel           string
	AssessmentType       string
	// QuestionID is the normalized subscore-dimension slug; empty on the
	// base record.
	QuestionID string
	Subscores  map[string]string
}

// StudentRecord is the canonical student. SchoolStudentID is the natural
// key, stable across imports; StudentID is the surrogate key assigned at
// first insert and never changed afterwards.
type StudentRecord struct {
	StudentID       string
	SchoolStudentID string
	FirstName       string
	LastName        string
	DOB             string
	GradeLevel      string
	EnrollmentDate  string
	GraduationYear  string
	CurrentGPA      string
	AcademicStatus  string
	SpecialNeeds    map[string]string
	SchoolID        string
	// Archived marks soft-deleted records; the pipeline never physically
	// deletes.
	Archived bool
}

// Field returns the value of a canonical scalar field by name.
func (s *StudentRecord) Field(name string) string {
	switch name {
	case FieldSchoolStudentID:
		return s.SchoolStudentID
	case FieldFirstName:
		return s.FirstName
	case FieldLastName:
		return s.LastName
	case FieldDOB:
		return s.DOB
	case FieldGradeLevel:
		return s.GradeLevel
	case FieldEnrollmentDate:
		return s.EnrollmentDate
	case FieldGraduationYear:
		return s.GraduationYear
	case FieldCurrentGPA:
		return s.CurrentGPA
	case FieldAcademicStatus:
		return s.AcademicStatus
	case FieldSchoolID:
		return s.SchoolID
	}
	return ""
}

// SetField assigns a canonical scalar field by name. Unknown names are
// ignored; callers route non-scalar fields (special needs) themselves.
func (s *StudentRecord) SetField(name, value string) {
	switch name {
	case FieldSchoolStudentID:
		s.SchoolStudentID = value
	case FieldFirstName:
		s.FirstName = value
	case FieldLastName:
		s.LastName = value
	case FieldDOB:
		s.DOB = value
	case FieldGradeLevel:
		s.GradeLevel = value
	case FieldEnrollmentDate:
		s.EnrollmentDate = value
	case FieldGraduationYear:
		s.GraduationYear = value
	case FieldCurrentGPA:
		s.CurrentGPA = value
	case FieldAcademicStatus:
		s.AcademicStatus = value
	case FieldSchoolID:
		s.SchoolID = value
	}
}

// ValidationIssue is a single error or warning raised against a record field.
type ValidationIssue struct {
	Field   string
	Message string
	Value   string
}

// ValidationResult separates blocking errors from advisory warnings.
// A record with zero errors is eligible for persistence regardless of how
// many warnings it carries.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationIssue
	Warnings []ValidationIssue
}

// AddError appends a blocking issue and marks the result invalid.
func (r *ValidationResult) AddError(field, message, value string) {
	r.Errors = append(r.Errors, ValidationIssue{Field: field, Message: message, Value: value})
	r.Valid = false
}

// AddWarning appends a non-blocking issue.
func (r *ValidationResult) AddWarning(field, message, value string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Field: field, Message: message, Value: value})
}

// Operation classifies the reconciliation outcome for one student record.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpSkip   Operation = "skip"
)

// Skip reasons. The two skip paths are observably different: a no-change
// skip is normal, a missing-required skip carries an error.
const (
	SkipReasonNoChanges       = "no changes"
	SkipReasonMissingRequired = "missing required fields"
)

// UpsertResult reports the store-level outcome for one incoming student.
type UpsertResult struct {
	Success       bool
	Operation     Operation
	ID            string
	ChangedFields []string
	Reason        string
	Err           error
	Warnings      []string
}

// Duplicate-finder match reasons. A candidate may match on several reasons
// at once; each is reported independently.
const (
	MatchReasonExactName   = "Exact name match"
	MatchReasonDOB         = "Date of birth match"
	MatchReasonSimilarName = "Similar name match"
)

// DuplicateMatch is one advisory near-duplicate candidate. The finder never
// merges; it only reports.
type DuplicateMatch struct {
	Student StudentRecord
	Reasons []string
}

// RowOutcome aggregates what happened to one data row of the input file.
type RowOutcome struct {
	RowIndex   int
	Validation ValidationResult
	Upsert     *UpsertResult
	// Assessments is the number of canonical assessment records the row
	// fanned out into.
	Assessments int
}

// ImportSummary holds aggregate per-outcome counts for an operator report.
type ImportSummary struct {
	Rows     int
	Inserted int
	Updated  int
	Skipped  int
	Errored  int
}

// ImportResult is the structured output of one file import: per-row
// validation and reconciliation outcomes, resolved assessment records
// (persistence deferred to the caller), and the aggregate summary.
type ImportResult struct {
	Format      SourceFormat
	Headers     []string
	Rows        []RowOutcome
	Assessments []AssessmentRecord
	Summary     ImportSummary
	RowErrors   map[int][]string
	RowWarnings map[int][]string
}

// NewImportResult initializes the row-indexed issue maps.
func NewImportResult(format SourceFormat) *ImportResult {
	return &ImportResult{
		Format:      format,
		RowErrors:   make(map[int][]string),
		RowWarnings: make(map[int][]string),
	}
}

// AddRowError records a row-indexed error message.
func (r *ImportResult) AddRowError(row int, msg string) {
	r.RowErrors[row] = append(r.RowErrors[row], msg)
}

// AddRowWarning records a row-indexed warning message.
func (r *ImportResult) AddRowWarning(row int, msg string) {
	r.RowWarnings[row] = append(r.RowWarnings[row], msg)
}
