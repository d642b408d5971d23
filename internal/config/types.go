package config

import "time"

// Constants for configuration values and defaults.
const (
	SourceTypeCSV  = "csv"
	SourceTypeXLSX = "xlsx"
	SourceTypeAuto = "auto" // pick reader by file extension

	RuleKindRequired = "required"
	RuleKindFormat   = "format"
	RuleKindRange    = "range"
	RuleKindCustom   = "custom"

	DefaultLogLevel            = "info"
	DefaultCSVDelimiter        = ","
	DefaultClassifierScanRows  = 10
	DefaultHeaderWindow        = 8
	DefaultSimilarityThreshold = 0.4
	DefaultNameSimilarity      = 0.8
	DefaultBatchSize           = 25
	DefaultBatchPauseMs        = 250
	DefaultStudentTable        = "students"
)

// ImportConfig is the top-level structure of the YAML configuration file.
type ImportConfig struct {
	// Logging specifies the verbosity level.
	Logging LoggingConfig `yaml:"logging"`
	// Source describes the input file (path, type, format options).
	Source SourceConfig `yaml:"source"`
	// Store describes the student record store.
	Store StoreConfig `yaml:"store"`
	// Classifier tunes format detection. The token cascade and scan depth
	// are hand-tuned values; they are configurable rather than contractual.
	Classifier ClassifierConfig `yaml:"classifier,omitempty"`
	// Mapper tunes the fuzzy column-mapping fallback.
	Mapper MapperConfig `yaml:"mapper,omitempty"`
	// Reconcile tunes batching and merge behavior of the upsert engine.
	Reconcile ReconcileConfig `yaml:"reconcile,omitempty"`
	// Validation supplies extra record-level rules on top of the built-in
	// student rule set.
	Validation ValidationConfig `yaml:"validation,omitempty"`
	// Report configures the CSV reject report for rows that fail.
	Report ReportConfig `yaml:"report,omitempty"`
}

// LoggingConfig holds settings related to logging verbosity.
type LoggingConfig struct {
	// Level defines the logging detail ("none", "error", "warn", "info",
	// "debug"). Defaults to "info".
	Level string `yaml:"level"`
}

// SourceConfig details the input file properties.
type SourceConfig struct {
	// File is the path to the input file. Environment variables are
	// expanded. Required unless overridden on the command line.
	File string `yaml:"file"`
	// Type selects the reader: "csv", "xlsx", or "auto" (by extension).
	// Defaults to "auto".
	Type string `yaml:"type,omitempty"`
	// Delimiter is the CSV field delimiter (default ","). Use '\t' for tab.
	Delimiter string `yaml:"delimiter,omitempty"`
	// CommentChar marks CSV comment lines (e.g. "#"). Disabled by default.
	CommentChar string `yaml:"commentChar,omitempty"`
	// SheetName selects a spreadsheet sheet by name. The first sheet is
	// used when unset.
	SheetName string `yaml:"sheetName,omitempty"`
}

// StoreConfig describes the student record store.
type StoreConfig struct {
	// DSN is the PostgreSQL connection string. Environment variables are
	// expanded. When empty the in-memory store is used.
	DSN string `yaml:"dsn,omitempty"`
	// Table is the student table name. Defaults to "students".
	Table string `yaml:"table,omitempty"`
}

// ClassifierConfig tunes format detection.
type ClassifierConfig struct {
	// ScanRows is how many leading rows are inspected for format signals.
	// Defaults to 10.
	ScanRows int `yaml:"scanRows,omitempty"`
	// HeaderWindow bounds the search for the split main/sub header rows in
	// vendor exports whose metadata block length varies. Defaults to 8.
	HeaderWindow int `yaml:"headerWindow,omitempty"`
}

// MapperConfig tunes the field mapper.
type MapperConfig struct {
	// SimilarityThreshold is the minimum normalized edit-distance
	// similarity for a fuzzy column mapping to be accepted. Defaults to
	// 0.4.
	SimilarityThreshold float64 `yaml:"similarityThreshold,omitempty"`
}

// ReconcileConfig tunes the upsert engine.
type ReconcileConfig struct {
	// BatchSize is the number of records per store batch. Defaults to 25.
	BatchSize int `yaml:"batchSize,omitempty"`
	// BatchPauseMs is the pause between batches in milliseconds, a
	// backpressure measure against the store. Defaults to 250.
	BatchPauseMs int `yaml:"batchPauseMs,omitempty"`
	// ContinueOnError keeps a batch running past per-record failures.
	// Defaults to true; set false to abort on the first failed record.
	ContinueOnError *bool `yaml:"continueOnError,omitempty"`
	// ReplaceSpecialNeeds switches the special-needs attribute map from
	// key-by-key merge (default) to wholesale replacement.
	ReplaceSpecialNeeds bool `yaml:"replaceSpecialNeeds,omitempty"`
	// NameSimilarity is the duplicate-finder threshold. Defaults to 0.8.
	NameSimilarity float64 `yaml:"nameSimilarity,omitempty"`
}

// BatchPause returns the inter-batch pause as a duration.
func (c ReconcileConfig) BatchPause() time.Duration {
	return time.Duration(c.BatchPauseMs) * time.Millisecond
}

// ValidationConfig supplies additional record-level rules.
type ValidationConfig struct {
	Rules []ValidationRule `yaml:"rules,omitempty"`
}

// ValidationRule is one rule-table entry. Kind selects the check:
//
//	required: blocking when the field is absent or blank.
//	format:   regex Pattern; blocking only when a value is present and
//	          fails to match.
//	range:    numeric Min/Max bounds; blocking when a present value is
//	          non-numeric or out of bounds.
//	custom:   a govaluate Expr evaluated against the record's fields plus
//	          "value"; blocking when a present value makes it false.
type ValidationRule struct {
	Field   string   `yaml:"field"`
	Kind    string   `yaml:"kind"`
	Pattern string   `yaml:"pattern,omitempty"`
	Min     *float64 `yaml:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty"`
	Expr    string   `yaml:"expr,omitempty"`
	Message string   `yaml:"message,omitempty"`
}

// ReportConfig configures the reject report.
type ReportConfig struct {
	// RejectFile is an optional CSV path where rejected rows and their
	// errors are appended. Environment variables are expanded.
	RejectFile string `yaml:"rejectFile,omitempty"`
}
