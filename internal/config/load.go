package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads, parses, and validates the YAML configuration file,
// applying defaults before validation.
func LoadConfig(filename string) (*ImportConfig, error) {
	fileBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filename, err)
	}

	var cfg ImportConfig
	if err := yaml.Unmarshal(fileBytes, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in '%s': %w", filename, err)
	}

	ApplyDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their documented defaults.
func ApplyDefaults(cfg *ImportConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Source.Type == "" {
		cfg.Source.Type = SourceTypeAuto
	}
	if cfg.Source.Delimiter == "" {
		cfg.Source.Delimiter = DefaultCSVDelimiter
	}
	if cfg.Store.Table == "" {
		cfg.Store.Table = DefaultStudentTable
	}
	if cfg.Classifier.ScanRows <= 0 {
		cfg.Classifier.ScanRows = DefaultClassifierScanRows
	}
	if cfg.Classifier.HeaderWindow <= 0 {
		cfg.Classifier.HeaderWindow = DefaultHeaderWindow
	}
	if cfg.Mapper.SimilarityThreshold <= 0 {
		cfg.Mapper.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.Reconcile.BatchSize <= 0 {
		cfg.Reconcile.BatchSize = DefaultBatchSize
	}
	if cfg.Reconcile.BatchPauseMs <= 0 {
		cfg.Reconcile.BatchPauseMs = DefaultBatchPauseMs
	}
	if cfg.Reconcile.ContinueOnError == nil {
		trueVal := true
		cfg.Reconcile.ContinueOnError = &trueVal
	}
	if cfg.Reconcile.NameSimilarity <= 0 {
		cfg.Reconcile.NameSimilarity = DefaultNameSimilarity
	}
}
