package config

import (
	"fmt"
	"regexp"
)

// ValidateConfig checks the loaded configuration for structural problems.
// Defaults are expected to have been applied already.
func ValidateConfig(cfg *ImportConfig) error {
	switch cfg.Source.Type {
	case SourceTypeCSV, SourceTypeXLSX, SourceTypeAuto:
	default:
		return fmt.Errorf("config: unsupported source type '%s' (expected csv, xlsx or auto)", cfg.Source.Type)
	}
	if len(cfg.Source.Delimiter) > 0 && len([]rune(cfg.Source.Delimiter)) != 1 {
		return fmt.Errorf("config: source delimiter '%s' must be a single character", cfg.Source.Delimiter)
	}
	if cfg.Source.CommentChar != "" && len([]rune(cfg.Source.CommentChar)) != 1 {
		return fmt.Errorf("config: source commentChar '%s' must be a single character", cfg.Source.CommentChar)
	}

	if cfg.Mapper.SimilarityThreshold <= 0 || cfg.Mapper.SimilarityThreshold > 1 {
		return fmt.Errorf("config: mapper similarityThreshold %v must be in (0, 1]", cfg.Mapper.SimilarityThreshold)
	}
	if cfg.Reconcile.NameSimilarity <= 0 || cfg.Reconcile.NameSimilarity > 1 {
		return fmt.Errorf("config: reconcile nameSimilarity %v must be in (0, 1]", cfg.Reconcile.NameSimilarity)
	}
	if cfg.Reconcile.BatchSize <= 0 {
		return fmt.Errorf("config: reconcile batchSize %d must be positive", cfg.Reconcile.BatchSize)
	}

	for i, rule := range cfg.Validation.Rules {
		if err := validateRule(rule); err != nil {
			return fmt.Errorf("config: validation rule #%d: %w", i, err)
		}
	}
	return nil
}

func validateRule(rule ValidationRule) error {
	if rule.Field == "" {
		return fmt.Errorf("missing field name")
	}
	switch rule.Kind {
	case RuleKindRequired:
	case RuleKindFormat:
		if rule.Pattern == "" {
			return fmt.Errorf("format rule for '%s' requires a pattern", rule.Field)
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("format rule for '%s' has invalid pattern: %w", rule.Field, err)
		}
	case RuleKindRange:
		if rule.Min == nil && rule.Max == nil {
			return fmt.Errorf("range rule for '%s' requires at least one of min or max", rule.Field)
		}
		if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
			return fmt.Errorf("range rule for '%s' has min %v greater than max %v", rule.Field, *rule.Min, *rule.Max)
		}
	case RuleKindCustom:
		if rule.Expr == "" {
			return fmt.Errorf("custom rule for '%s' requires an expr", rule.Field)
		}
	default:
		return fmt.Errorf("unknown rule kind '%s' for field '%s'", rule.Kind, rule.Field)
	}
	return nil
}
