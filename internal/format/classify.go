// Package format detects vendor export layouts and resolves their header
// structure. Detection combines weak token signals across the leading rows
// because vendor exports rarely self-identify with a single clean field.
package format

import (
	"regexp"
	"strings"

	"roster-etl/internal/logging"
	"roster-etl/internal/model"
)

var (
	schoolYearPattern    = regexp.MustCompile(`\d{4}-\d{2}`)
	standardsCodePattern = regexp.MustCompile(`(?i)\b[A-Z]\.[A-Z]{2}\.\d`)
)

// subjectTokens are assessment/subject markers shared by the classifier and
// the header resolver.
var subjectTokens = []string{"ela", "math", "njsla", "njsls"}

// Classify assigns a SourceFormat to the leading rows of a raw table. It is
// a pure function of its input: same rows, same answer. The priority order
// matters; specific fingerprints are tried before generic system tokens so a
// vendor export carrying a SIS column is not misfiled.
func Classify(rows [][]string) model.SourceFormat {
	var sb strings.Builder
	for _, row := range rows {
		for _, cell := range row {
			sb.WriteString(strings.ToLower(cell))
			sb.WriteString(" ")
		}
	}
	text := sb.String()

	hasDemographics := strings.Contains(text, "student") &&
		strings.Contains(text, "id") &&
		strings.Contains(text, "grade")

	// 1. Explicit branding token.
	if strings.Contains(text, "linkit") {
		logging.Logf(logging.Debug, "Classifier: branding token matched, format=%s", model.FormatLinkIt)
		return model.FormatLinkIt
	}

	// 2. Demographic trio plus a subject token.
	if hasDemographics && containsAny(text, subjectTokens) {
		logging.Logf(logging.Debug, "Classifier: demographic trio + subject token, format=%s", model.FormatLinkIt)
		return model.FormatLinkIt
	}

	// 3. Column fingerprints plus the demographic trio.
	if hasDemographics && hasVendorFingerprint(text) {
		logging.Logf(logging.Debug, "Classifier: vendor column fingerprint, format=%s", model.FormatLinkIt)
		return model.FormatLinkIt
	}

	// 4. Competing-system token.
	if strings.Contains(text, "genesis") || strings.Contains(text, "sis") {
		logging.Logf(logging.Debug, "Classifier: SIS token matched, format=%s", model.FormatGenesis)
		return model.FormatGenesis
	}

	// 5. Direct state-assessment import.
	if strings.Contains(text, "njsla") && strings.Contains(text, "scale") {
		logging.Logf(logging.Debug, "Classifier: direct assessment tokens matched, format=%s", model.FormatNJSLADirect)
		return model.FormatNJSLADirect
	}

	logging.Logf(logging.Debug, "Classifier: no signals matched, format=%s", model.FormatGeneric)
	return model.FormatGeneric
}

func hasVendorFingerprint(text string) bool {
	return strings.Contains(text, "scale score") ||
		strings.Contains(text, "performance level") ||
		schoolYearPattern.MatchString(text) ||
		standardsCodePattern.MatchString(text)
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
