package reconcile

import (
	"context"
	"fmt"
	"strings"

	"roster-etl/internal/model"
	"roster-etl/internal/util"
)

// FindDuplicates scans stored students for near-duplicates of a candidate
// name and optional birth date. Each reason is evaluated independently, so a
// candidate can match on several at once. Advisory only: the caller surfaces
// matches to an operator and nothing is ever auto-merged.
func (e *Engine) FindDuplicates(ctx context.Context, firstName, lastName, dob string) ([]model.DuplicateMatch, error) {
	students, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("duplicate scan failed to list students: %w", err)
	}

	threshold := e.cfg.NameSimilarity
	if threshold <= 0 {
		threshold = 0.8
	}

	var matches []model.DuplicateMatch
	for _, student := range students {
		var reasons []string

		if strings.EqualFold(student.FirstName, firstName) && strings.EqualFold(student.LastName, lastName) {
			reasons = append(reasons, model.MatchReasonExactName)
		}
		if dob != "" && student.DOB != "" && student.DOB == dob {
			reasons = append(reasons, model.MatchReasonDOB)
		}
		if similarName(student.FirstName, student.LastName, firstName, lastName, threshold) {
			reasons = append(reasons, model.MatchReasonSimilarName)
		}

		if len(reasons) > 0 {
			matches = append(matches, model.DuplicateMatch{Student: student, Reasons: reasons})
		}
	}
	return matches, nil
}

// similarName applies the edit-distance rule to both name parts: at least
// one part must clear the threshold outright and the pair must clear it on
// average, so a strong surname match can carry a near-miss first name but
// two middling parts cannot.
func similarName(storedFirst, storedLast, first, last string, threshold float64) bool {
	firstSim := util.Similarity(strings.ToLower(storedFirst), strings.ToLower(first))
	lastSim := util.Similarity(strings.ToLower(storedLast), strings.ToLower(last))

	max := firstSim
	if lastSim > max {
		max = lastSim
	}
	mean := (firstSim + lastSim) / 2
	return max >= threshold && mean >= threshold
}
