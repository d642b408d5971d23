// Package reconcile decides insert vs. update vs. skip for incoming student
// records against the store, merging fields under a never-regress policy and
// surfacing near-duplicates for operator review.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"roster-etl/internal/logging"
	"roster-etl/internal/model"
	"roster-etl/internal/store"
)

// mutableFields is the fixed attribute set the update diff runs over. The
// natural key and surrogate id are never diffed.
var mutableFields = []string{
	model.FieldFirstName,
	model.FieldLastName,
	model.FieldDOB,
	model.FieldGradeLevel,
	model.FieldEnrollmentDate,
	model.FieldGraduationYear,
	model.FieldCurrentGPA,
	model.FieldAcademicStatus,
	model.FieldSchoolID,
}

// Config tunes engine batching and merge behavior.
type Config struct {
	BatchSize int
	// BatchPause bounds store load between batches. Backpressure only, not
	// correctness.
	BatchPause      time.Duration
	ContinueOnError bool
	// ReplaceSpecialNeeds switches the attribute map from key-by-key merge
	// to wholesale replacement.
	ReplaceSpecialNeeds bool
	// NameSimilarity is the duplicate-finder threshold.
	NameSimilarity float64
}

// Engine reconciles incoming student records against the store.
type Engine struct {
	store store.StudentStore
	cfg   Config
}

// NewEngine creates an engine over the given store.
func NewEngine(st store.StudentStore, cfg Config) *Engine {
	return &Engine{store: st, cfg: cfg}
}

// Upsert reconciles one record. Match is by exact natural key; natural keys
// are authoritative when present, so no fuzzy matching happens here. Empty
// incoming values never overwrite stored data.
func (e *Engine) Upsert(ctx context.Context, rec *model.StudentRecord) model.UpsertResult {
	if rec.SchoolStudentID == "" || rec.FirstName == "" || rec.LastName == "" {
		return model.UpsertResult{
			Operation: model.OpSkip,
			Reason:    model.SkipReasonMissingRequired,
			Err:       fmt.Errorf("student record is missing required fields (id='%s', first='%s', last='%s')", rec.SchoolStudentID, rec.FirstName, rec.LastName),
		}
	}

	existing, err := e.store.FindByKey(ctx, rec.SchoolStudentID)
	if err != nil {
		return model.UpsertResult{Err: fmt.Errorf("store lookup failed for '%s': %w", rec.SchoolStudentID, err)}
	}

	if existing == nil {
		return e.insert(ctx, rec)
	}
	return e.update(ctx, rec, existing)
}

func (e *Engine) insert(ctx context.Context, rec *model.StudentRecord) model.UpsertResult {
	if rec.StudentID == "" {
		rec.StudentID = uuid.NewString()
	}
	id, err := e.store.Insert(ctx, rec)
	if err != nil {
		return model.UpsertResult{Operation: model.OpInsert, Err: fmt.Errorf("insert failed for '%s': %w", rec.SchoolStudentID, err)}
	}
	logging.Logf(logging.Debug, "Inserted student '%s' as %s", rec.SchoolStudentID, id)
	return model.UpsertResult{Success: true, Operation: model.OpInsert, ID: id}
}

func (e *Engine) update(ctx context.Context, rec, existing *model.StudentRecord) model.UpsertResult {
	fields := make(map[string]interface{})
	var changed []string
	var warnings []string

	for _, name := range mutableFields {
		incoming := rec.Field(name)
		stored := existing.Field(name)
		if incoming == "" {
			if stored != "" {
				warnings = append(warnings, fmt.Sprintf("field '%s' omitted by import; stored value retained", name))
			}
			continue
		}
		if incoming != stored {
			fields[name] = incoming
			changed = append(changed, name)
		}
	}

	if merged, needsChanged := e.mergeSpecialNeeds(existing.SpecialNeeds, rec.SpecialNeeds); needsChanged {
		fields[model.FieldSpecialNeeds] = merged
		changed = append(changed, model.FieldSpecialNeeds)
	}

	if len(fields) == 0 {
		return model.UpsertResult{
			Success:   true,
			Operation: model.OpSkip,
			ID:        existing.StudentID,
			Reason:    model.SkipReasonNoChanges,
			Warnings:  warnings,
		}
	}

	if err := e.store.Update(ctx, existing.StudentID, fields); err != nil {
		return model.UpsertResult{Operation: model.OpUpdate, ID: existing.StudentID, Err: fmt.Errorf("update failed for '%s': %w", rec.SchoolStudentID, err)}
	}

	sort.Strings(changed)
	logging.Logf(logging.Debug, "Updated student '%s' (%s): %v", rec.SchoolStudentID, existing.StudentID, changed)
	return model.UpsertResult{
		Success:       true,
		Operation:     model.OpUpdate,
		ID:            existing.StudentID,
		ChangedFields: changed,
		Warnings:      warnings,
	}
}

// mergeSpecialNeeds combines the attribute maps. The map is an extensible
// bag of facts contributed by several import sources over time, so the
// default is key-by-key merge with incoming values winning.
func (e *Engine) mergeSpecialNeeds(stored, incoming map[string]string) (map[string]string, bool) {
	if len(incoming) == 0 {
		return nil, false
	}

	if e.cfg.ReplaceSpecialNeeds {
		if equalNeeds(stored, incoming) {
			return nil, false
		}
		replaced := make(map[string]string, len(incoming))
		for k, v := range incoming {
			replaced[k] = v
		}
		return replaced, true
	}

	merged := make(map[string]string, len(stored)+len(incoming))
	for k, v := range stored {
		merged[k] = v
	}
	changed := false
	for k, v := range incoming {
		if merged[k] != v {
			merged[k] = v
			changed = true
		}
	}
	if !changed {
		return nil, false
	}
	return merged, true
}

func equalNeeds(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// BatchResult aggregates one batch run: per-record results in input order,
// outcome counts, and row-indexed error/warning lists.
type BatchResult struct {
	Results     []model.UpsertResult
	Summary     model.ImportSummary
	RowErrors   map[int][]string
	RowWarnings map[int][]string
}

// UpsertBatch processes records sequentially in fixed-size batches with a
// pause between batches. Records inside a batch run one at a time so merge
// decisions stay deterministic. A per-record failure aborts the run only
// when ContinueOnError is off.
func (e *Engine) UpsertBatch(ctx context.Context, recs []model.StudentRecord) BatchResult {
	result := BatchResult{
		RowErrors:   make(map[int][]string),
		RowWarnings: make(map[int][]string),
	}
	batchSize := e.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 25
	}

	for i := range recs {
		if i > 0 && i%batchSize == 0 && e.cfg.BatchPause > 0 {
			logging.Logf(logging.Debug, "Batch boundary at record %d; pausing %v", i, e.cfg.BatchPause)
			time.Sleep(e.cfg.BatchPause)
		}

		res := e.Upsert(ctx, &recs[i])
		result.Results = append(result.Results, res)
		result.Summary.Rows++

		switch {
		case res.Err != nil:
			result.Summary.Errored++
			result.RowErrors[i] = append(result.RowErrors[i], res.Err.Error())
		case res.Operation == model.OpInsert:
			result.Summary.Inserted++
		case res.Operation == model.OpUpdate:
			result.Summary.Updated++
		case res.Operation == model.OpSkip:
			result.Summary.Skipped++
		}
		for _, w := range res.Warnings {
			result.RowWarnings[i] = append(result.RowWarnings[i], w)
		}

		if res.Err != nil && !e.cfg.ContinueOnError {
			logging.Logf(logging.Warning, "Aborting batch at record %d: %v", i, res.Err)
			break
		}
	}
	return result
}
