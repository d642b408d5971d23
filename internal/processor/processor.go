// Package processor orchestrates the import pipeline for one raw table:
// classification, header resolution, mapping, per-row assembly, validation,
// reconciliation, and assessment fan-out.
package processor

import (
	"context"
	"fmt"
	"strings"

	"roster-etl/internal/config"
	"roster-etl/internal/format"
	etlio "roster-etl/internal/io"
	"roster-etl/internal/logging"
	"roster-etl/internal/model"
	"roster-etl/internal/reconcile"
	"roster-etl/internal/store"
	"roster-etl/internal/validate"
)

// StudentIDResolver maps a natural student key to the surrogate id used to
// stamp assessment records. Assessment persistence is deferred to the caller
// once resolution succeeds.
type StudentIDResolver func(ctx context.Context, schoolStudentID string) (string, error)

// StoreResolver resolves surrogate ids through the student store.
func StoreResolver(st store.StudentStore) StudentIDResolver {
	return func(ctx context.Context, schoolStudentID string) (string, error) {
		rec, err := st.FindByKey(ctx, schoolStudentID)
		if err != nil {
			return "", err
		}
		if rec == nil {
			return "", fmt.Errorf("no stored student with school id '%s'", schoolStudentID)
		}
		return rec.StudentID, nil
	}
}

// Processor runs the import pipeline. One instance handles one file at a
// time; stages share no mutable state across files.
type Processor struct {
	cfg       *config.ImportConfig
	validator *validate.Validator
	engine    *reconcile.Engine
	resolver  StudentIDResolver
	rejects   etlio.RejectWriter
}

// New wires a processor over the given store. rejects may be nil when no
// reject report is wanted.
func New(cfg *config.ImportConfig, st store.StudentStore, rejects etlio.RejectWriter) (*Processor, error) {
	validator, err := validate.NewValidator(cfg.Validation)
	if err != nil {
		return nil, fmt.Errorf("failed to build validator: %w", err)
	}
	if rejects == nil {
		rejects, _ = etlio.NewRejectWriter("")
	}
	engine := reconcile.NewEngine(st, reconcile.Config{
		BatchSize:           cfg.Reconcile.BatchSize,
		BatchPause:          cfg.Reconcile.BatchPause(),
		ContinueOnError:     cfg.Reconcile.ContinueOnError == nil || *cfg.Reconcile.ContinueOnError,
		ReplaceSpecialNeeds: cfg.Reconcile.ReplaceSpecialNeeds,
		NameSimilarity:      cfg.Reconcile.NameSimilarity,
	})
	return &Processor{
		cfg:       cfg,
		validator: validator,
		engine:    engine,
		resolver:  StoreResolver(st),
		rejects:   rejects,
	}, nil
}

// Engine exposes the reconciliation engine for duplicate scans.
func (p *Processor) Engine() *reconcile.Engine { return p.engine }

// ProcessTable runs the full pipeline over one raw table. Fatal errors
// (unresolvable headers, unsupported format) return an error with no partial
// result; per-row failures are collected into the result instead.
func (p *Processor) ProcessTable(ctx context.Context, table *model.RawTable) (*model.ImportResult, error) {
	detected := format.Classify(table.Window(p.cfg.Classifier.ScanRows))
	logging.Logf(logging.Info, "Detected source format: %s", detected)

	handler, err := format.HandlerFor(detected)
	if err != nil {
		return nil, err
	}

	resolved, err := handler.Resolve(table, p.cfg.Classifier.HeaderWindow)
	if err != nil {
		return nil, &etlio.ParseError{Format: string(detected), Err: fmt.Errorf("unreadable header structure: %w", err)}
	}

	mappings, err := handler.Mappings(resolved.Headers, p.cfg.Mapper.SimilarityThreshold)
	if err != nil {
		return nil, fmt.Errorf("cannot map columns: %w", err)
	}
	if len(mappings) == 0 {
		logging.Logf(logging.Warning, "No column mappings found; every row will fail required-field checks")
	}

	result := model.NewImportResult(detected)
	result.Headers = resolved.Headers
	result.Summary.Rows = len(resolved.Data)

	colIndex := make(map[string]int, len(resolved.Headers))
	for i, h := range resolved.Headers {
		colIndex[h] = i
	}

	var students []model.StudentRecord
	var studentRows []int // result.Rows index per batched student

	for rowIdx, row := range resolved.Data {
		student := assembleStudent(row, mappings, colIndex)
		validation := p.validator.ValidateStudent(&student)

		outcome := model.RowOutcome{RowIndex: rowIdx, Validation: validation}
		for _, warning := range validation.Warnings {
			result.AddRowWarning(rowIdx, fmt.Sprintf("%s: %s", warning.Field, warning.Message))
		}

		if !validation.Valid {
			result.Summary.Errored++
			reasons := make([]string, 0, len(validation.Errors))
			for _, issue := range validation.Errors {
				result.AddRowError(rowIdx, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
				reasons = append(reasons, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
			}
			if err := p.rejects.Write(rowIdx, row, strings.Join(reasons, "; ")); err != nil {
				logging.Logf(logging.Error, "Failed to write reject row %d: %v", rowIdx, err)
			}
			result.Rows = append(result.Rows, outcome)
			continue
		}

		students = append(students, student)
		studentRows = append(studentRows, len(result.Rows))
		result.Rows = append(result.Rows, outcome)
	}

	batch := p.engine.UpsertBatch(ctx, students)
	for i, res := range batch.Results {
		res := res
		outcome := &result.Rows[studentRows[i]]
		outcome.Upsert = &res
		rowIdx := outcome.RowIndex

		switch {
		case res.Err != nil:
			result.Summary.Errored++
			result.AddRowError(rowIdx, res.Err.Error())
			if err := p.rejects.Write(rowIdx, resolved.Data[rowIdx], res.Err.Error()); err != nil {
				logging.Logf(logging.Error, "Failed to write reject row %d: %v", rowIdx, err)
			}
		case res.Operation == model.OpInsert:
			result.Summary.Inserted++
		case res.Operation == model.OpUpdate:
			result.Summary.Updated++
		case res.Operation == model.OpSkip:
			result.Summary.Skipped++
			result.AddRowWarning(rowIdx, fmt.Sprintf("skipped: %s", res.Reason))
		}
		for _, w := range res.Warnings {
			result.AddRowWarning(rowIdx, w)
		}
	}

	p.collectAssessments(ctx, handler, resolved, batch, studentRows, result)

	logging.Logf(logging.Info, "Import complete: %d rows, %d inserted, %d updated, %d skipped, %d errored, %d assessments",
		result.Summary.Rows, result.Summary.Inserted, result.Summary.Updated,
		result.Summary.Skipped, result.Summary.Errored, len(result.Assessments))
	return result, nil
}

// collectAssessments fans successfully reconciled rows out into canonical
// assessment records, stamping each with the resolved surrogate id. Records
// whose student cannot be resolved are dropped with a row error; they must
// never reach persistence unresolved.
func (p *Processor) collectAssessments(ctx context.Context, handler format.Handler, resolved *format.ResolvedTable, batch reconcile.BatchResult, studentRows []int, result *model.ImportResult) {
	for i, res := range batch.Results {
		if res.Err != nil {
			continue
		}
		outcome := &result.Rows[studentRows[i]]
		rowIdx := outcome.RowIndex

		emitted := 0
		err := handler.Transform(resolved.Headers, resolved.Data[rowIdx], func(rec model.AssessmentRecord) {
			surrogate, resolveErr := p.resolver(ctx, rec.StudentID)
			if resolveErr != nil {
				result.AddRowError(rowIdx, fmt.Sprintf("assessment dropped: %v", resolveErr))
				return
			}
			rec.StudentID = surrogate
			result.Assessments = append(result.Assessments, rec)
			emitted++
		})
		if err != nil {
			result.AddRowError(rowIdx, fmt.Sprintf("transform failed: %v", err))
			continue
		}
		outcome.Assessments = emitted
	}
}

// assembleStudent builds a canonical student from one data row by applying
// the mapping set in order. Assessment-scoped targets are consumed by the
// transformer, not here.
func assembleStudent(row []string, mappings []model.FieldMapping, colIndex map[string]int) model.StudentRecord {
	var student model.StudentRecord
	for _, m := range mappings {
		value := m.DefaultValue
		if value == "" {
			col, ok := colIndex[m.SourceField]
			if !ok || col >= len(row) {
				continue
			}
			value = strings.TrimSpace(row[col])
		}
		if value == "" {
			continue
		}

		switch m.TargetField {
		case model.FieldStudentName:
			first, last := splitName(value)
			student.FirstName = first
			student.LastName = last
		case model.FieldTestDate, model.FieldScaleScore, model.FieldPerformanceLevelText,
			model.FieldSchoolYear, model.FieldAssessmentType:
			// assessment-scoped
		default:
			student.SetField(m.TargetField, value)
		}
	}
	return student
}

// splitName handles both "Last, First" and "First [Middle] Last" layouts.
func splitName(full string) (first, last string) {
	if before, after, ok := strings.Cut(full, ","); ok {
		return strings.TrimSpace(after), strings.TrimSpace(before)
	}
	idx := strings.LastIndex(full, " ")
	if idx < 0 {
		return full, ""
	}
	return strings.TrimSpace(full[:idx]), strings.TrimSpace(full[idx+1:])
}
