package processor

import (
	"context"
	"testing"

	"roster-etl/internal/config"
	"roster-etl/internal/model"
	"roster-etl/internal/store"
)

func testConfig() *config.ImportConfig {
	cfg := &config.ImportConfig{}
	config.ApplyDefaults(cfg)
	return cfg
}

func vendorTable() *model.RawTable {
	return &model.RawTable{Rows: [][]string{
		{"District", "Springfield"},
		{"School", "Central Elementary"},
		{"Export Date", "2024-06-01"},
		{"", ""},
		{"Student", "ID", "Grade", "2023-24 Gr 4 ELA NJSLA", "2023-24 Gr 4 ELA NJSLA", "2023-24 Gr 4 ELA NJSLA"},
		{"", "", "", "Result Date", "Level", "Scaled"},
		{"Jane Doe", "S100", "4", "2024-05-01", "Meeting Expectations", "725"},
		{"John Roe", "S200", "4", "2024-05-01", "Approaching Expectations", "710"},
	}}
}

func newTestProcessor(t *testing.T) (*Processor, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	proc, err := New(testConfig(), st, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return proc, st
}

func TestProcessTableVendorImport(t *testing.T) {
	ctx := context.Background()
	proc, st := newTestProcessor(t)

	result, err := proc.ProcessTable(ctx, vendorTable())
	if err != nil {
		t.Fatalf("ProcessTable: %v", err)
	}

	if result.Format != model.FormatLinkIt {
		t.Errorf("Format = %s, want %s", result.Format, model.FormatLinkIt)
	}
	s := result.Summary
	if s.Rows != 2 || s.Inserted != 2 || s.Updated != 0 || s.Skipped != 0 || s.Errored != 0 {
		t.Errorf("summary = %+v, want 2 rows all inserted", s)
	}

	jane, err := st.FindByKey(ctx, "S100")
	if err != nil || jane == nil {
		t.Fatalf("FindByKey(S100) = %+v, %v", jane, err)
	}
	if jane.FirstName != "Jane" || jane.LastName != "Doe" || jane.GradeLevel != "4" {
		t.Errorf("stored student = %+v", jane)
	}

	if len(result.Assessments) != 2 {
		t.Fatalf("got %d assessments, want 2", len(result.Assessments))
	}
	first := result.Assessments[0]
	if first.StudentID != jane.StudentID {
		t.Errorf("assessment StudentID = %q, want resolved surrogate %q", first.StudentID, jane.StudentID)
	}
	if first.ScaleScore != 725 || first.AssessmentType != "NJSLA_ELA" {
		t.Errorf("assessment = %+v", first)
	}
	if result.Rows[0].Assessments != 1 {
		t.Errorf("row 0 fan-out count = %d, want 1", result.Rows[0].Assessments)
	}
}

func TestProcessTableSecondRunSkips(t *testing.T) {
	ctx := context.Background()
	proc, _ := newTestProcessor(t)

	if _, err := proc.ProcessTable(ctx, vendorTable()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	result, err := proc.ProcessTable(ctx, vendorTable())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	s := result.Summary
	if s.Inserted != 0 || s.Updated != 0 || s.Skipped != 2 {
		t.Errorf("second-run summary = %+v, want 2 skips", s)
	}
	// Assessments still resolve on a skip run.
	if len(result.Assessments) != 2 {
		t.Errorf("got %d assessments on second run, want 2", len(result.Assessments))
	}
}

func TestProcessTableInvalidRowBlocksOnlyThatRow(t *testing.T) {
	ctx := context.Background()
	proc, st := newTestProcessor(t)

	table := vendorTable()
	table.Rows[7] = []string{"John Roe", "S200", "14", "2024-05-01", "Approaching", "710"}

	result, err := proc.ProcessTable(ctx, table)
	if err != nil {
		t.Fatalf("ProcessTable: %v", err)
	}

	s := result.Summary
	if s.Inserted != 1 || s.Errored != 1 {
		t.Errorf("summary = %+v, want 1 inserted 1 errored", s)
	}
	if len(result.RowErrors[1]) == 0 {
		t.Errorf("RowErrors[1] = %v, want a grade range error", result.RowErrors[1])
	}
	if rec, _ := st.FindByKey(ctx, "S200"); rec != nil {
		t.Errorf("invalid row was persisted: %+v", rec)
	}
	// Only the valid row fans out.
	if len(result.Assessments) != 1 {
		t.Errorf("got %d assessments, want 1", len(result.Assessments))
	}
}

func TestProcessTableGenericRoster(t *testing.T) {
	ctx := context.Background()
	proc, st := newTestProcessor(t)

	table := &model.RawTable{Rows: [][]string{
		{"Student Number", "First Name", "Last Name", "Date of Birth"},
		{"S500", "Maria", "Garcia", "2015-03-10"},
	}}
	result, err := proc.ProcessTable(ctx, table)
	if err != nil {
		t.Fatalf("ProcessTable: %v", err)
	}

	if result.Format != model.FormatGeneric {
		t.Errorf("Format = %s, want %s", result.Format, model.FormatGeneric)
	}
	if result.Summary.Inserted != 1 {
		t.Errorf("summary = %+v, want 1 inserted", result.Summary)
	}
	rec, err := st.FindByKey(ctx, "S500")
	if err != nil || rec == nil {
		t.Fatalf("FindByKey(S500) = %+v, %v", rec, err)
	}
	if rec.FirstName != "Maria" || rec.LastName != "Garcia" || rec.DOB != "2015-03-10" {
		t.Errorf("stored student = %+v", rec)
	}
	if len(result.Assessments) != 0 {
		t.Errorf("generic roster produced %d assessments, want 0", len(result.Assessments))
	}
}

func TestProcessTableUnsupportedFormat(t *testing.T) {
	ctx := context.Background()
	proc, _ := newTestProcessor(t)

	table := &model.RawTable{Rows: [][]string{
		{"Genesis Student Export", ""},
		{"Name", "Homeroom"},
		{"Jane Doe", "4B"},
	}}
	if _, err := proc.ProcessTable(ctx, table); err == nil {
		t.Error("ProcessTable succeeded for an unimplemented format, want not-yet-supported error")
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		input string
		first string
		last  string
	}{
		{"Jane Doe", "Jane", "Doe"},
		{"Doe, Jane", "Jane", "Doe"},
		{"Mary Jane Watson", "Mary Jane", "Watson"},
		{"Cher", "Cher", ""},
	}
	for _, tt := range tests {
		first, last := splitName(tt.input)
		if first != tt.first || last != tt.last {
			t.Errorf("splitName(%q) = %q/%q, want %q/%q", tt.input, first, last, tt.first, tt.last)
		}
	}
}
