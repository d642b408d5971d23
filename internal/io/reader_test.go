package io

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"roster-etl/internal/config"
)

func TestCSVReaderReadBytes(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		delimiter string
		comment   string
		want      [][]string
		wantErr   bool
	}{
		{
			name:  "basic rows",
			input: "a,b,c\n1,2,3\n",
			want:  [][]string{{"a", "b", "c"}, {"1", "2", "3"}},
		},
		{
			name:  "ragged rows allowed",
			input: "a,b,c\n1,2\n1,2,3,4\n",
			want:  [][]string{{"a", "b", "c"}, {"1", "2"}, {"1", "2", "3", "4"}},
		},
		{
			name:      "tab delimiter",
			input:     "a\tb\n1\t2\n",
			delimiter: "\t",
			want:      [][]string{{"a", "b"}, {"1", "2"}},
		},
		{
			name:    "comment lines skipped",
			input:   "# generated export\na,b\n1,2\n",
			comment: "#",
			want:    [][]string{{"a", "b"}, {"1", "2"}},
		},
		{
			name:    "empty input is a parse error",
			input:   "",
			wantErr: true,
		},
		{
			name:    "unterminated quote is a parse error",
			input:   "a,\"b\n1,2\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewCSVReader(tt.delimiter, tt.comment)
			if err != nil {
				t.Fatalf("NewCSVReader: %v", err)
			}
			table, err := reader.ReadBytes([]byte(tt.input), "test.csv")
			if tt.wantErr {
				if err == nil {
					t.Fatal("ReadBytes succeeded, want error")
				}
				var parseErr *ParseError
				if !errors.As(err, &parseErr) {
					t.Errorf("error %v is not a *ParseError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadBytes: %v", err)
			}
			if !reflect.DeepEqual(table.Rows, tt.want) {
				t.Errorf("Rows = %v, want %v", table.Rows, tt.want)
			}
		})
	}
}

func TestNewCSVReaderRejectsBadOptions(t *testing.T) {
	if _, err := NewCSVReader(";;", ""); err == nil {
		t.Error("multi-character delimiter accepted")
	}
	if _, err := NewCSVReader(",", "##"); err == nil {
		t.Error("multi-character comment accepted")
	}
}

func writeTestWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "export.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func TestExcelReaderRead(t *testing.T) {
	path := writeTestWorkbook(t, [][]interface{}{
		{"Student", "ID", "Grade"},
		{"Jane Doe", "S100", "4"},
	})

	reader := NewExcelReader("")
	table, err := reader.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := [][]string{{"Student", "ID", "Grade"}, {"Jane Doe", "S100", "4"}}
	if !reflect.DeepEqual(table.Rows, want) {
		t.Errorf("Rows = %v, want %v", table.Rows, want)
	}
}

func TestExcelReaderMissingSheet(t *testing.T) {
	path := writeTestWorkbook(t, [][]interface{}{{"a"}})

	reader := NewExcelReader("Results")
	_, err := reader.Read(path)
	if err == nil {
		t.Fatal("Read succeeded for a missing sheet")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("error %v is not a *ParseError", err)
	}
}

func TestNewTabularReader(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.SourceConfig
		path     string
		wantType string
		wantErr  bool
	}{
		{"explicit csv", config.SourceConfig{Type: config.SourceTypeCSV}, "data.bin", "*io.CSVReader", false},
		{"explicit xlsx", config.SourceConfig{Type: config.SourceTypeXLSX}, "data.bin", "*io.ExcelReader", false},
		{"auto csv", config.SourceConfig{Type: config.SourceTypeAuto}, "export.csv", "*io.CSVReader", false},
		{"auto tsv", config.SourceConfig{}, "export.tsv", "*io.CSVReader", false},
		{"auto xlsx", config.SourceConfig{}, "export.XLSX", "*io.ExcelReader", false},
		{"legacy xls rejected", config.SourceConfig{}, "export.xls", "", true},
		{"unknown extension", config.SourceConfig{}, "export.pdf", "", true},
		{"unknown type", config.SourceConfig{Type: "parquet"}, "export.csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewTabularReader(tt.cfg, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewTabularReader succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTabularReader: %v", err)
			}
			if got := reflect.TypeOf(reader).String(); got != tt.wantType {
				t.Errorf("reader type = %s, want %s", got, tt.wantType)
			}
		})
	}
}
