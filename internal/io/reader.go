package io

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"roster-etl/internal/config"
	"roster-etl/internal/logging"
	"roster-etl/internal/model"

	"github.com/xuri/excelize/v2"
)

// ParseError is a fatal file-level failure: the buffer could not be decoded
// as the declared format, or decoding produced zero rows. The file yields no
// partial result.
type ParseError struct {
	Path   string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error (%s) in '%s': %v", e.Format, e.Path, e.Err)
	}
	return fmt.Sprintf("parse error (%s) in '%s'", e.Format, e.Path)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TabularReader parses one input file into an ordered, header-less row/cell
// table. Header discovery happens downstream.
type TabularReader interface {
	// Read loads the file at filePath.
	Read(filePath string) (*model.RawTable, error)
	// ReadBytes parses an in-memory buffer; path is used for error context
	// only.
	ReadBytes(data []byte, path string) (*model.RawTable, error)
}

// CSVReader implements TabularReader for delimited text files. No header row
// is assumed and rows may have varying field counts.
type CSVReader struct {
	Delimiter   rune // field delimiter (e.g. ',', '\t')
	CommentChar rune // comment line marker; 0 disables
}

// NewCSVReader creates a CSVReader with options derived from SourceConfig.
func NewCSVReader(delimiter, commentChar string) (*CSVReader, error) {
	var delim rune = ','
	var comment rune

	if delimiter != "" {
		if utf8.RuneCountInString(delimiter) != 1 {
			return nil, fmt.Errorf("invalid delimiter '%s': must be a single character", delimiter)
		}
		delim = []rune(delimiter)[0]
	}
	if commentChar != "" {
		if utf8.RuneCountInString(commentChar) != 1 {
			return nil, fmt.Errorf("invalid comment character '%s': must be a single character or empty", commentChar)
		}
		comment = []rune(commentChar)[0]
	}
	return &CSVReader{Delimiter: delim, CommentChar: comment}, nil
}

// Read loads a delimited file into a RawTable.
func (cr *CSVReader) Read(filePath string) (*model.RawTable, error) {
	logging.Logf(logging.Debug, "CSVReader reading file: %s (Delimiter: '%c')", filePath, cr.Delimiter)
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("CSVReader failed to open file '%s': %w", filePath, err)
	}
	return cr.ReadBytes(data, filePath)
}

// ReadBytes parses delimited text from a buffer.
func (cr *CSVReader) ReadBytes(data []byte, path string) (*model.RawTable, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = cr.Delimiter
	if cr.CommentChar != 0 {
		reader.Comment = cr.CommentChar
	}
	reader.FieldsPerRecord = -1 // vendor exports have ragged rows

	rows, err := reader.ReadAll()
	if err != nil {
		if parseErr, ok := err.(*csv.ParseError); ok {
			return nil, &ParseError{Path: path, Format: "csv", Err: fmt.Errorf("line %d, column %d: %w", parseErr.Line, parseErr.Column, parseErr.Err)}
		}
		return nil, &ParseError{Path: path, Format: "csv", Err: err}
	}
	if len(rows) == 0 {
		return nil, &ParseError{Path: path, Format: "csv", Err: fmt.Errorf("file contains no rows")}
	}

	logging.Logf(logging.Debug, "CSVReader loaded %d raw rows from %s", len(rows), path)
	return &model.RawTable{Rows: rows}, nil
}

// ExcelReader implements TabularReader for spreadsheet files. Only the first
// sheet is read unless a sheet name is configured.
type ExcelReader struct {
	sheetName string
}

// NewExcelReader creates an ExcelReader with an optional sheet preference.
func NewExcelReader(sheetName string) *ExcelReader {
	return &ExcelReader{sheetName: sheetName}
}

// Read loads a spreadsheet file into a RawTable.
func (xr *ExcelReader) Read(filePath string) (*model.RawTable, error) {
	logging.Logf(logging.Debug, "ExcelReader reading file: %s (SheetName: '%s')", filePath, xr.sheetName)
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("ExcelReader failed to open file '%s': %w", filePath, err)
	}
	return xr.ReadBytes(data, filePath)
}

// ReadBytes parses spreadsheet content from a buffer.
func (xr *ExcelReader) ReadBytes(data []byte, path string) (*model.RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Path: path, Format: "xlsx", Err: err}
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Logf(logging.Error, "ExcelReader failed to close workbook '%s': %v", path, err)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Path: path, Format: "xlsx", Err: fmt.Errorf("workbook contains no sheets")}
	}

	targetSheet := sheets[0]
	if xr.sheetName != "" {
		found := false
		for _, name := range sheets {
			if name == xr.sheetName {
				targetSheet = name
				found = true
				break
			}
		}
		if !found {
			return nil, &ParseError{Path: path, Format: "xlsx", Err: fmt.Errorf("sheet '%s' not found", xr.sheetName)}
		}
	}

	rows, err := f.GetRows(targetSheet)
	if err != nil {
		return nil, &ParseError{Path: path, Format: "xlsx", Err: fmt.Errorf("failed to get rows from sheet '%s': %w", targetSheet, err)}
	}
	if len(rows) == 0 {
		return nil, &ParseError{Path: path, Format: "xlsx", Err: fmt.Errorf("sheet '%s' contains no rows", targetSheet)}
	}

	logging.Logf(logging.Debug, "ExcelReader loaded %d raw rows from sheet '%s' in %s", len(rows), targetSheet, path)
	return &model.RawTable{Rows: rows}, nil
}

// NewTabularReader returns a reader for the configured source type, falling
// back to extension-based selection for type "auto".
func NewTabularReader(cfg config.SourceConfig, filePath string) (TabularReader, error) {
	sourceType := strings.ToLower(cfg.Type)
	if sourceType == config.SourceTypeAuto || sourceType == "" {
		switch strings.ToLower(filepath.Ext(filePath)) {
		case ".csv", ".txt", ".tsv":
			sourceType = config.SourceTypeCSV
		case ".xlsx", ".xlsm":
			sourceType = config.SourceTypeXLSX
		case ".xls":
			// excelize reads only OOXML workbooks; a legacy .xls stream
			// would be misparsed, so fail the file up front.
			return nil, &ParseError{Path: filePath, Format: "xls", Err: fmt.Errorf("legacy .xls workbooks are not supported; convert to .xlsx")}
		default:
			return nil, fmt.Errorf("cannot determine reader for '%s': unrecognized extension", filePath)
		}
	}

	switch sourceType {
	case config.SourceTypeCSV:
		reader, err := NewCSVReader(cfg.Delimiter, cfg.CommentChar)
		if err != nil {
			return nil, fmt.Errorf("failed to create CSV reader: %w", err)
		}
		return reader, nil
	case config.SourceTypeXLSX:
		return NewExcelReader(cfg.SheetName), nil
	default:
		return nil, fmt.Errorf("unsupported source type '%s'", cfg.Type)
	}
}
