package io

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"

	"roster-etl/internal/logging"
)

// RejectWriter receives rows that failed validation or reconciliation so an
// operator can review and resubmit them.
type RejectWriter interface {
	Write(rowIndex int, record []string, reason string) error
	Close() error
}

// CSVRejectWriter appends rejected rows to a CSV file. The header is written
// only when the file starts empty, so repeated imports accumulate into one
// report.
type CSVRejectWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	closed bool
}

// NewCSVRejectWriter opens (or creates) the reject report at filePath.
func NewCSVRejectWriter(filePath string) (*CSVRejectWriter, error) {
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open reject report '%s': %w", filePath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat reject report '%s': %w", filePath, err)
	}

	w := &CSVRejectWriter{file: file, writer: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := w.writer.Write([]string{"row_index", "record", "reason"}); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write reject report header: %w", err)
		}
		w.writer.Flush()
	}
	logging.Logf(logging.Debug, "Reject report open: %s", filePath)
	return w, nil
}

// Write appends one rejected row. The source cells are joined with '|' so the
// report stays a flat three-column CSV regardless of the input shape.
func (w *CSVRejectWriter) Write(rowIndex int, record []string, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("reject report is closed")
	}

	row := []string{
		fmt.Sprintf("%d", rowIndex),
		strings.Join(record, "|"),
		reason,
	}
	if err := w.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write reject row %d: %w", rowIndex, err)
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes and closes the underlying file. Safe to call twice.
func (w *CSVRejectWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.writer.Flush()
	flushErr := w.writer.Error()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("failed to flush reject report: %w", flushErr)
	}
	return closeErr
}

// nopRejectWriter discards rejects; used when no report file is configured.
type nopRejectWriter struct{}

func (nopRejectWriter) Write(int, []string, string) error { return nil }
func (nopRejectWriter) Close() error                      { return nil }

// NewRejectWriter returns a CSV reject writer for filePath, or a no-op writer
// when filePath is empty.
func NewRejectWriter(filePath string) (RejectWriter, error) {
	if filePath == "" {
		return nopRejectWriter{}, nil
	}
	return NewCSVRejectWriter(filePath)
}
