package io

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCSVRejectWriterAppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rejects.csv")

	w, err := NewCSVRejectWriter(path)
	if err != nil {
		t.Fatalf("NewCSVRejectWriter: %v", err)
	}
	if err := w.Write(3, []string{"Jane Doe", "S100", "4"}, "grade_level: value above maximum 13"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen; the header must not repeat.
	w, err = NewCSVRejectWriter(path)
	if err != nil {
		t.Fatalf("NewCSVRejectWriter (reopen): %v", err)
	}
	if err := w.Write(7, []string{"", "S200", "5"}, "first_name: first name is required"); err != nil {
		t.Fatalf("Write (reopen): %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close (reopen): %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	want := [][]string{
		{"row_index", "record", "reason"},
		{"3", "Jane Doe|S100|4", "grade_level: value above maximum 13"},
		{"7", "|S200|5", "first_name: first name is required"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("report rows = %v, want %v", rows, want)
	}
}

func TestCSVRejectWriterClosedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rejects.csv")
	w, err := NewCSVRejectWriter(path)
	if err != nil {
		t.Fatalf("NewCSVRejectWriter: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Write(0, []string{"a"}, "late"); err == nil {
		t.Error("Write after Close succeeded, want error")
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close returned %v, want nil", err)
	}
}

func TestNewRejectWriterEmptyPathIsNoop(t *testing.T) {
	w, err := NewRejectWriter("")
	if err != nil {
		t.Fatalf("NewRejectWriter: %v", err)
	}
	if err := w.Write(0, []string{"a"}, "reason"); err != nil {
		t.Errorf("noop Write returned %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("noop Close returned %v", err)
	}
}
