// Package store holds the student record store implementations: PostgreSQL
// for real runs and an in-memory map for dry runs and tests.
package store

import (
	"context"

	"roster-etl/internal/model"
)

// StudentStore is the external collaborator the reconciliation engine talks
// to. Each call is record-scoped and assumed atomic.
type StudentStore interface {
	// FindByKey looks a student up by natural key. Absence is (nil, nil),
	// not an error.
	FindByKey(ctx context.Context, schoolStudentID string) (*model.StudentRecord, error)
	// Insert persists a new record and returns its surrogate id.
	Insert(ctx context.Context, rec *model.StudentRecord) (string, error)
	// Update applies a partial field set to the record with the given
	// surrogate id. Keys are canonical field names; special_needs carries a
	// map[string]string value.
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	// List returns all non-archived students.
	List(ctx context.Context) ([]model.StudentRecord, error)
	// Close releases underlying resources.
	Close()
}
