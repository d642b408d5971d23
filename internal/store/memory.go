package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"roster-etl/internal/model"
)

// MemoryStore is a map-backed StudentStore used for dry runs and tests. It
// honors the same contract as the PostgreSQL store, including soft-archive
// filtering.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]*model.StudentRecord
	keyToID map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*model.StudentRecord),
		keyToID: make(map[string]string),
	}
}

// FindByKey returns a copy of the stored record, or nil when absent.
func (m *MemoryStore) FindByKey(_ context.Context, schoolStudentID string) (*model.StudentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.keyToID[schoolStudentID]
	if !ok {
		return nil, nil
	}
	rec := m.byID[id]
	if rec == nil || rec.Archived {
		return nil, nil
	}
	clone := cloneRecord(rec)
	return &clone, nil
}

// Insert stores a new record, assigning a surrogate id when the record does
// not carry one.
func (m *MemoryStore) Insert(_ context.Context, rec *model.StudentRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.SchoolStudentID == "" {
		return "", fmt.Errorf("cannot insert student without a school student id")
	}
	if _, exists := m.keyToID[rec.SchoolStudentID]; exists {
		return "", fmt.Errorf("student with school id '%s' already exists", rec.SchoolStudentID)
	}

	id := rec.StudentID
	if id == "" {
		id = uuid.NewString()
	}
	stored := cloneRecord(rec)
	stored.StudentID = id
	m.byID[id] = &stored
	m.keyToID[rec.SchoolStudentID] = id
	return id, nil
}

// Update applies a partial field set to an existing record.
func (m *MemoryStore) Update(_ context.Context, id string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("no student with id '%s'", id)
	}
	for name, value := range fields {
		if err := applyField(rec, name, value); err != nil {
			return err
		}
	}
	return nil
}

// List returns copies of all non-archived records, ordered by natural key
// for deterministic iteration.
func (m *MemoryStore) List(_ context.Context) ([]model.StudentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.StudentRecord, 0, len(m.byID))
	for _, rec := range m.byID {
		if rec.Archived {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SchoolStudentID < out[j].SchoolStudentID
	})
	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() {}

func applyField(rec *model.StudentRecord, name string, value interface{}) error {
	switch name {
	case model.FieldSpecialNeeds:
		needs, ok := value.(map[string]string)
		if !ok {
			return fmt.Errorf("special_needs update must be a map[string]string, got %T", value)
		}
		rec.SpecialNeeds = needs
		return nil
	case "archived":
		archived, ok := value.(bool)
		if !ok {
			return fmt.Errorf("archived update must be a bool, got %T", value)
		}
		rec.Archived = archived
		return nil
	}

	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("field '%s' update must be a string, got %T", name, value)
	}
	rec.SetField(name, str)
	return nil
}

func cloneRecord(rec *model.StudentRecord) model.StudentRecord {
	clone := *rec
	if rec.SpecialNeeds != nil {
		clone.SpecialNeeds = make(map[string]string, len(rec.SpecialNeeds))
		for k, v := range rec.SpecialNeeds {
			clone.SpecialNeeds[k] = v
		}
	}
	return clone
}
