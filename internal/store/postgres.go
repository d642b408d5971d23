package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"roster-etl/internal/logging"
	"roster-etl/internal/model"
	"roster-etl/internal/util"
)

const defaultDBTimeout = 15 * time.Second

// studentColumns is the scalar column list shared by reads and writes, in a
// fixed order so scans stay aligned.
var studentColumns = []string{
	"student_id",
	model.FieldSchoolStudentID,
	model.FieldFirstName,
	model.FieldLastName,
	model.FieldDOB,
	model.FieldGradeLevel,
	model.FieldEnrollmentDate,
	model.FieldGraduationYear,
	model.FieldCurrentGPA,
	model.FieldAcademicStatus,
	model.FieldSchoolID,
	model.FieldSpecialNeeds,
	"archived",
}

// PostgresStore is the production StudentStore backed by a pgx connection
// pool. The special-needs attribute map is stored as JSONB.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore connects and pings the database. The DSN is logged in
// masked form only.
func NewPostgresStore(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	logging.Logf(logging.Debug, "Connecting to PostgreSQL target: %s", util.MaskCredentials(dsn))

	connectCtx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &PostgresStore{pool: pool, table: pgx.Identifier{table}.Sanitize()}, nil
}

// FindByKey looks a student up by natural key, excluding archived rows.
func (p *PostgresStore) FindByKey(ctx context.Context, schoolStudentID string) (*model.StudentRecord, error) {
	queryCtx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1 AND NOT archived",
		strings.Join(studentColumns, ", "), p.table, model.FieldSchoolStudentID,
	)
	row := p.pool.QueryRow(queryCtx, query, schoolStudentID)

	rec, err := scanStudent(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query student by key '%s': %w", schoolStudentID, err)
	}
	return rec, nil
}

// Insert persists a new student, assigning a surrogate id when the record
// does not carry one.
func (p *PostgresStore) Insert(ctx context.Context, rec *model.StudentRecord) (string, error) {
	queryCtx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
	defer cancel()

	id := rec.StudentID
	if id == "" {
		id = uuid.NewString()
	}
	needsJSON, err := marshalNeeds(rec.SpecialNeeds)
	if err != nil {
		return "", err
	}

	placeholders := make([]string, len(studentColumns))
	for i := range studentColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		p.table, strings.Join(studentColumns, ", "), strings.Join(placeholders, ", "),
	)
	_, err = p.pool.Exec(queryCtx, query,
		id, rec.SchoolStudentID, rec.FirstName, rec.LastName, rec.DOB,
		rec.GradeLevel, rec.EnrollmentDate, rec.GraduationYear, rec.CurrentGPA,
		rec.AcademicStatus, rec.SchoolID, needsJSON, rec.Archived,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert student '%s': %w", rec.SchoolStudentID, err)
	}
	return id, nil
}

// Update applies a partial field set. SET clauses are built in sorted key
// order so generated SQL is deterministic.
func (p *PostgresStore) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	queryCtx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
	defer cancel()

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	setClauses := make([]string, 0, len(names))
	args := make([]interface{}, 0, len(names)+1)
	for i, name := range names {
		value := fields[name]
		if name == model.FieldSpecialNeeds {
			needs, ok := value.(map[string]string)
			if !ok {
				return fmt.Errorf("special_needs update must be a map[string]string, got %T", value)
			}
			needsJSON, err := marshalNeeds(needs)
			if err != nil {
				return err
			}
			value = needsJSON
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", name, i+1))
		args = append(args, value)
	}
	args = append(args, id)

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE student_id = $%d",
		p.table, strings.Join(setClauses, ", "), len(args),
	)
	tag, err := p.pool.Exec(queryCtx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update student '%s': %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no student with id '%s'", id)
	}
	return nil
}

// List returns all non-archived students ordered by natural key.
func (p *PostgresStore) List(ctx context.Context) ([]model.StudentRecord, error) {
	queryCtx, cancel := context.WithTimeout(ctx, defaultDBTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE NOT archived ORDER BY %s",
		strings.Join(studentColumns, ", "), p.table, model.FieldSchoolStudentID,
	)
	rows, err := p.pool.Query(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var out []model.StudentRecord
	for rows.Next() {
		rec, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed while reading student rows: %w", err)
	}
	return out, nil
}

// Close releases the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

func scanStudent(row pgx.Row) (*model.StudentRecord, error) {
	var rec model.StudentRecord
	var needsJSON []byte
	err := row.Scan(
		&rec.StudentID, &rec.SchoolStudentID, &rec.FirstName, &rec.LastName,
		&rec.DOB, &rec.GradeLevel, &rec.EnrollmentDate, &rec.GraduationYear,
		&rec.CurrentGPA, &rec.AcademicStatus, &rec.SchoolID, &needsJSON,
		&rec.Archived,
	)
	if err != nil {
		return nil, err
	}
	if len(needsJSON) > 0 {
		if err := json.Unmarshal(needsJSON, &rec.SpecialNeeds); err != nil {
			return nil, fmt.Errorf("failed to decode special_needs for '%s': %w", rec.SchoolStudentID, err)
		}
	}
	return &rec, nil
}

func marshalNeeds(needs map[string]string) ([]byte, error) {
	if needs == nil {
		needs = map[string]string{}
	}
	data, err := json.Marshal(needs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode special_needs: %w", err)
	}
	return data, nil
}
