package postgres

import (
	"context"
	"database/sql"
	"errors"

	"school-soa/internal/billing/application"
)

// StatementFileRepository persists generated statement file records.
type StatementFileRepository struct {
	db *sql.DB
}

// NewStatementFileRepository constructs a repository.
func NewStatementFileRepository(db *sql.DB) *StatementFileRepository {
	return &StatementFileRepository{db: db}
}

// RecordStatementFile stores a generated file record.
func (r *StatementFileRepository) RecordStatementFile(ctx context.Context, file application.StatementFile) error {
	if r == nil || r.db == nil {
		return errors.New("statement file repo: nil db")
	}
	if file.ID == "" || file.EnrollmentID == "" {
		return errors.New("statement file repo: id and enrollment_id required")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO statement_files (
	id, enrollment_id, school_year_id, file_name, file_path, generated_at
) VALUES ($1,$2,$3,$4,$5,$6)`,
		file.ID, file.EnrollmentID, file.SchoolYearID, file.FileName, file.FilePath, file.GeneratedAt.UTC())
	return err
}

// ListByEnrollment returns generated files, newest first.
func (r *StatementFileRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]application.StatementFile, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("statement file repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, enrollment_id, school_year_id, file_name, file_path, generated_at
FROM statement_files
WHERE enrollment_id = $1
ORDER BY generated_at DESC, id ASC`, enrollmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []application.StatementFile
	for rows.Next() {
		file, err := scanStatementFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanStatementFile(row rowScanner) (*application.StatementFile, error) {
	var file application.StatementFile
	if err := row.Scan(&file.ID, &file.EnrollmentID, &file.SchoolYearID, &file.FileName, &file.FilePath, &file.GeneratedAt); err != nil {
		return nil, err
	}
	file.GeneratedAt = file.GeneratedAt.UTC()
	return &file, nil
}
