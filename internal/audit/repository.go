package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const insertEntrySQL = `
INSERT INTO audit_logs (
	id, school_id, actor, role, action, enrollment_id, school_year_id,
	metadata, payload_digest, ip, user_agent, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

// Repository appends entries to audit_logs.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit: repository has no database")
	}
	entry.fill(r.now())

	// NULL rather than an empty JSONB document
	var metadata any
	if len(entry.Metadata) > 0 {
		metadata = []byte(entry.Metadata)
	}
	_, err := r.db.ExecContext(ctx, insertEntrySQL,
		entry.ID, entry.SchoolID, entry.Actor, entry.Role, string(entry.Action), entry.EnrollmentID, entry.SchoolYearID,
		metadata, entry.PayloadDigest, entry.IP, entry.UserAgent, entry.CreatedAt)
	return err
}
