package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action names a statement access recorded in the trail.
type Action string

const (
	ActionStatementView     Action = "statement.view"
	ActionStatementExport   Action = "statement.export"
	ActionStatementGenerate Action = "statement.generate"
	ActionStatementBulk     Action = "statement.bulk"
)

// Entry is one line of the statement access trail. EnrollmentID is empty for
// school-year wide actions such as bulk runs.
type Entry struct {
	ID            string
	SchoolID      string
	Actor         string
	Role          string
	Action        Action
	EnrollmentID  string
	SchoolYearID  string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger persists entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// SetMetadata stores v as the entry's JSON metadata. A nil v clears it.
func (e *Entry) SetMetadata(v any) error {
	if v == nil {
		e.Metadata = nil
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e.Metadata = data
	return nil
}

// fill assigns the id, timestamp and metadata digest when they are unset.
func (e *Entry) fill(now time.Time) {
	if e.ID == "" {
		e.ID = "audit-" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now.UTC()
	}
	if e.PayloadDigest == "" && len(e.Metadata) > 0 {
		sum := sha256.Sum256(e.Metadata)
		e.PayloadDigest = hex.EncodeToString(sum[:])
	}
}
