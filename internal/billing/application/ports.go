package application

import (
	"context"
	"time"

	billing "school-soa/internal/billing/domain"
)

// Enrollment is one student's registration within a school year, with the billing
// records a statement is computed from.
type Enrollment struct {
	ID           string `json:"id"`
	SchoolYearID string `json:"school_year_id"`
	SchoolYear   string `json:"school_year"`
	StudentID    string `json:"student_id"`
	StudentLabel string `json:"student"`
	StudentNo    string `json:"student_no,omitempty"`
	YearLevel    string `json:"year_level,omitempty"`
	ClassArm     string `json:"class_arm,omitempty"`

	Items     []billing.BilledItem `json:"-"`
	Discounts []billing.Discount   `json:"-"`
	Payments  []billing.Payment    `json:"-"`
}

// Input returns the engine input for the enrollment.
func (e Enrollment) Input() billing.StatementInput {
	return billing.StatementInput{Items: e.Items, Discounts: e.Discounts, Payments: e.Payments}
}

// StatementFile records a rendered statement stored for an enrollment.
type StatementFile struct {
	ID           string    `json:"id"`
	EnrollmentID string    `json:"enrollment_id"`
	SchoolYearID string    `json:"school_year_id"`
	FileName     string    `json:"file_name"`
	FilePath     string    `json:"file_path"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// EnrollmentReader loads one enrollment with its billing records.
type EnrollmentReader interface {
	Get(ctx context.Context, enrollmentID string) (*Enrollment, error)
}

// EnrollmentLister loads every enrollment of a school year in display order.
type EnrollmentLister interface {
	ListBySchoolYear(ctx context.Context, schoolYearID string) ([]Enrollment, error)
}

// Renderer turns a statement into a printable document.
type Renderer interface {
	Render(enrollment *Enrollment, stmt billing.Statement) ([]byte, error)
}

// FileStore persists rendered documents and returns their stored path.
type FileStore interface {
	Save(ctx context.Context, relPath string, data []byte) (string, error)
}

// Archiver bundles stored documents into one archive.
type Archiver interface {
	Archive(ctx context.Context, relPath string, files []string) (string, error)
}

// FileRecorder stores generated file records.
type FileRecorder interface {
	RecordStatementFile(ctx context.Context, file StatementFile) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
