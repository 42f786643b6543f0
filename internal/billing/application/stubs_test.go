package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	billing "school-soa/internal/billing/domain"
	"school-soa/internal/notify"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func tuitionEnrollment(id, student string) Enrollment {
	day := func(month time.Month, d int) time.Time { return time.Date(2024, month, d, 0, 0, 0, 0, time.UTC) }
	return Enrollment{
		ID:           id,
		SchoolYearID: "sy-2024",
		SchoolYear:   "2024-2025",
		StudentID:    "stu-" + id,
		StudentLabel: student,
		Items: []billing.BilledItem{{
			Category:    "TUITION",
			UnitAmount:  decimal.NewFromInt(5000),
			Quantity:    1,
			Description: "Tuition fee",
			Installment: &billing.InstallmentPlan{Months: 10, StartMonth: time.June},
		}},
		Discounts: []billing.Discount{{
			Category: "TUITION",
			Kind:     billing.DiscountPercentage,
			Amount:   decimal.NewFromInt(20),
		}},
		Payments: []billing.Payment{
			{Category: "TUITION", Amount: decimal.NewFromInt(500), Date: day(time.June, 10), Remark: billing.RemarkPartialPayment},
			{Category: "TUITION", Amount: decimal.NewFromInt(500), Date: day(time.July, 10), Remark: billing.RemarkPartialPayment},
			{Category: "TUITION", Amount: decimal.NewFromInt(300), Date: day(time.August, 10), Remark: billing.RemarkPartialPayment},
		},
	}
}

type stubEnrollments struct {
	byID    map[string]Enrollment
	list    []Enrollment
	listErr error
}

func (s *stubEnrollments) Get(_ context.Context, enrollmentID string) (*Enrollment, error) {
	enrollment, ok := s.byID[enrollmentID]
	if !ok {
		return nil, billing.ErrEnrollmentNotFound
	}
	return &enrollment, nil
}

func (s *stubEnrollments) ListBySchoolYear(_ context.Context, _ string) ([]Enrollment, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.list, nil
}

type stubRenderer struct {
	err  error
	last billing.Statement
}

func (r *stubRenderer) Render(enrollment *Enrollment, stmt billing.Statement) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.last = stmt
	return []byte("pdf:" + enrollment.ID), nil
}

type memoryStore struct {
	mu       sync.Mutex
	files    map[string][]byte
	archives map[string][]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: map[string][]byte{}, archives: map[string][]string{}}
}

func (m *memoryStore) Save(_ context.Context, relPath string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[relPath] = data
	return "mem/" + relPath, nil
}

func (m *memoryStore) Archive(_ context.Context, relPath string, files []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archives[relPath] = append([]string(nil), files...)
	return "mem/" + relPath, nil
}

type recorderStub struct {
	mu    sync.Mutex
	files []StatementFile
	err   error
}

func (r *recorderStub) RecordStatementFile(_ context.Context, file StatementFile) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, file)
	return nil
}

// generatorFunc adapts a function to StatementGenerator.
type generatorFunc func(ctx context.Context, enrollment *Enrollment) (*StatementFile, error)

func (f generatorFunc) Generate(ctx context.Context, enrollment *Enrollment) (*StatementFile, error) {
	return f(ctx, enrollment)
}

func okFile(enrollment *Enrollment) *StatementFile {
	name := fmt.Sprintf("SOA_%s.pdf", enrollment.ID)
	return &StatementFile{ID: "f-" + enrollment.ID, EnrollmentID: enrollment.ID, FileName: name, FilePath: "mem/" + name}
}

var errBadRecord = errors.New("bad record")

type captureNotifier struct {
	mu       sync.Mutex
	messages []notify.BulkRunMessage
}

func (c *captureNotifier) NotifyBulkRun(_ context.Context, msg notify.BulkRunMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}
