package application

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	billing "school-soa/internal/billing/domain"
	"school-soa/internal/observability/metrics"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// StatementService computes and generates statements of account.
type StatementService struct {
	reader    EnrollmentReader
	assembler *billing.Assembler
	renderer  Renderer
	store     FileStore
	recorder  FileRecorder
	clock     Clock
	logger    *zap.Logger
}

// ServiceOption configures a StatementService.
type ServiceOption func(*StatementService)

// WithRenderer sets the document renderer used by Generate.
func WithRenderer(renderer Renderer) ServiceOption {
	return func(s *StatementService) { s.renderer = renderer }
}

// WithFileStore sets where generated documents are written.
func WithFileStore(store FileStore) ServiceOption {
	return func(s *StatementService) { s.store = store }
}

// WithFileRecorder sets where generated file records are kept.
func WithFileRecorder(recorder FileRecorder) ServiceOption {
	return func(s *StatementService) { s.recorder = recorder }
}

// WithClock overrides the clock that supplies "today".
func WithClock(clock Clock) ServiceOption {
	return func(s *StatementService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *StatementService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStatementService constructs a service.
func NewStatementService(reader EnrollmentReader, assembler *billing.Assembler, opts ...ServiceOption) (*StatementService, error) {
	if reader == nil {
		return nil, errors.New("statement service: nil enrollment reader")
	}
	if assembler == nil {
		return nil, errors.New("statement service: nil assembler")
	}
	s := &StatementService{
		reader:    reader,
		assembler: assembler,
		clock:     SystemClock{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Enrollment loads one enrollment.
func (s *StatementService) Enrollment(ctx context.Context, enrollmentID string) (*Enrollment, error) {
	if enrollmentID == "" {
		return nil, errors.New("statement service: enrollment_id required")
	}
	enrollment, err := s.reader.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, billing.ErrEnrollmentNotFound
	}
	return enrollment, nil
}

// Statement assembles the statement for an already loaded enrollment as of today.
func (s *StatementService) Statement(enrollment *Enrollment) billing.Statement {
	return s.assembler.Assemble(enrollment.Input(), s.clock.Now())
}

// Compute loads an enrollment and assembles its statement.
func (s *StatementService) Compute(ctx context.Context, enrollmentID string) (*Enrollment, billing.Statement, error) {
	enrollment, err := s.Enrollment(ctx, enrollmentID)
	if err != nil {
		metrics.IncStatementCompute(metrics.ResultError)
		return nil, billing.Statement{}, err
	}
	stmt := s.Statement(enrollment)
	metrics.IncStatementCompute(metrics.ResultSuccess)
	return enrollment, stmt, nil
}

// GenerateByID loads an enrollment and generates its statement file.
func (s *StatementService) GenerateByID(ctx context.Context, enrollmentID string) (*StatementFile, error) {
	enrollment, err := s.Enrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	return s.Generate(ctx, enrollment)
}

// Generate renders, stores and records the statement of one enrollment.
func (s *StatementService) Generate(ctx context.Context, enrollment *Enrollment) (*StatementFile, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveStatementGenerate(result, time.Since(start))
	}()

	if enrollment == nil {
		result = metrics.ResultError
		return nil, errors.New("statement service: nil enrollment")
	}
	if s.renderer == nil || s.store == nil {
		result = metrics.ResultError
		return nil, errors.New("statement service: renderer and file store required")
	}

	now := s.clock.Now()
	stmt := s.assembler.Assemble(enrollment.Input(), now)
	data, err := s.renderer.Render(enrollment, stmt)
	if err != nil {
		result = metrics.ResultError
		return nil, fmt.Errorf("render statement: %w", err)
	}

	fileName := StatementFileName(enrollment, now)
	stored, err := s.store.Save(ctx, path.Join(safeSegment(enrollment.SchoolYearID), fileName), data)
	if err != nil {
		result = metrics.ResultError
		return nil, fmt.Errorf("store statement: %w", err)
	}

	file := &StatementFile{
		ID:           uuid.NewString(),
		EnrollmentID: enrollment.ID,
		SchoolYearID: enrollment.SchoolYearID,
		FileName:     fileName,
		FilePath:     stored,
		GeneratedAt:  now.UTC(),
	}
	if s.recorder != nil {
		if err := s.recorder.RecordStatementFile(ctx, *file); err != nil {
			result = metrics.ResultError
			return nil, fmt.Errorf("record statement file: %w", err)
		}
	}
	s.logger.Info("statement generated",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("school_year_id", enrollment.SchoolYearID),
		zap.String("file", stored),
		zap.String("due_as_of_current_month", stmt.DueAsOfCurrentMonth.StringFixed(2)),
	)
	return file, nil
}

// StatementFileName builds "SOA_<student>_<studentNo|enrollmentID>_<yyyymmdd>.pdf".
// The student number (or enrollment id) keeps same-named students apart.
func StatementFileName(enrollment *Enrollment, generatedAt time.Time) string {
	key := enrollment.StudentNo
	if key == "" {
		key = enrollment.ID
	}
	date := generatedAt.Format("20060102")
	if enrollment.StudentLabel == "" {
		return fmt.Sprintf("SOA_%s_%s.pdf", safeSegment(key), date)
	}
	return fmt.Sprintf("SOA_%s_%s_%s.pdf", safeSegment(enrollment.StudentLabel), safeSegment(key), date)
}

func safeSegment(value string) string {
	cleaned := strings.Trim(unsafeFileChars.ReplaceAllString(value, "_"), "_.")
	if cleaned == "" {
		return "unknown"
	}
	return cleaned
}
