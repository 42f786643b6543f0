package application

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"school-soa/internal/notify"
	"school-soa/internal/observability/metrics"
)

// Bulk item statuses.
const (
	BulkStatusSuccess = "success"
	BulkStatusError   = "error"
)

const maxNotifiedFailures = 50

// StatementGenerator produces the statement file of one enrollment.
type StatementGenerator interface {
	Generate(ctx context.Context, enrollment *Enrollment) (*StatementFile, error)
}

// BulkItemResult is the outcome for one enrollment of a bulk run.
type BulkItemResult struct {
	EnrollmentID string `json:"enrollment_id"`
	StudentLabel string `json:"student"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
}

// BulkResult is the ordered outcome of a bulk run.
type BulkResult struct {
	RunID        string           `json:"run_id"`
	SchoolYearID string           `json:"school_year_id"`
	Items        []BulkItemResult `json:"items"`
	Succeeded    int              `json:"succeeded"`
	Failed       int              `json:"failed"`
	Completed    bool             `json:"completed"`
	ArchivePath  string           `json:"archive_path,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
}

// BulkRunner generates statements for every enrollment of a school year.
type BulkRunner struct {
	lister    EnrollmentLister
	generator StatementGenerator
	archiver  Archiver
	notifier  notify.Notifier
	workers   int
	limit     rate.Limit
	logger    *zap.Logger
}

// BulkOption configures a BulkRunner.
type BulkOption func(*BulkRunner)

// WithWorkers bounds how many enrollments are processed at once.
func WithWorkers(workers int) BulkOption {
	return func(r *BulkRunner) {
		if workers > 0 {
			r.workers = workers
		}
	}
}

// WithRate throttles how many enrollments start per second. Zero disables throttling.
func WithRate(perSecond float64) BulkOption {
	return func(r *BulkRunner) {
		if perSecond <= 0 {
			r.limit = rate.Inf
			return
		}
		r.limit = rate.Limit(perSecond)
	}
}

// WithArchiver bundles every generated file of a run into one zip.
func WithArchiver(archiver Archiver) BulkOption {
	return func(r *BulkRunner) { r.archiver = archiver }
}

// WithNotifier announces finished runs.
func WithNotifier(notifier notify.Notifier) BulkOption {
	return func(r *BulkRunner) { r.notifier = notifier }
}

// WithBulkLogger sets the runner logger.
func WithBulkLogger(logger *zap.Logger) BulkOption {
	return func(r *BulkRunner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewBulkRunner constructs a runner.
func NewBulkRunner(lister EnrollmentLister, generator StatementGenerator, opts ...BulkOption) (*BulkRunner, error) {
	if lister == nil {
		return nil, errors.New("bulk runner: nil enrollment lister")
	}
	if generator == nil {
		return nil, errors.New("bulk runner: nil generator")
	}
	r := &BulkRunner{
		lister:    lister,
		generator: generator,
		workers:   1,
		limit:     rate.Inf,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run loads the school year's enrollments and generates each statement.
// Only a failure to load the enrollments is returned as an error.
func (r *BulkRunner) Run(ctx context.Context, schoolYearID string) (*BulkResult, error) {
	if schoolYearID == "" {
		return nil, errors.New("bulk runner: school_year_id required")
	}
	enrollments, err := r.lister.ListBySchoolYear(ctx, schoolYearID)
	if err != nil {
		metrics.ObserveBulkRun(metrics.ResultError, 0)
		return nil, fmt.Errorf("load enrollments: %w", err)
	}
	return r.RunEnrollments(ctx, schoolYearID, enrollments), nil
}

// RunEnrollments generates statements for the given enrollments. Results follow input order.
func (r *BulkRunner) RunEnrollments(ctx context.Context, schoolYearID string, enrollments []Enrollment) *BulkResult {
	result := &BulkResult{
		RunID:        uuid.NewString(),
		SchoolYearID: schoolYearID,
		Items:        make([]BulkItemResult, len(enrollments)),
		StartedAt:    time.Now().UTC(),
	}
	logger := r.logger.With(zap.String("run_id", result.RunID), zap.String("school_year_id", schoolYearID))
	logger.Info("bulk run started", zap.Int("enrollments", len(enrollments)), zap.Int("workers", r.workers))

	files := make([]string, len(enrollments))
	canceled := make([]bool, len(enrollments))
	limiter := rate.NewLimiter(r.limit, 1)
	group := new(errgroup.Group)
	group.SetLimit(r.workers)

	for i := range enrollments {
		enrollment := &enrollments[i]
		result.Items[i] = BulkItemResult{EnrollmentID: enrollment.ID, StudentLabel: enrollment.StudentLabel}
		if err := limiter.Wait(ctx); err != nil {
			result.Items[i].Status = BulkStatusError
			result.Items[i].Message = "canceled"
			canceled[i] = true
			continue
		}
		group.Go(func() error {
			item := &result.Items[i]
			if ctx.Err() != nil {
				item.Status = BulkStatusError
				item.Message = "canceled"
				canceled[i] = true
				return nil
			}
			file, err := r.generateOne(ctx, enrollment)
			if err != nil {
				item.Status = BulkStatusError
				item.Message = err.Error()
				logger.Warn("bulk statement failed",
					zap.String("enrollment_id", enrollment.ID),
					zap.String("student", enrollment.StudentLabel),
					zap.Error(err),
				)
				return nil
			}
			item.Status = BulkStatusSuccess
			item.FileName = file.FileName
			item.FilePath = file.FilePath
			files[i] = file.FilePath
			return nil
		})
	}
	_ = group.Wait()

	result.Completed = true
	for i, item := range result.Items {
		if canceled[i] {
			result.Completed = false
		}
		metrics.IncBulkItem(item.Status)
		if item.Status == BulkStatusSuccess {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	if r.archiver != nil && result.Succeeded > 0 {
		generated := make([]string, 0, result.Succeeded)
		for _, file := range files {
			if file != "" {
				generated = append(generated, file)
			}
		}
		archivePath, err := r.archiver.Archive(context.WithoutCancel(ctx), path.Join(safeSegment(schoolYearID), "bulk-"+result.RunID+".zip"), generated)
		if err != nil {
			logger.Warn("bulk archive failed", zap.Error(err))
		} else {
			result.ArchivePath = archivePath
		}
	}

	result.FinishedAt = time.Now().UTC()
	runResult := metrics.ResultSuccess
	switch {
	case !result.Completed || (result.Failed > 0 && result.Succeeded == 0 && len(result.Items) > 0):
		runResult = metrics.ResultError
	case result.Failed > 0:
		runResult = metrics.ResultPartial
	}
	metrics.ObserveBulkRun(runResult, result.FinishedAt.Sub(result.StartedAt))

	logger.Info("bulk run finished",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Bool("completed", result.Completed),
		zap.String("archive", result.ArchivePath),
	)

	if r.notifier != nil {
		if err := r.notifier.NotifyBulkRun(context.WithoutCancel(ctx), bulkRunMessage(result)); err != nil {
			logger.Warn("bulk notify failed", zap.Error(err))
		}
	}
	return result
}

func (r *BulkRunner) generateOne(ctx context.Context, enrollment *Enrollment) (file *StatementFile, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			file = nil
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	file, err = r.generator.Generate(ctx, enrollment)
	if err == nil && file == nil {
		err = errors.New("no statement file produced")
	}
	return file, err
}

func bulkRunMessage(result *BulkResult) notify.BulkRunMessage {
	msg := notify.BulkRunMessage{
		RunID:        result.RunID,
		SchoolYearID: result.SchoolYearID,
		Total:        len(result.Items),
		Succeeded:    result.Succeeded,
		Failed:       result.Failed,
		Completed:    result.Completed,
		ArchivePath:  result.ArchivePath,
	}
	for _, item := range result.Items {
		if item.Status == BulkStatusSuccess {
			continue
		}
		if len(msg.Failures) == maxNotifiedFailures {
			break
		}
		msg.Failures = append(msg.Failures, notify.FailedEnrollment{
			EnrollmentID: item.EnrollmentID,
			Student:      item.StudentLabel,
			Message:      item.Message,
		})
	}
	return msg
}
