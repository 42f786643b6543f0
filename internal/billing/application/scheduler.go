package application

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BulkTrigger starts a bulk run for one school year.
type BulkTrigger interface {
	Run(ctx context.Context, schoolYearID string) (*BulkResult, error)
}

// Scheduler triggers bulk statement runs once a day.
type Scheduler struct {
	runner      BulkTrigger
	schoolYears []string
	dailyAt     string
	logger      *zap.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(runner BulkTrigger, schedule ScheduleConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:      runner,
		schoolYears: schedule.SchoolYears,
		dailyAt:     schedule.DailyAt,
		logger:      logger,
	}
}

// Enabled reports whether a valid daily time and at least one school year are set.
func (s *Scheduler) Enabled() bool {
	if s == nil || s.runner == nil || len(s.schoolYears) == 0 {
		return false
	}
	_, _, err := parseDailyAt(s.dailyAt)
	return err == nil
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func (s *Scheduler) runOnce(ctx context.Context) {
	for _, schoolYearID := range s.schoolYears {
		if schoolYearID == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		result, err := s.runner.Run(ctx, schoolYearID)
		if err != nil {
			s.logger.Error("scheduled bulk run failed", zap.String("school_year_id", schoolYearID), zap.Error(err))
			continue
		}
		s.logger.Info("scheduled bulk run done",
			zap.String("school_year_id", schoolYearID),
			zap.String("run_id", result.RunID),
			zap.Int("failed", result.Failed),
		)
	}
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
