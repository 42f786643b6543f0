package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type triggerStub struct {
	years []string
	fail  string
}

func (s *triggerStub) Run(_ context.Context, schoolYearID string) (*BulkResult, error) {
	s.years = append(s.years, schoolYearID)
	if schoolYearID == s.fail {
		return nil, errors.New("load failed")
	}
	return &BulkResult{RunID: "run-" + schoolYearID, SchoolYearID: schoolYearID}, nil
}

func TestSchedulerShouldRun(t *testing.T) {
	s := NewScheduler(&triggerStub{}, ScheduleConfig{DailyAt: "02:15", SchoolYears: []string{"sy"}}, nil)
	assert.True(t, s.shouldRun(time.Date(2024, 9, 1, 2, 15, 30, 0, time.UTC)))
	assert.False(t, s.shouldRun(time.Date(2024, 9, 1, 2, 16, 0, 0, time.UTC)))
}

func TestSchedulerEnabled(t *testing.T) {
	assert.True(t, NewScheduler(&triggerStub{}, ScheduleConfig{DailyAt: "02:15", SchoolYears: []string{"sy"}}, nil).Enabled())
	assert.False(t, NewScheduler(&triggerStub{}, ScheduleConfig{DailyAt: "", SchoolYears: []string{"sy"}}, nil).Enabled())
	assert.False(t, NewScheduler(&triggerStub{}, ScheduleConfig{DailyAt: "02:15"}, nil).Enabled())
	assert.False(t, NewScheduler(nil, ScheduleConfig{DailyAt: "02:15", SchoolYears: []string{"sy"}}, nil).Enabled())
}

func TestSchedulerRunOnceContinuesAfterError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	trigger := &triggerStub{fail: "sy-2023"}
	s := NewScheduler(trigger, ScheduleConfig{DailyAt: "02:15", SchoolYears: []string{"sy-2023", "", "sy-2024"}}, zap.New(core))

	s.runOnce(context.Background())

	assert.Equal(t, []string{"sy-2023", "sy-2024"}, trigger.years)
	assert.Equal(t, 1, logs.FilterMessage("scheduled bulk run failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("scheduled bulk run done").Len())
}
