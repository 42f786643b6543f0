package billing

import (
	"fmt"
	"time"
)

// AcademicMonths is the length of the academic calendar, June through March.
const AcademicMonths = 10

// MonthLabels are the renderer labels for schedule indices 0..9.
var MonthLabels = [AcademicMonths]string{
	"June", "July", "August", "September", "October",
	"November", "December", "January", "February", "March",
}

// ScheduleIndex maps a calendar month onto the academic calendar.
// April and May fall outside the calendar and report false.
func ScheduleIndex(month time.Month) (int, bool) {
	switch {
	case month >= time.June && month <= time.December:
		return int(month - time.June), true
	case month >= time.January && month <= time.March:
		return int(month-time.January) + 7, true
	default:
		return 0, false
	}
}

// CurrentMonthIndex returns the schedule index for the given day. April clamps to
// March (9) and May clamps to June (0), the nearest calendar boundary.
func CurrentMonthIndex(asOf time.Time) int {
	month := asOf.Month()
	if idx, ok := ScheduleIndex(month); ok {
		return idx
	}
	if month == time.April {
		return AcademicMonths - 1
	}
	return 0
}

// Validate checks the plan against the academic calendar.
func (p InstallmentPlan) Validate() error {
	if p.Months <= 0 {
		return fmt.Errorf("%w: months must be positive, got %d", ErrInvalidPlan, p.Months)
	}
	if p.StartMonth < time.January || p.StartMonth > time.December {
		return fmt.Errorf("%w: start month %d outside 1..12", ErrInvalidPlan, int(p.StartMonth))
	}
	if p.EndMonth != 0 && (p.EndMonth < time.January || p.EndMonth > time.December) {
		return fmt.Errorf("%w: end month %d outside 1..12", ErrInvalidPlan, int(p.EndMonth))
	}
	if _, ok := ScheduleIndex(p.StartMonth); !ok {
		return fmt.Errorf("%w: start month %s outside June..March", ErrInvalidPlan, p.StartMonth)
	}
	return nil
}
