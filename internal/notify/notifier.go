package notify

import "context"

// FailedEnrollment identifies one enrollment that did not get a statement.
type FailedEnrollment struct {
	EnrollmentID string `json:"enrollment_id"`
	Student      string `json:"student"`
	Message      string `json:"message"`
}

// BulkRunMessage summarizes a finished bulk statement run.
type BulkRunMessage struct {
	RunID        string             `json:"run_id"`
	SchoolYearID string             `json:"school_year_id"`
	Total        int                `json:"total"`
	Succeeded    int                `json:"succeeded"`
	Failed       int                `json:"failed"`
	Completed    bool               `json:"completed"`
	ArchivePath  string             `json:"archive_path,omitempty"`
	Failures     []FailedEnrollment `json:"failures,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	NotifyBulkRun(ctx context.Context, msg BulkRunMessage) error
}
