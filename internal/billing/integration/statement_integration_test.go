package integration_test

import (
	"archive/zip"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	billingapp "school-soa/internal/billing/application"
	billing "school-soa/internal/billing/domain"
	billingrepo "school-soa/internal/billing/infrastructure/postgres"
	"school-soa/internal/billing/infrastructure/storage"
	billinginterfaces "school-soa/internal/billing/interfaces"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestStatement_GenerateAndBulk(t *testing.T) {
	db := openDB(t)
	defer db.Close()

	if err := applyMigrations(db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	ctx := context.Background()
	cleanupTables(ctx, db)
	if err := seedSchoolYear(ctx, db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	enrollments := billingrepo.NewEnrollmentRepository(db)
	files := billingrepo.NewStatementFileRepository(db)

	enrollment, err := enrollments.Get(ctx, "it-enr-1")
	if err != nil {
		t.Fatalf("get enrollment: %v", err)
	}
	if enrollment.StudentLabel != "Abad, Ana M." || len(enrollment.Items) != 2 || len(enrollment.Payments) != 3 {
		t.Fatalf("unexpected enrollment: %+v", enrollment)
	}
	if _, err := enrollments.Get(ctx, "it-missing"); !errors.Is(err, billing.ErrEnrollmentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	clock := fixedClock{now: time.Date(2024, time.October, 15, 8, 0, 0, 0, time.UTC)}
	svc, err := billingapp.NewStatementService(enrollments, billing.NewAssembler(billing.DefaultPolicy()),
		billingapp.WithRenderer(failingRenderer{failID: "it-enr-2"}),
		billingapp.WithFileStore(store),
		billingapp.WithFileRecorder(files),
		billingapp.WithClock(clock),
	)
	if err != nil {
		t.Fatalf("statement service: %v", err)
	}

	_, stmt, err := svc.Compute(ctx, "it-enr-1")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if stmt.DueAsOfCurrentMonth.String() != "700" {
		t.Fatalf("expected due 700, got %s", stmt.DueAsOfCurrentMonth)
	}
	if stmt.TotalRemaining.String() != "4200" {
		t.Fatalf("expected remaining 4200, got %s", stmt.TotalRemaining)
	}

	_, broken, err := svc.Compute(ctx, "it-enr-2")
	if err != nil {
		t.Fatalf("compute broken plan: %v", err)
	}
	if len(broken.Issues) != 1 || len(broken.Schedule) != 0 || len(broken.Summaries) != 1 {
		t.Fatalf("expected plan issue instead of schedule, got %+v", broken)
	}

	runner, err := billingapp.NewBulkRunner(enrollments, svc, billingapp.WithWorkers(2), billingapp.WithArchiver(store))
	if err != nil {
		t.Fatalf("bulk runner: %v", err)
	}
	result, err := runner.Run(ctx, "it-sy")
	if err != nil {
		t.Fatalf("bulk run: %v", err)
	}
	if len(result.Items) != 2 || result.Items[0].EnrollmentID != "it-enr-1" || result.Items[1].EnrollmentID != "it-enr-2" {
		t.Fatalf("unexpected bulk order: %+v", result.Items)
	}
	if result.Succeeded != 1 || result.Failed != 1 || !result.Completed {
		t.Fatalf("unexpected bulk counts: %+v", result)
	}
	if result.Items[1].Status != billingapp.BulkStatusError {
		t.Fatalf("expected second enrollment to fail rendering, got %+v", result.Items[1])
	}

	archive, err := zip.OpenReader(result.ArchivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer archive.Close()
	if len(archive.File) != 1 || filepath.Base(archive.File[0].Name) != "SOA_Abad_Ana_M_2024-0001_20241015.pdf" {
		t.Fatalf("unexpected archive entries: %d", len(archive.File))
	}

	history, err := files.ListByEnrollment(ctx, "it-enr-1")
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(history) != 1 || history[0].FileName != "SOA_Abad_Ana_M_2024-0001_20241015.pdf" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func seedSchoolYear(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`INSERT INTO school_years (id, name) VALUES ('it-sy', '2024-2025')`,
		`INSERT INTO students (id, student_no, last_name, first_name, middle_name) VALUES
			('it-stu-1', '2024-0001', 'Abad', 'Ana', 'Marquez'),
			('it-stu-2', '2024-0002', 'Bautista', 'Ben', '')`,
		`INSERT INTO enrollments (id, school_year_id, student_id, year_level) VALUES
			('it-enr-1', 'it-sy', 'it-stu-1', 'Grade 4'),
			('it-enr-2', 'it-sy', 'it-stu-2', 'Grade 4')`,
		`INSERT INTO billing_items (id, category, description, unit_amount, installment_months, installment_start_month, installment_end_month) VALUES
			('it-reg', 'REGISTRATION', 'Registration', 1500, 1, 6, 6),
			('it-tuition', 'TUITION', 'Tuition fee', 5000, 10, 6, 3),
			('it-bad', 'TUITION', 'Tuition fee (summer)', 5000, 10, 4, 3)`,
		`INSERT INTO enrollment_billings (id, enrollment_id, billing_item_id, quantity) VALUES
			('it-eb-1', 'it-enr-1', 'it-reg', 1),
			('it-eb-2', 'it-enr-1', 'it-tuition', 1),
			('it-eb-3', 'it-enr-2', 'it-bad', 1)`,
		`INSERT INTO enrollment_discounts (id, enrollment_id, category, kind, amount, description) VALUES
			('it-d-1', 'it-enr-1', 'TUITION', 'percentage', 20, 'Sibling')`,
		`INSERT INTO payments (id, enrollment_billing_id, amount, paid_on, remark) VALUES
			('it-p-1', 'it-eb-2', 500, '2024-06-10', 'partial_payment'),
			('it-p-2', 'it-eb-2', 300, '2024-08-10', 'partial_payment'),
			('it-p-3', 'it-eb-2', 500, '2024-07-10', 'partial_payment')`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// failingRenderer fails for one enrollment and renders the rest.
type failingRenderer struct {
	billinginterfaces.PDFRenderer
	failID string
}

func (r failingRenderer) Render(enrollment *billingapp.Enrollment, stmt billing.Statement) ([]byte, error) {
	if enrollment.ID == r.failID {
		return nil, errors.New("printer offline")
	}
	return r.PDFRenderer.Render(enrollment, stmt)
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func applyMigrations(db *sql.DB) error {
	content, err := os.ReadFile(filepath.Join(projectRoot(), "migrations", "001_billing.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(content))
	return err
}

func cleanupTables(ctx context.Context, db *sql.DB) {
	for _, table := range []string{
		"statement_files", "payments", "enrollment_discounts", "enrollment_billings",
		"billing_items", "enrollments", "students", "school_years",
	} {
		column := "id"
		if table == "statement_files" {
			column = "enrollment_id"
		}
		_, _ = db.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+column+" LIKE 'it-%'")
	}
}

func projectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(filepath.Join(dir, "..", "..", ".."))
}
