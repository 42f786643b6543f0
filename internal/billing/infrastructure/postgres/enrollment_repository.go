package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"school-soa/internal/billing/application"
	billing "school-soa/internal/billing/domain"
)

const enrollmentColumns = `
SELECT e.id, e.school_year_id, sy.name, e.student_id, s.student_no,
	s.last_name, s.first_name, s.middle_name, e.year_level, e.class_arm
FROM enrollments e
JOIN students s ON s.id = e.student_id
JOIN school_years sy ON sy.id = e.school_year_id`

// EnrollmentRepository loads enrollments with their billing records.
type EnrollmentRepository struct {
	db *sql.DB
}

// NewEnrollmentRepository constructs a repository.
func NewEnrollmentRepository(db *sql.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Get returns one enrollment, or billing.ErrEnrollmentNotFound.
func (r *EnrollmentRepository) Get(ctx context.Context, enrollmentID string) (*application.Enrollment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("enrollment repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, enrollmentColumns+`
WHERE e.id = $1
LIMIT 1`, enrollmentID)
	enrollment, err := scanEnrollment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, billing.ErrEnrollmentNotFound
		}
		return nil, err
	}

	byID := map[string]*application.Enrollment{enrollment.ID: enrollment}
	if err := r.loadItems(ctx, byID, `WHERE eb.enrollment_id = $1`, enrollmentID); err != nil {
		return nil, err
	}
	if err := r.loadDiscounts(ctx, byID, `WHERE d.enrollment_id = $1`, enrollmentID); err != nil {
		return nil, err
	}
	if err := r.loadPayments(ctx, byID, `WHERE eb.enrollment_id = $1`, enrollmentID); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// ListBySchoolYear returns every enrollment of a school year ordered by student name.
func (r *EnrollmentRepository) ListBySchoolYear(ctx context.Context, schoolYearID string) ([]application.Enrollment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("enrollment repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, enrollmentColumns+`
WHERE e.school_year_id = $1
ORDER BY s.last_name ASC, s.first_name ASC, e.id ASC`, schoolYearID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*application.Enrollment
	byID := make(map[string]*application.Enrollment)
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, enrollment)
		byID[enrollment.ID] = enrollment
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}

	if err := r.loadItems(ctx, byID, schoolYearFilter("eb"), schoolYearID); err != nil {
		return nil, err
	}
	if err := r.loadDiscounts(ctx, byID, schoolYearFilter("d"), schoolYearID); err != nil {
		return nil, err
	}
	if err := r.loadPayments(ctx, byID, schoolYearFilter("eb"), schoolYearID); err != nil {
		return nil, err
	}

	result := make([]application.Enrollment, 0, len(list))
	for _, enrollment := range list {
		result = append(result, *enrollment)
	}
	return result, nil
}

func schoolYearFilter(alias string) string {
	return `JOIN enrollments e ON e.id = ` + alias + `.enrollment_id WHERE e.school_year_id = $1`
}

func (r *EnrollmentRepository) loadItems(ctx context.Context, byID map[string]*application.Enrollment, filter string, arg string) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT eb.enrollment_id, bi.category, bi.unit_amount, eb.quantity, bi.description,
	bi.installment_months, bi.installment_start_month, bi.installment_end_month
FROM enrollment_billings eb
JOIN billing_items bi ON bi.id = eb.billing_item_id
`+filter+`
ORDER BY eb.enrollment_id, eb.created_at ASC, eb.id ASC`, arg)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			enrollmentID string
			item         billing.BilledItem
			category     string
			months       sql.NullInt64
			startMonth   sql.NullInt64
			endMonth     sql.NullInt64
		)
		if err := rows.Scan(&enrollmentID, &category, &item.UnitAmount, &item.Quantity, &item.Description, &months, &startMonth, &endMonth); err != nil {
			return err
		}
		item.Category = billing.CategoryID(category)
		if months.Valid && months.Int64 > 0 {
			item.Installment = &billing.InstallmentPlan{
				Months:     int(months.Int64),
				StartMonth: time.Month(startMonth.Int64),
				EndMonth:   time.Month(endMonth.Int64),
			}
		}
		if enrollment := byID[enrollmentID]; enrollment != nil {
			enrollment.Items = append(enrollment.Items, item)
		}
	}
	return rows.Err()
}

func (r *EnrollmentRepository) loadDiscounts(ctx context.Context, byID map[string]*application.Enrollment, filter string, arg string) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT d.enrollment_id, d.category, d.kind, d.amount, d.description
FROM enrollment_discounts d
`+filter+`
ORDER BY d.enrollment_id, d.created_at ASC, d.id ASC`, arg)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			enrollmentID string
			discount     billing.Discount
			category     string
			kind         string
		)
		if err := rows.Scan(&enrollmentID, &category, &kind, &discount.Amount, &discount.Description); err != nil {
			return err
		}
		discount.Category = billing.CategoryID(category)
		discount.Kind = billing.DiscountKind(kind)
		if enrollment := byID[enrollmentID]; enrollment != nil {
			enrollment.Discounts = append(enrollment.Discounts, discount)
		}
	}
	return rows.Err()
}

func (r *EnrollmentRepository) loadPayments(ctx context.Context, byID map[string]*application.Enrollment, filter string, arg string) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT eb.enrollment_id, bi.category, p.amount, p.paid_on, p.remark
FROM payments p
JOIN enrollment_billings eb ON eb.id = p.enrollment_billing_id
JOIN billing_items bi ON bi.id = eb.billing_item_id
`+filter+`
ORDER BY eb.enrollment_id, p.paid_on ASC, p.created_at ASC, p.id ASC`, arg)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			enrollmentID string
			payment      billing.Payment
			category     string
			remark       string
			amount       decimal.Decimal
		)
		if err := rows.Scan(&enrollmentID, &category, &amount, &payment.Date, &remark); err != nil {
			return err
		}
		payment.Category = billing.CategoryID(category)
		payment.Amount = amount
		payment.Date = payment.Date.UTC()
		payment.Remark = billing.PaymentRemark(remark)
		if enrollment := byID[enrollmentID]; enrollment != nil {
			enrollment.Payments = append(enrollment.Payments, payment)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(row rowScanner) (*application.Enrollment, error) {
	var enrollment application.Enrollment
	var lastName, firstName, middleName string
	if err := row.Scan(
		&enrollment.ID,
		&enrollment.SchoolYearID,
		&enrollment.SchoolYear,
		&enrollment.StudentID,
		&enrollment.StudentNo,
		&lastName,
		&firstName,
		&middleName,
		&enrollment.YearLevel,
		&enrollment.ClassArm,
	); err != nil {
		return nil, err
	}
	enrollment.StudentLabel = StudentLabel(lastName, firstName, middleName)
	return &enrollment, nil
}

// StudentLabel formats "Last, First M.".
func StudentLabel(lastName, firstName, middleName string) string {
	lastName = strings.TrimSpace(lastName)
	name := strings.TrimSpace(firstName)
	if middle := strings.TrimSpace(middleName); middle != "" {
		initial := []rune(middle)[0]
		name = strings.TrimSpace(name + " " + string(initial) + ".")
	}
	switch {
	case lastName == "":
		return name
	case name == "":
		return lastName
	default:
		return lastName + ", " + name
	}
}
