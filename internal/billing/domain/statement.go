package billing

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CategorySummary is one row of the Billing Summary table.
type CategorySummary struct {
	Category             CategoryID      `json:"category"`
	ItemDescriptions     []string        `json:"item_descriptions"`
	BilledAmount         decimal.Decimal `json:"billed_amount"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	DiscountDescriptions []string        `json:"discount_descriptions"`
	TotalAfterDiscount   decimal.Decimal `json:"total_after_discount"`
	// PaidAmount excludes down payments; those are reported in DownPayment.
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	DownPayment decimal.Decimal `json:"down_payment"`
	Remaining   decimal.Decimal `json:"remaining"`
}

// ScheduleRow is the monthly schedule of one category with an installment plan.
type ScheduleRow struct {
	Category        CategoryID                  `json:"category"`
	InstallmentBase decimal.Decimal             `json:"installment_base"`
	PerMonth        decimal.Decimal             `json:"per_month"`
	Months          [AcademicMonths]MonthStatus `json:"months"`
	Unapplied       decimal.Decimal             `json:"unapplied"`
}

// ScheduleIssue records a category whose plan could not be scheduled.
type ScheduleIssue struct {
	Category CategoryID `json:"category"`
	Reason   string     `json:"reason"`
}

// Statement is the computed Statement of Account for one enrollment.
type Statement struct {
	AsOf                time.Time         `json:"as_of"`
	CurrentMonthIndex   int               `json:"current_month_index"`
	CarryOver           bool              `json:"carry_over"`
	Summaries           []CategorySummary `json:"summaries"`
	Schedule            []ScheduleRow     `json:"schedule"`
	Issues              []ScheduleIssue   `json:"issues,omitempty"`
	TotalBilled         decimal.Decimal   `json:"total_billed"`
	TotalDiscount       decimal.Decimal   `json:"total_discount"`
	TotalPaid           decimal.Decimal   `json:"total_paid"`
	TotalRemaining      decimal.Decimal   `json:"total_remaining"`
	DueAsOfCurrentMonth decimal.Decimal   `json:"due_as_of_current_month"`
}

// StatementInput is the snapshot of one enrollment's billing records.
type StatementInput struct {
	Items     []BilledItem
	Discounts []Discount
	Payments  []Payment
}

// Policy configures statement assembly.
type Policy struct {
	Allocation AllocationPolicy
	// DueExcludedCategories are left out of DueAsOfCurrentMonth, compared case-insensitively.
	DueExcludedCategories []CategoryID
	CurrencySymbol        string
}

// DefaultPolicy carries balances forward and excludes registration from the monthly due.
func DefaultPolicy() Policy {
	return Policy{
		Allocation:            DefaultAllocationPolicy(),
		DueExcludedCategories: []CategoryID{"REGISTRATION"},
		CurrencySymbol:        "₱",
	}
}

// Assembler builds statements. It holds no mutable state and is safe for concurrent use.
type Assembler struct {
	policy Policy
}

// NewAssembler constructs an Assembler.
func NewAssembler(policy Policy) *Assembler {
	return &Assembler{policy: policy}
}

// Policy returns the assembler's policy.
func (a *Assembler) Policy() Policy {
	return a.policy
}

// Assemble computes the statement for input as of the given day. Discounts and payments
// whose category has no billed item are ignored. A category with an unusable plan keeps
// its summary row and is reported in Issues instead of Schedule.
func (a *Assembler) Assemble(input StatementInput, asOf time.Time) Statement {
	asOfDay := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	stmt := Statement{
		AsOf:                asOfDay,
		CurrentMonthIndex:   CurrentMonthIndex(asOfDay),
		CarryOver:           a.policy.Allocation.CarryOverUnpaidBalance,
		TotalBilled:         decimal.Zero,
		TotalDiscount:       decimal.Zero,
		TotalPaid:           decimal.Zero,
		TotalRemaining:      decimal.Zero,
		DueAsOfCurrentMonth: decimal.Zero,
	}

	payments := sortedPayments(input.Payments)
	for _, totals := range AggregateCategories(input.Items) {
		discount := ResolveDiscounts(totals.BilledAmount, DiscountsFor(totals.Category, input.Discounts), a.policy.CurrencySymbol)
		net := NetOfDiscount(totals.BilledAmount, discount.Total)

		paid := decimal.Zero
		downPayment := decimal.Zero
		var installments []decimal.Decimal
		for _, payment := range payments {
			if payment.Category != totals.Category {
				continue
			}
			if payment.IsDownPayment() {
				downPayment = downPayment.Add(payment.Amount)
				continue
			}
			paid = paid.Add(payment.Amount)
			installments = append(installments, payment.Amount)
		}

		remaining := net.Sub(paid)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		stmt.Summaries = append(stmt.Summaries, CategorySummary{
			Category:             totals.Category,
			ItemDescriptions:     totals.Descriptions,
			BilledAmount:         totals.BilledAmount,
			DiscountAmount:       discount.Total,
			DiscountDescriptions: discount.Labels,
			TotalAfterDiscount:   net,
			PaidAmount:           paid,
			DownPayment:          downPayment,
			Remaining:            remaining,
		})
		stmt.TotalBilled = stmt.TotalBilled.Add(totals.BilledAmount)
		stmt.TotalDiscount = stmt.TotalDiscount.Add(discount.Total)
		stmt.TotalPaid = stmt.TotalPaid.Add(paid)
		stmt.TotalRemaining = stmt.TotalRemaining.Add(remaining)

		if totals.Plan == nil {
			continue
		}
		base := NetOfDiscount(net, downPayment)
		allocation, err := AllocatePayments(base, *totals.Plan, installments, a.policy.Allocation)
		if err != nil {
			stmt.Issues = append(stmt.Issues, ScheduleIssue{Category: totals.Category, Reason: err.Error()})
			continue
		}
		stmt.Schedule = append(stmt.Schedule, ScheduleRow{
			Category:        totals.Category,
			InstallmentBase: base,
			PerMonth:        allocation.PerMonth,
			Months:          allocation.Months,
			Unapplied:       allocation.Unapplied,
		})
		if !a.excludedFromDue(totals.Category) {
			stmt.DueAsOfCurrentMonth = stmt.DueAsOfCurrentMonth.Add(allocation.OutstandingThrough(stmt.CurrentMonthIndex))
		}
	}
	return stmt
}

func (a *Assembler) excludedFromDue(category CategoryID) bool {
	for _, excluded := range a.policy.DueExcludedCategories {
		if strings.EqualFold(string(excluded), string(category)) {
			return true
		}
	}
	return false
}

func sortedPayments(payments []Payment) []Payment {
	sorted := make([]Payment, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted
}

// MonthTotals sums every schedule row for one month index.
func (s Statement) MonthTotals(idx int) MonthStatus {
	totals := MonthStatus{Due: decimal.Zero, EffectiveDue: decimal.Zero, Paid: decimal.Zero, Balance: decimal.Zero}
	if idx < 0 || idx >= AcademicMonths {
		return totals
	}
	for _, row := range s.Schedule {
		month := row.Months[idx]
		totals.Due = totals.Due.Add(month.Due)
		totals.EffectiveDue = totals.EffectiveDue.Add(month.EffectiveDue)
		totals.Paid = totals.Paid.Add(month.Paid)
		totals.Balance = totals.Balance.Add(month.Balance)
	}
	return totals
}
