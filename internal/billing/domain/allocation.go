package billing

import (
	"github.com/shopspring/decimal"
)

// MonthStatus is one cell of the monthly schedule.
type MonthStatus struct {
	// Due is the installment amount scheduled for the month.
	Due decimal.Decimal `json:"due"`
	// EffectiveDue is Due plus any balance carried from the previous month.
	EffectiveDue decimal.Decimal `json:"effective_due"`
	Paid         decimal.Decimal `json:"paid"`
	Balance      decimal.Decimal `json:"balance"`
}

// AllocationPolicy controls how unpaid months interact.
type AllocationPolicy struct {
	// CarryOverUnpaidBalance adds each month's unpaid balance to the next month's due.
	CarryOverUnpaidBalance bool `json:"carry_over_unpaid_balance" yaml:"carry_over_unpaid_balance"`
}

// DefaultAllocationPolicy carries unpaid balances forward.
func DefaultAllocationPolicy() AllocationPolicy {
	return AllocationPolicy{CarryOverUnpaidBalance: true}
}

// Allocation is the result of spreading payments over the academic calendar.
type Allocation struct {
	Months    [AcademicMonths]MonthStatus `json:"months"`
	PerMonth  decimal.Decimal             `json:"per_month"`
	Unapplied decimal.Decimal             `json:"unapplied"`
	CarryOver bool                        `json:"carry_over"`
}

// AllocatePayments lays totalDue over plan.Months consecutive academic months starting at
// plan.StartMonth and applies payments, oldest first, to each month in calendar order.
// Months past March are dropped. Payments left after the last due month stay unapplied.
func AllocatePayments(totalDue decimal.Decimal, plan InstallmentPlan, payments []decimal.Decimal, policy AllocationPolicy) (Allocation, error) {
	if err := plan.Validate(); err != nil {
		return Allocation{}, err
	}
	if totalDue.IsNegative() {
		return Allocation{}, ErrNegativeAmount
	}
	start, _ := ScheduleIndex(plan.StartMonth)
	perMonth := totalDue.Div(decimal.NewFromInt(int64(plan.Months)))

	var due [AcademicMonths]decimal.Decimal
	for i := range due {
		due[i] = decimal.Zero
	}
	for i := start; i < start+plan.Months && i < AcademicMonths; i++ {
		due[i] = perMonth
	}

	queue := make([]decimal.Decimal, 0, len(payments))
	for _, amount := range payments {
		if amount.IsPositive() {
			queue = append(queue, amount)
		}
	}
	head := 0

	result := Allocation{PerMonth: perMonth, CarryOver: policy.CarryOverUnpaidBalance}
	carried := decimal.Zero
	for i := 0; i < AcademicMonths; i++ {
		effective := due[i]
		if policy.CarryOverUnpaidBalance {
			effective = effective.Add(carried)
		}
		remaining := effective
		paid := decimal.Zero
		for remaining.IsPositive() && head < len(queue) {
			take := decimal.Min(remaining, queue[head])
			paid = paid.Add(take)
			remaining = remaining.Sub(take)
			queue[head] = queue[head].Sub(take)
			if !queue[head].IsPositive() {
				head++
			}
		}
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		if policy.CarryOverUnpaidBalance {
			carried = remaining
		}
		result.Months[i] = MonthStatus{
			Due:          due[i],
			EffectiveDue: effective,
			Paid:         paid,
			Balance:      remaining.Round(2),
		}
	}

	result.Unapplied = decimal.Zero
	for ; head < len(queue); head++ {
		result.Unapplied = result.Unapplied.Add(queue[head])
	}
	return result, nil
}

// OutstandingThrough returns what is owed up to and including schedule index idx.
// With carry-over each balance already includes earlier arrears, so only idx is read.
func (a Allocation) OutstandingThrough(idx int) decimal.Decimal {
	if idx < 0 {
		return decimal.Zero
	}
	if idx >= AcademicMonths {
		idx = AcademicMonths - 1
	}
	if a.CarryOver {
		return a.Months[idx].Balance
	}
	total := decimal.Zero
	for i := 0; i <= idx; i++ {
		total = total.Add(a.Months[i].Balance)
	}
	return total
}
