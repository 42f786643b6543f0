package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryID is the billing category label used to match items, discounts and payments.
// Matching is exact; upstream catalog data owns consistent naming.
type CategoryID string

// DiscountKind selects how a discount amount is interpreted.
type DiscountKind string

const (
	DiscountFixed      DiscountKind = "fixed"
	DiscountPercentage DiscountKind = "percentage"
)

// PaymentRemark tags a payment receipt.
type PaymentRemark string

const (
	RemarkPartialPayment PaymentRemark = "partial_payment"
	RemarkFullPayment    PaymentRemark = "full_payment"
	RemarkDownPayment    PaymentRemark = "down_payment"
)

// InstallmentPlan spreads a category's net amount over academic months.
type InstallmentPlan struct {
	Months     int        `json:"months"`
	StartMonth time.Month `json:"start_month"`
	EndMonth   time.Month `json:"end_month"`
}

// BilledItem is a catalog charge assigned to an enrollment.
type BilledItem struct {
	Category    CategoryID       `json:"category"`
	UnitAmount  decimal.Decimal  `json:"unit_amount"`
	Quantity    int              `json:"quantity"`
	Description string           `json:"description,omitempty"`
	Installment *InstallmentPlan `json:"installment,omitempty"`
}

// BaseAmount returns unit amount times quantity.
func (i BilledItem) BaseAmount() decimal.Decimal {
	return i.UnitAmount.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Discount reduces every billed item of its category for one enrollment.
type Discount struct {
	Category    CategoryID      `json:"category"`
	Kind        DiscountKind    `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

// Payment is a recorded receipt against one billed item.
type Payment struct {
	Category CategoryID      `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Date     time.Time       `json:"date"`
	Remark   PaymentRemark   `json:"remark"`
}

// IsDownPayment reports whether the payment reduces the installment base.
func (p Payment) IsDownPayment() bool {
	return p.Remark == RemarkDownPayment
}
