package billing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiscountResult is the combined effect of a category's discounts.
type DiscountResult struct {
	Total  decimal.Decimal
	Labels []string
}

// ResolveDiscounts sums each discount's contribution against base. The total is not
// clamped to base; callers apply NetOfDiscount.
func ResolveDiscounts(base decimal.Decimal, discounts []Discount, currencySymbol string) DiscountResult {
	result := DiscountResult{Total: decimal.Zero}
	for _, discount := range discounts {
		result.Total = result.Total.Add(DiscountContribution(base, discount))
		result.Labels = append(result.Labels, DiscountLabel(discount, currencySymbol))
	}
	return result
}

// DiscountContribution returns the amount one discount takes off base.
func DiscountContribution(base decimal.Decimal, discount Discount) decimal.Decimal {
	switch discount.Kind {
	case DiscountPercentage:
		return base.Mul(discount.Amount).Div(hundred)
	default:
		return discount.Amount
	}
}

// DiscountLabel renders "20%" or "₱1500.00", followed by the description when present.
func DiscountLabel(discount Discount, currencySymbol string) string {
	var label string
	if discount.Kind == DiscountPercentage {
		label = discount.Amount.String() + "%"
	} else {
		label = currencySymbol + discount.Amount.StringFixed(2)
	}
	if discount.Description != "" {
		label += " " + discount.Description
	}
	return label
}

// NetOfDiscount returns max(billed - discount, 0).
func NetOfDiscount(billed, discount decimal.Decimal) decimal.Decimal {
	net := billed.Sub(discount)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

// DiscountsFor filters discounts down to one category.
func DiscountsFor(category CategoryID, discounts []Discount) []Discount {
	var result []Discount
	for _, discount := range discounts {
		if discount.Category == category {
			result = append(result, discount)
		}
	}
	return result
}
