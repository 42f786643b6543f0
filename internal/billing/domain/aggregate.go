package billing

import "github.com/shopspring/decimal"

// DescriptionPlaceholder stands in for billed items without a description.
const DescriptionPlaceholder = "—"

// CategoryTotals is the billed side of one category.
type CategoryTotals struct {
	Category     CategoryID
	BilledAmount decimal.Decimal
	Descriptions []string
	// Plan is the first installment plan found among the category's items.
	Plan *InstallmentPlan
}

// AggregateCategories groups billed items by category. The result keeps the order in
// which categories first appear so repeated calls render identically.
func AggregateCategories(items []BilledItem) []CategoryTotals {
	var result []CategoryTotals
	index := make(map[CategoryID]int, len(items))
	for _, item := range items {
		pos, ok := index[item.Category]
		if !ok {
			pos = len(result)
			index[item.Category] = pos
			result = append(result, CategoryTotals{Category: item.Category, BilledAmount: decimal.Zero})
		}
		totals := &result[pos]
		totals.BilledAmount = totals.BilledAmount.Add(item.BaseAmount())
		description := item.Description
		if description == "" {
			description = DescriptionPlaceholder
		}
		totals.Descriptions = append(totals.Descriptions, description)
		if totals.Plan == nil && item.Installment != nil {
			plan := *item.Installment
			totals.Plan = &plan
		}
	}
	return result
}
