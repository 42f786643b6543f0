package interfaces

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"school-soa/internal/billing/application"
	billing "school-soa/internal/billing/domain"
)

const defaultCurrencyCode = "PHP"

// PDFRenderer renders statements with BuildStatementPDF.
type PDFRenderer struct {
	CurrencyCode string
}

// Render implements application.Renderer.
func (r PDFRenderer) Render(enrollment *application.Enrollment, stmt billing.Statement) ([]byte, error) {
	return buildStatementPDF(enrollment, stmt, r.CurrencyCode)
}

// BuildStatementPDF renders the statement of account as a landscape A4 PDF.
func BuildStatementPDF(enrollment *application.Enrollment, stmt billing.Statement) ([]byte, error) {
	return buildStatementPDF(enrollment, stmt, defaultCurrencyCode)
}

func buildStatementPDF(enrollment *application.Enrollment, stmt billing.Statement, currency string) ([]byte, error) {
	if enrollment == nil {
		return nil, fmt.Errorf("statement pdf: nil enrollment")
	}
	if currency == "" {
		currency = defaultCurrencyCode
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string {
		return tr(strings.ReplaceAll(s, "₱", currency+" "))
	}
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, "Statement of Account")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, text(fmt.Sprintf("Student: %s", enrollment.StudentLabel)))
	pdf.Ln(5)
	if enrollment.StudentNo != "" {
		pdf.Cell(0, 5, text(fmt.Sprintf("Student No.: %s", enrollment.StudentNo)))
		pdf.Ln(5)
	}
	if level := strings.TrimSpace(enrollment.YearLevel + " " + enrollment.ClassArm); level != "" {
		pdf.Cell(0, 5, text(fmt.Sprintf("Level: %s", level)))
		pdf.Ln(5)
	}
	pdf.Cell(0, 5, text(fmt.Sprintf("School Year: %s", enrollment.SchoolYear)))
	pdf.Ln(5)
	pdf.Cell(0, 5, fmt.Sprintf("As of: %s", stmt.AsOf.Format("January 2, 2006")))
	pdf.Ln(8)

	// Billing summary
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 6, "Billing Summary")
	pdf.Ln(7)
	summaryWidths := []float64{40, 60, 28, 50, 28, 25, 28}
	summaryHeaders := []string{"Category", "Items", "Billed", "Discount", "Net", "Paid", "Remaining"}
	pdf.SetFont("Arial", "B", 9)
	for i, header := range summaryHeaders {
		pdf.CellFormat(summaryWidths[i], 6, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, summary := range stmt.Summaries {
		discount := formatAmount(summary.DiscountAmount)
		if len(summary.DiscountDescriptions) > 0 {
			discount += " (" + strings.Join(summary.DiscountDescriptions, ", ") + ")"
		}
		paid := formatAmount(summary.PaidAmount)
		if summary.DownPayment.IsPositive() {
			paid += " +DP"
		}
		cells := []string{
			string(summary.Category),
			strings.Join(summary.ItemDescriptions, ", "),
			formatAmount(summary.BilledAmount),
			discount,
			formatAmount(summary.TotalAfterDiscount),
			paid,
			formatAmount(summary.Remaining),
		}
		for i, cell := range cells {
			align := "R"
			if i < 2 || i == 3 {
				align = "L"
			}
			pdf.CellFormat(summaryWidths[i], 6, fitText(pdf, text, cell, summaryWidths[i]), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 9)
	totals := []string{"Total", "", formatAmount(stmt.TotalBilled), formatAmount(stmt.TotalDiscount), "", formatAmount(stmt.TotalPaid), formatAmount(stmt.TotalRemaining)}
	for i, cell := range totals {
		pdf.CellFormat(summaryWidths[i], 6, cell, "1", 0, "R", false, 0, "")
	}
	pdf.Ln(10)

	// Monthly schedule
	if len(stmt.Schedule) > 0 {
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(0, 6, "Monthly Schedule")
		pdf.Ln(7)
		const labelWidth, kindWidth, monthWidth = 30.0, 14.0, 23.3
		pdf.SetFont("Arial", "B", 8)
		pdf.CellFormat(labelWidth, 6, "Category", "1", 0, "C", false, 0, "")
		pdf.CellFormat(kindWidth, 6, "", "1", 0, "C", false, 0, "")
		for idx, label := range billing.MonthLabels {
			highlight := idx == stmt.CurrentMonthIndex
			if highlight {
				pdf.SetFillColor(255, 242, 204)
			}
			pdf.CellFormat(monthWidth, 6, label, "1", 0, "C", highlight, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
		for _, row := range stmt.Schedule {
			lines := []struct {
				kind  string
				value func(billing.MonthStatus) decimal.Decimal
			}{
				{"Due", func(m billing.MonthStatus) decimal.Decimal { return m.EffectiveDue }},
				{"Paid", func(m billing.MonthStatus) decimal.Decimal { return m.Paid }},
				{"Balance", func(m billing.MonthStatus) decimal.Decimal { return m.Balance }},
			}
			for i, line := range lines {
				category, border := "", "LR"
				if i == 0 {
					category = string(row.Category)
				}
				if i == len(lines)-1 {
					border = "LRB"
				}
				pdf.CellFormat(labelWidth, 5, fitText(pdf, text, category, labelWidth), border, 0, "L", false, 0, "")
				pdf.CellFormat(kindWidth, 5, line.kind, "1", 0, "L", false, 0, "")
				for idx, month := range row.Months {
					highlight := idx == stmt.CurrentMonthIndex
					if highlight {
						pdf.SetFillColor(255, 242, 204)
					}
					pdf.CellFormat(monthWidth, 5, formatAmount(line.value(month)), "1", 0, "R", highlight, 0, "")
				}
				pdf.Ln(-1)
			}
		}
		pdf.Ln(4)
	}

	for _, issue := range stmt.Issues {
		pdf.SetFont("Arial", "I", 8)
		pdf.Cell(0, 5, text(fmt.Sprintf("%s: schedule unavailable (%s)", issue.Category, issue.Reason)))
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Amount due as of %s: %s %s",
		billing.MonthLabels[stmt.CurrentMonthIndex], currency, formatAmount(stmt.DueAsOfCurrentMonth)))
	pdf.Ln(7)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStatementXLSX renders the statement with "summary" and "schedule" sheets.
func BuildStatementXLSX(enrollment *application.Enrollment, stmt billing.Statement) ([]byte, error) {
	if enrollment == nil {
		return nil, fmt.Errorf("statement xlsx: nil enrollment")
	}
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	scheduleSheet := "schedule"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(scheduleSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Statement of Account")
	_ = f.SetCellValue(summarySheet, "A3", "Student")
	_ = f.SetCellValue(summarySheet, "B3", enrollment.StudentLabel)
	_ = f.SetCellValue(summarySheet, "A4", "Student No.")
	_ = f.SetCellValue(summarySheet, "B4", enrollment.StudentNo)
	_ = f.SetCellValue(summarySheet, "A5", "School Year")
	_ = f.SetCellValue(summarySheet, "B5", enrollment.SchoolYear)
	_ = f.SetCellValue(summarySheet, "A6", "As of")
	_ = f.SetCellValue(summarySheet, "B6", stmt.AsOf.Format("2006-01-02"))

	headers := []string{"Category", "Items", "Billed", "Discount", "Discount Details", "Net", "Paid", "Down Payment", "Remaining"}
	const headerRow = 8
	for i, header := range headers {
		_ = f.SetCellValue(summarySheet, cellName(i+1, headerRow), header)
	}
	row := headerRow + 1
	for _, summary := range stmt.Summaries {
		values := []any{
			string(summary.Category),
			strings.Join(summary.ItemDescriptions, ", "),
			summary.BilledAmount.InexactFloat64(),
			summary.DiscountAmount.InexactFloat64(),
			strings.Join(summary.DiscountDescriptions, ", "),
			summary.TotalAfterDiscount.InexactFloat64(),
			summary.PaidAmount.InexactFloat64(),
			summary.DownPayment.InexactFloat64(),
			summary.Remaining.InexactFloat64(),
		}
		for i, value := range values {
			_ = f.SetCellValue(summarySheet, cellName(i+1, row), value)
		}
		row++
	}
	_ = f.SetCellValue(summarySheet, cellName(1, row), "Total")
	_ = f.SetCellValue(summarySheet, cellName(3, row), stmt.TotalBilled.InexactFloat64())
	_ = f.SetCellValue(summarySheet, cellName(4, row), stmt.TotalDiscount.InexactFloat64())
	_ = f.SetCellValue(summarySheet, cellName(7, row), stmt.TotalPaid.InexactFloat64())
	_ = f.SetCellValue(summarySheet, cellName(9, row), stmt.TotalRemaining.InexactFloat64())
	row += 2
	_ = f.SetCellValue(summarySheet, cellName(1, row), "Due as of "+billing.MonthLabels[stmt.CurrentMonthIndex])
	_ = f.SetCellValue(summarySheet, cellName(3, row), stmt.DueAsOfCurrentMonth.InexactFloat64())

	_ = f.SetCellValue(scheduleSheet, "A1", "Category")
	_ = f.SetCellValue(scheduleSheet, "B1", "Line")
	for idx, label := range billing.MonthLabels {
		_ = f.SetCellValue(scheduleSheet, cellName(idx+3, 1), label)
	}
	row = 2
	for _, schedule := range stmt.Schedule {
		for _, line := range []string{"Due", "Paid", "Balance"} {
			_ = f.SetCellValue(scheduleSheet, cellName(1, row), string(schedule.Category))
			_ = f.SetCellValue(scheduleSheet, cellName(2, row), line)
			for idx, month := range schedule.Months {
				value := month.EffectiveDue
				switch line {
				case "Paid":
					value = month.Paid
				case "Balance":
					value = month.Balance
				}
				_ = f.SetCellValue(scheduleSheet, cellName(idx+3, row), value.InexactFloat64())
			}
			row++
		}
	}
	if style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFF2CC"}, Pattern: 1},
	}); err == nil {
		col := stmt.CurrentMonthIndex + 3
		_ = f.SetCellStyle(scheduleSheet, cellName(col, 1), cellName(col, max(row-1, 1)), style)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "A1"
	}
	return name
}

// formatAmount renders 2 decimal places with thousands separators.
func formatAmount(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	return sign + b.String() + "." + frac
}

// fitText truncates value so the encoded text fits the cell width.
func fitText(pdf *gofpdf.Fpdf, encode func(string) string, value string, width float64) string {
	limit := width - 2
	if encoded := encode(value); pdf.GetStringWidth(encoded) <= limit {
		return encoded
	}
	runes := []rune(value)
	for len(runes) > 0 && pdf.GetStringWidth(encode(string(runes)+"...")) > limit {
		runes = runes[:len(runes)-1]
	}
	return encode(string(runes) + "...")
}
