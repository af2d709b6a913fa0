// Package export renders a filtered expense view as an Excel workbook.
package export

import (
	"fmt"
	"io"

	"expensedash/internal/core"
	"expensedash/internal/dataset"

	"github.com/xuri/excelize/v2"
)

const (
	SheetExpenses   = "Expenses"
	SheetCategories = "By Category"
	SheetMonthly    = "Monthly"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var expenseHeader = []any{"Date", "Merchant", "Category", "Amount", "Currency", "Payment Method", "Notes", "ID"}

// WriteXLSX writes rows and their aggregates as a three-sheet workbook.
func WriteXLSX(w io.Writer, rows []core.Expense) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetExpenses); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetExpenses, "A1", &expenseHeader); err != nil {
		return err
	}
	for i, r := range rows {
		amount, _ := r.Amount.Float64()
		row := []any{
			r.Date.UTC().Format("2006-01-02"),
			r.Merchant,
			string(r.Category),
			amount,
			r.Currency,
			string(r.PaymentMethod),
			r.Notes,
			r.ID,
		}
		if err := f.SetSheetRow(SheetExpenses, cell("A", i+2), &row); err != nil {
			return err
		}
	}
	summary := dataset.Summarize(rows)
	total, _ := summary.Total.Float64()
	footer := []any{"Total", "", "", total}
	if err := f.SetSheetRow(SheetExpenses, cell("A", len(rows)+3), &footer); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetCategories); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetCategories, "A1", &[]any{"Category", "Amount", "Count"}); err != nil {
		return err
	}
	for i, c := range dataset.GroupByCategory(rows) {
		amount, _ := c.Amount.Float64()
		if err := f.SetSheetRow(SheetCategories, cell("A", i+2), &[]any{string(c.Category), amount, c.Count}); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SheetMonthly); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetMonthly, "A1", &[]any{"Month", "Amount"}); err != nil {
		return err
	}
	for i, m := range dataset.Monthly(rows) {
		amount, _ := m.Amount.Float64()
		if err := f.SetSheetRow(SheetMonthly, cell("A", i+2), &[]any{m.Month, amount}); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(SheetExpenses, "B", "B", 28); err != nil {
		return err
	}
	return f.Write(w)
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
