package http

import (
	"html/template"
	"time"

	"expensedash/internal/core"
	"expensedash/internal/dashboard"
	"expensedash/internal/dataset"

	"github.com/shopspring/decimal"
)

var templateFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return core.FormatAmount(d, core.DefaultCurrency) },
	"date":  func(t time.Time) string { return t.UTC().Format("2006-01-02") },
}

// bar is one row of a horizontal bar chart, Width in percent of the largest.
type bar struct {
	Label  string
	Amount decimal.Decimal
	Width  int
}

type pageData struct {
	View          dashboard.ViewState
	CategoryBars  []bar
	MonthBars     []bar
	Today         string
	ReceiptUpload bool
}

func (s *Server) page(view dashboard.ViewState) pageData {
	cats := make([]bar, 0, len(view.ByCategory))
	for _, c := range view.ByCategory {
		cats = append(cats, bar{Label: string(c.Category), Amount: c.Amount})
	}
	months := make([]bar, 0, len(view.Monthly))
	for _, m := range view.Monthly {
		months = append(months, bar{Label: m.Month, Amount: m.Amount})
	}
	return pageData{
		View:          view,
		CategoryBars:  scaleBars(cats),
		MonthBars:     scaleBars(months),
		Today:         time.Now().UTC().Format("2006-01-02"),
		ReceiptUpload: s.uploader != nil,
	}
}

// scaleBars sets each width relative to the largest amount, keeping
// non-zero values visible.
func scaleBars(bars []bar) []bar {
	max := decimal.Zero
	for _, b := range bars {
		if b.Amount.GreaterThan(max) {
			max = b.Amount
		}
	}
	if !max.IsPositive() {
		return bars
	}
	hundred := decimal.NewFromInt(100)
	for i := range bars {
		if !bars[i].Amount.IsPositive() {
			continue
		}
		w := int(bars[i].Amount.Mul(hundred).Div(max).Round(0).IntPart())
		if w < 2 {
			w = 2
		}
		bars[i].Width = w
	}
	return bars
}

type expenseJSON struct {
	ID            string   `json:"id"`
	Date          string   `json:"date"`
	Merchant      string   `json:"merchant"`
	Category      string   `json:"category"`
	Amount        string   `json:"amount"`
	Currency      string   `json:"currency"`
	PaymentMethod string   `json:"payment_method"`
	Items         []string `json:"items"`
	ReceiptImage  string   `json:"receipt_image,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

type amountJSON struct {
	Key    string `json:"key"`
	Amount string `json:"amount"`
	Count  int    `json:"count,omitempty"`
}

type viewJSON struct {
	Mode       string                `json:"mode"`
	Collection string                `json:"collection"`
	Filter     dataset.Filter        `json:"filter"`
	Options    dataset.FilterOptions `json:"options"`
	Total      string                `json:"total"`
	Count      int                   `json:"count"`
	Average    string                `json:"average"`
	ByCategory []amountJSON          `json:"by_category"`
	Monthly    []amountJSON          `json:"monthly"`
	Rows       []expenseJSON         `json:"rows"`
	Dropped    int                   `json:"dropped"`
	LoadedAt   time.Time             `json:"loaded_at"`
	Notice     string                `json:"notice,omitempty"`
	Error      string                `json:"error,omitempty"`
}

func toViewJSON(v dashboard.ViewState) viewJSON {
	out := viewJSON{
		Mode:       string(v.Mode),
		Collection: v.Collection,
		Filter:     v.Filter,
		Options:    v.Options,
		Total:      v.Summary.Total.StringFixed(2),
		Count:      v.Summary.Count,
		Average:    v.Summary.Average.StringFixed(2),
		ByCategory: make([]amountJSON, 0, len(v.ByCategory)),
		Monthly:    make([]amountJSON, 0, len(v.Monthly)),
		Rows:       make([]expenseJSON, 0, len(v.Rows)),
		Dropped:    v.Dropped,
		LoadedAt:   v.LoadedAt,
		Notice:     v.Notice,
		Error:      v.Error,
	}
	for _, c := range v.ByCategory {
		out.ByCategory = append(out.ByCategory, amountJSON{Key: string(c.Category), Amount: c.Amount.StringFixed(2), Count: c.Count})
	}
	for _, m := range v.Monthly {
		out.Monthly = append(out.Monthly, amountJSON{Key: m.Month, Amount: m.Amount.StringFixed(2)})
	}
	for _, e := range v.Rows {
		out.Rows = append(out.Rows, expenseJSON{
			ID:            e.ID,
			Date:          e.Date.UTC().Format("2006-01-02"),
			Merchant:      e.Merchant,
			Category:      string(e.Category),
			Amount:        e.Amount.StringFixed(2),
			Currency:      e.Currency,
			PaymentMethod: string(e.PaymentMethod),
			Items:         e.Items,
			ReceiptImage:  e.ReceiptImage,
			Notes:         e.Notes,
		})
	}
	return out
}
