package http

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"expensedash/internal/dataset"

	"github.com/shopspring/decimal"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		query string
		want  dataset.Filter
	}{
		{"", dataset.Filter{Category: "All", Month: "All"}},
		{"category=Groceries", dataset.Filter{Category: "Groceries", Month: "All"}},
		{"category=Food+%26+Beverage&month=2024-03", dataset.Filter{Category: "Food & Beverage", Month: "2024-03"}},
		{"category=%20%20&month=All", dataset.Filter{Category: "All", Month: "All"}},
	}
	for _, tt := range tests {
		q, err := url.ParseQuery(tt.query)
		if err != nil {
			t.Fatal(err)
		}
		if got := ParseFilter(q); got != tt.want {
			t.Errorf("ParseFilter(%q) = %+v, want %+v", tt.query, got, tt.want)
		}
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"merchant":" Tim\u0007 ","amount":4.5,"filter_month":"2024-05"}`))
	p := NewRequestBodyParser(req)
	if err := p.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if !p.IsJSON() {
		t.Error("IsJSON() = false")
	}
	in := p.ExpenseInput()
	if in.Merchant != "Tim" {
		t.Errorf("Merchant = %q, want %q", in.Merchant, "Tim")
	}
	if in.Amount != "4.5" {
		t.Errorf("Amount = %q, want %q", in.Amount, "4.5")
	}
	if f := p.Filter(); f.Month != "2024-05" || f.Category != "All" {
		t.Errorf("Filter() = %+v", f)
	}
}

func TestRequestBodyParser_Form(t *testing.T) {
	form := url.Values{"merchant": {"Costco"}, "payment_method": {"Credit Card"}}
	req := httptest.NewRequest("POST", "/", strings.NewReader(form.Encode()))
	p := NewRequestBodyParser(req)

	if p.IsJSON() {
		t.Error("IsJSON() = true for form body")
	}
	in := p.ExpenseInput()
	if in.Merchant != "Costco" || in.PaymentMethod != "Credit Card" {
		t.Errorf("ExpenseInput() = %+v", in)
	}
}

func TestRequestBodyParser_Malformed(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"merchant":`))
	if err := NewRequestBodyParser(req).Err(); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestScaleBars(t *testing.T) {
	bars := scaleBars([]bar{
		{Label: "a", Amount: dec("200")},
		{Label: "b", Amount: dec("50")},
		{Label: "c", Amount: dec("1")},
		{Label: "d", Amount: dec("0")},
	})
	want := []int{100, 25, 2, 0}
	for i, b := range bars {
		if b.Width != want[i] {
			t.Errorf("bar %s width = %d, want %d", b.Label, b.Width, want[i])
		}
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
