package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validExpense() Expense {
	return Expense{
		UserID:        DefaultUserID,
		Date:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Merchant:      "Tim Hortons",
		Category:      FoodBeverage,
		Amount:        decimal.RequireFromString("4.50"),
		Currency:      DefaultCurrency,
		PaymentMethod: Debit,
	}
}

func TestExpenseValidate(t *testing.T) {
	if err := validExpense().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Expense)
		want   error
	}{
		{"zero date", func(e *Expense) { e.Date = time.Time{} }, ErrMissingDate},
		{"empty merchant", func(e *Expense) { e.Merchant = "" }, ErrEmptyMerchant},
		{"blank merchant", func(e *Expense) { e.Merchant = "   " }, ErrEmptyMerchant},
		{"zero amount", func(e *Expense) { e.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(e *Expense) { e.Amount = decimal.NewFromInt(-3) }, ErrInvalidAmount},
		{"uncategorized not insertable", func(e *Expense) { e.Category = Uncategorized }, ErrInvalidCategory},
		{"unknown payment method", func(e *Expense) { e.PaymentMethod = "Cheque" }, ErrInvalidPaymentMethod},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validExpense()
			tc.mutate(&e)
			if err := e.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestExpenseDocument(t *testing.T) {
	e := validExpense()
	e.Merchant = "  Tim Hortons "
	doc := e.Document()

	if doc[FieldMerchant] != "Tim Hortons" {
		t.Fatalf("merchant not trimmed: %q", doc[FieldMerchant])
	}
	if doc[FieldAmount] != "4.50" {
		t.Fatalf("unexpected amount: %v", doc[FieldAmount])
	}
	if doc[FieldDate] != "2025-01-01T00:00:00Z" {
		t.Fatalf("unexpected date: %v", doc[FieldDate])
	}
	items, ok := doc[FieldItems].([]string)
	if !ok || len(items) != 0 {
		t.Fatalf("items should be an empty list, got %#v", doc[FieldItems])
	}
	if _, ok := doc["id"]; ok {
		t.Fatalf("id must not be part of the stored document")
	}
}

func TestMonthKey(t *testing.T) {
	d := time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)
	if got := MonthKey(d); got != "2024-12" {
		t.Fatalf("expected 2024-12, got %s", got)
	}
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("boom")
	err := E(KindWrite, "insert", base)

	if !IsKind(err, KindWrite) {
		t.Fatalf("expected write kind")
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause")
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Fatalf("foreign errors should be internal, got %s", got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("nil error should have no kind, got %s", got)
	}
	if err.Error() != "insert: boom" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
