package core

import "github.com/shopspring/decimal"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category Category
	Amount   decimal.Decimal
	Count    int
}

// MonthAmount is the spend of a single calendar month bucket ("YYYY-MM").
type MonthAmount struct {
	Month  string
	Amount decimal.Decimal
}

// Summary holds the headline aggregates of a filtered set.
type Summary struct {
	Total   decimal.Decimal
	Count   int
	Average decimal.Decimal
}
