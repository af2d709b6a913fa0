// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing user-entered amounts and coercing
// stored amount values into decimals.
package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered decimal string to a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, an optional
// currency symbol or code prefix, and performs half-up rounding to two decimal
// places. Returns ErrInvalidAmount for invalid formats, negative values or zero.
//
// Examples:
//
//	ParseAmount("12.34")   -> 12.34, nil
//	ParseAmount("12,34")   -> 12.34, nil
//	ParseAmount("$4.50")   -> 4.50, nil
//	ParseAmount("12.345")  -> 12.35, nil (half-up)
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsSymbol(r) || unicode.IsSpace(r)
	})
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// CoerceAmount converts a stored amount value into a decimal. Stores hand
// amounts back as strings, float64, json.Number or integer types depending on
// the backend.
func CoerceAmount(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return n, true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(n), ",", ".")
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case int32:
		return decimal.NewFromInt32(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		d, err := decimal.NewFromString(fmt.Sprint(n))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
}

// FormatAmount formats an amount with its currency for display purposes.
func FormatAmount(d decimal.Decimal, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	return currency + " " + d.StringFixed(2)
}
