package dataset

import (
	"sort"
	"time"

	"expensedash/internal/core"

	"github.com/shopspring/decimal"
)

// Total sums the amounts of rows.
func Total(rows []core.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Amount)
	}
	return total
}

// Average is the mean amount per row, zero for an empty set.
func Average(rows []core.Expense) decimal.Decimal {
	if len(rows) == 0 {
		return decimal.Zero
	}
	return Total(rows).Div(decimal.NewFromInt(int64(len(rows)))).Round(2)
}

// Summarize computes the headline aggregates of rows.
func Summarize(rows []core.Expense) core.Summary {
	return core.Summary{
		Total:   Total(rows),
		Count:   len(rows),
		Average: Average(rows),
	}
}

// GroupByCategory totals rows per category, largest total first. Ties are
// ordered by category name.
func GroupByCategory(rows []core.Expense) []core.CategoryAmount {
	byCat := map[core.Category]*core.CategoryAmount{}
	for _, r := range rows {
		ca, ok := byCat[r.Category]
		if !ok {
			ca = &core.CategoryAmount{Category: r.Category, Amount: decimal.Zero}
			byCat[r.Category] = ca
		}
		ca.Amount = ca.Amount.Add(r.Amount)
		ca.Count++
	}
	list := make([]core.CategoryAmount, 0, len(byCat))
	for _, ca := range byCat {
		list = append(list, *ca)
	}
	sort.Slice(list, func(i, j int) bool {
		if c := list[i].Amount.Cmp(list[j].Amount); c != 0 {
			return c > 0
		}
		return list[i].Category < list[j].Category
	})
	return list
}

// Monthly resamples rows into calendar-month buckets in chronological order.
// Months between the first and last bucket with no rows are reported as zero.
func Monthly(rows []core.Expense) []core.MonthAmount {
	if len(rows) == 0 {
		return []core.MonthAmount{}
	}
	sums := map[string]decimal.Decimal{}
	first, last := monthStart(rows[0].Date), monthStart(rows[0].Date)
	for _, r := range rows {
		m := monthStart(r.Date)
		if m.Before(first) {
			first = m
		}
		if m.After(last) {
			last = m
		}
		key := core.MonthKey(m)
		sums[key] = sums[key].Add(r.Amount)
	}
	if monthsBetween(first, last) >= MaxMonthlyBuckets {
		return populatedMonths(sums)
	}
	var out []core.MonthAmount
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		key := core.MonthKey(m)
		amt, ok := sums[key]
		if !ok {
			amt = decimal.Zero
		}
		out = append(out, core.MonthAmount{Month: key, Amount: amt})
	}
	return out
}

// MaxMonthlyBuckets bounds the gap-filled series. Wider spans report only
// the months that have rows.
const MaxMonthlyBuckets = 1200

func monthsBetween(first, last time.Time) int {
	return (last.Year()-first.Year())*12 + int(last.Month()) - int(first.Month())
}

func populatedMonths(sums map[string]decimal.Decimal) []core.MonthAmount {
	out := make([]core.MonthAmount, 0, len(sums))
	for key, amt := range sums {
		out = append(out, core.MonthAmount{Month: key, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Recent returns up to n rows, newest first.
func Recent(rows []core.Expense, n int) []core.Expense {
	out := clone(rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
