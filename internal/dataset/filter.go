package dataset

import (
	"sort"

	"expensedash/internal/core"
)

// All is the filter value that matches every row.
const All = "All"

// Filter is the pair of selections applied to a snapshot.
type Filter struct {
	Category string `json:"category"`
	Month    string `json:"month"` // "YYYY-MM"
}

// IsAll reports whether the filter is the identity.
func (f Filter) IsAll() bool {
	return isAll(f.Category) && isAll(f.Month)
}

func isAll(v string) bool {
	return v == "" || v == All
}

// FilterOptions lists the selectable values for each filter, "All" first.
type FilterOptions struct {
	Categories []string `json:"categories"`
	Months     []string `json:"months"`
}

// Options derives the filter choices present in rows, each sorted ascending.
func Options(rows []core.Expense) FilterOptions {
	cats := map[string]struct{}{}
	months := map[string]struct{}{}
	for _, r := range rows {
		cats[string(r.Category)] = struct{}{}
		months[r.Month()] = struct{}{}
	}
	return FilterOptions{
		Categories: withAll(cats),
		Months:     withAll(months),
	}
}

func withAll(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return append([]string{All}, out...)
}

// Contains reports whether v is one of opts.
func Contains(opts []string, v string) bool {
	for _, o := range opts {
		if o == v {
			return true
		}
	}
	return false
}

// Sanitize replaces selections that are not offered by opts with "All".
func (f Filter) Sanitize(opts FilterOptions) Filter {
	if isAll(f.Category) || !Contains(opts.Categories, f.Category) {
		f.Category = All
	}
	if isAll(f.Month) || !Contains(opts.Months, f.Month) {
		f.Month = All
	}
	return f
}

// Apply returns the rows matching f, preserving order. It never mutates rows.
func Apply(rows []core.Expense, f Filter) []core.Expense {
	return ByMonth(ByCategory(rows, f.Category), f.Month)
}

// ByCategory keeps rows of the given category; "All" keeps everything.
func ByCategory(rows []core.Expense, category string) []core.Expense {
	if isAll(category) {
		return clone(rows)
	}
	return keep(rows, func(e core.Expense) bool { return string(e.Category) == category })
}

// ByMonth keeps rows whose date falls in month ("YYYY-MM"); "All" keeps everything.
func ByMonth(rows []core.Expense, month string) []core.Expense {
	if isAll(month) {
		return clone(rows)
	}
	return keep(rows, func(e core.Expense) bool { return e.Month() == month })
}

func keep(rows []core.Expense, pred func(core.Expense) bool) []core.Expense {
	out := make([]core.Expense, 0, len(rows))
	for _, r := range rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

func clone(rows []core.Expense) []core.Expense {
	return append(make([]core.Expense, 0, len(rows)), rows...)
}
