// Package dataset turns raw stored documents into a normalized snapshot and
// derives every filtered view and aggregate from it without touching a store.
package dataset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"expensedash/internal/core"

	"github.com/shopspring/decimal"
)

// Snapshot is the normalized in-memory table built from one full fetch.
type Snapshot struct {
	Collection string
	Rows       []core.Expense // newest first
	Dropped    int
	Warnings   []core.DataQualityWarning
	LoadedAt   time.Time
}

// Len reports the number of usable rows.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rows)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts raw records into a snapshot. Records whose date cannot be
// parsed are dropped and counted; amounts that cannot be read are coerced to
// zero. A missing category is backfilled with core.Uncategorized.
func Normalize(collection string, raw []core.RawRecord) *Snapshot {
	s := &Snapshot{
		Collection: collection,
		Rows:       make([]core.Expense, 0, len(raw)),
		LoadedAt:   time.Now().UTC(),
	}
	for _, rec := range raw {
		e, warnings, ok := normalizeRecord(rec)
		s.Warnings = append(s.Warnings, warnings...)
		if !ok {
			s.Dropped++
			continue
		}
		s.Rows = append(s.Rows, e)
	}
	sort.SliceStable(s.Rows, func(i, j int) bool {
		return s.Rows[i].Date.After(s.Rows[j].Date)
	})
	return s
}

func normalizeRecord(rec core.RawRecord) (core.Expense, []core.DataQualityWarning, bool) {
	var warnings []core.DataQualityWarning
	f := rec.Fields

	date, err := parseDate(f[core.FieldDate])
	if err != nil {
		return core.Expense{}, []core.DataQualityWarning{{
			RecordID: rec.ID,
			Field:    core.FieldDate,
			Reason:   err.Error(),
			Dropped:  true,
		}}, false
	}

	amount, ok := core.CoerceAmount(f[core.FieldAmount])
	if !ok || amount.IsNegative() {
		warnings = append(warnings, core.DataQualityWarning{
			RecordID: rec.ID,
			Field:    core.FieldAmount,
			Reason:   fmt.Sprintf("unusable amount %v", f[core.FieldAmount]),
		})
		amount = decimal.Zero
	}

	category := core.Category(stringField(f, core.FieldCategory))
	if category == "" {
		category = core.Uncategorized
		warnings = append(warnings, core.DataQualityWarning{
			RecordID: rec.ID,
			Field:    core.FieldCategory,
			Reason:   "missing category",
		})
	}

	method := core.PaymentMethod(stringField(f, core.FieldPaymentMethod))
	if method == "" {
		method = core.OtherMethod
	}
	currency := stringField(f, core.FieldCurrency)
	if currency == "" {
		currency = core.DefaultCurrency
	}
	userID := stringField(f, core.FieldUserID)
	if userID == "" {
		userID = core.DefaultUserID
	}

	return core.Expense{
		ID:            rec.ID,
		UserID:        userID,
		Date:          date,
		Merchant:      stringField(f, core.FieldMerchant),
		Category:      category,
		Amount:        amount,
		Currency:      currency,
		PaymentMethod: method,
		Items:         stringsField(f[core.FieldItems]),
		ReceiptImage:  stringField(f, core.FieldReceiptImage),
		Notes:         stringField(f, core.FieldNotes),
	}, warnings, true
}

func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("missing date")
	case time.Time:
		if d.IsZero() {
			return time.Time{}, fmt.Errorf("zero date")
		}
		return d.UTC(), nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable date %q", d)
	case float64:
		return unixDate(int64(d))
	case int64:
		return unixDate(d)
	case int:
		return unixDate(int64(d))
	case json.Number:
		n, err := d.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("unparseable date %q", d.String())
		}
		return unixDate(n)
	default:
		return time.Time{}, fmt.Errorf("unsupported date type %T", v)
	}
}

// Numeric dates at or above this are Unix milliseconds. As seconds the
// value would already be past the year 5000.
const millisThreshold = 100_000_000_000

var (
	minUnixDate = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	maxUnixDate = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

// unixDate reads n as Unix seconds, or milliseconds when it is large enough,
// and rejects anything outside 1970 to 9999.
func unixDate(n int64) (time.Time, error) {
	var t time.Time
	if n >= millisThreshold {
		t = time.UnixMilli(n).UTC()
	} else {
		t = time.Unix(n, 0).UTC()
	}
	if t.Before(minUnixDate) || t.After(maxUnixDate) {
		return time.Time{}, fmt.Errorf("date %d out of range", n)
	}
	return t, nil
}

func stringField(f core.Document, key string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func stringsField(v any) []string {
	out := []string{}
	switch items := v.(type) {
	case []string:
		out = append(out, items...)
	case []any:
		for _, it := range items {
			if it != nil {
				out = append(out, fmt.Sprint(it))
			}
		}
	}
	return out
}
