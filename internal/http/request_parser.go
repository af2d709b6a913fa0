package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"expensedash/internal/dashboard"
	"expensedash/internal/dataset"
)

const maxFormBytes = 64 << 10

// ParseFilter reads the category and month selections from query or form
// values. Missing values mean "All"; unknown ones are reset by the view.
func ParseFilter(values url.Values) dataset.Filter {
	f := dataset.Filter{
		Category: sanitizeInput(values.Get("category")),
		Month:    sanitizeInput(values.Get("month")),
	}
	if f.Category == "" {
		f.Category = dataset.All
	}
	if f.Month == "" {
		f.Month = dataset.All
	}
	return f
}

// RequestBodyParser reads a JSON or form-encoded body once and serves
// field lookups from whichever was sent.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	err      error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(nil, r.Body, maxFormBytes))
	if p.err != nil {
		return p
	}
	trimmed := strings.TrimSpace(string(p.body))
	switch {
	case trimmed == "":
		p.formData = url.Values{}
	case trimmed[0] == '{':
		p.err = json.Unmarshal(p.body, &p.jsonData)
	default:
		p.formData, p.err = url.ParseQuery(trimmed)
	}
	return p
}

func (p *RequestBodyParser) Err() error { return p.err }

// Get returns the sanitized value of key.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		return sanitizeInput(stringValue(p.jsonData[key]))
	}
	return sanitizeInput(p.formData.Get(key))
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// ExpenseInput maps the parsed body onto the add-expense form.
func (p *RequestBodyParser) ExpenseInput() dashboard.ExpenseInput {
	return dashboard.ExpenseInput{
		Date:          p.Get("date"),
		Merchant:      p.Get("merchant"),
		Category:      p.Get("category"),
		Amount:        p.Get("amount"),
		PaymentMethod: p.Get("payment_method"),
		Notes:         p.Get("notes"),
		ReceiptImage:  p.Get("receipt_image"),
	}
}

// Filter reads the filter the client was viewing when it sent the body.
func (p *RequestBodyParser) Filter() dataset.Filter {
	values := url.Values{}
	values.Set("category", p.Get("filter_category"))
	values.Set("month", p.Get("filter_month"))
	return ParseFilter(values)
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
