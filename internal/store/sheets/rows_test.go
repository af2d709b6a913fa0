package sheets

import (
	"context"
	"testing"

	"expensedash/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRowDefaultHeader(t *testing.T) {
	doc := core.Expense{
		UserID:   core.DefaultUserID,
		Merchant: "Tim Hortons",
		Items:    nil,
	}.Document()

	header, row, err := buildRow(nil, "abc", doc)
	require.NoError(t, err)
	assert.Equal(t, defaultHeader, header)
	require.Len(t, row, len(header))
	assert.Equal(t, "abc", row[0])
	assert.Equal(t, "Tim Hortons", row[indexOf(header, core.FieldMerchant)])
	assert.Equal(t, "[]", row[indexOf(header, core.FieldItems)])
}

func TestBuildRowExtendsHeader(t *testing.T) {
	header, row, err := buildRow([]string{"id", "merchant"}, "x", core.Document{
		"merchant": "Costco",
		"amount":   "10.00",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "merchant", "amount"}, header)
	assert.Equal(t, []any{"x", "Costco", "10.00"}, row)
}

func TestBuildRowRequiresIDColumn(t *testing.T) {
	_, _, err := buildRow([]string{"merchant"}, "x", core.Document{})
	assert.Error(t, err)
}

func TestRowsToRecords(t *testing.T) {
	values := [][]any{
		{"id", "merchant", "amount", "items"},
		{"a1", "Tim Hortons", "4.50", "[]"},
		{"", "orphan", "1"},
		{"b2", "Costco"},
	}
	recs := rowsToRecords(values)

	require.Len(t, recs, 2)
	assert.Equal(t, "a1", recs[0].ID)
	assert.Equal(t, "4.50", recs[0].Fields["amount"])
	assert.Equal(t, []any{}, recs[0].Fields["items"])
	assert.Equal(t, "b2", recs[1].ID)
	assert.NotContains(t, recs[1].Fields, "amount")
}

func TestRowsToRecordsWithoutHeader(t *testing.T) {
	assert.Empty(t, rowsToRecords(nil))
	assert.Empty(t, rowsToRecords([][]any{{"merchant"}, {"x"}}))
}

func TestRowIndex(t *testing.T) {
	values := [][]any{{"id"}, {"a"}, {}, {"b"}}
	assert.Equal(t, 3, rowIndex(values, "b"))
	assert.Equal(t, -1, rowIndex(values, "id"))
	assert.Equal(t, -1, rowIndex(values, "zzz"))
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.True(t, core.IsKind(err, core.KindConfiguration))

	_, err = New(context.Background(), Options{SpreadsheetID: "sheet"})
	assert.True(t, core.IsKind(err, core.KindConfiguration))
	assert.Contains(t, err.Error(), "missing service account credentials")
}
