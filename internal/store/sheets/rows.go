package sheets

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"expensedash/internal/core"
)

const idColumn = "id"

var defaultHeader = []string{
	idColumn,
	core.FieldUserID,
	core.FieldDate,
	core.FieldMerchant,
	core.FieldCategory,
	core.FieldAmount,
	core.FieldCurrency,
	core.FieldPaymentMethod,
	core.FieldItems,
	core.FieldReceiptImage,
	core.FieldNotes,
}

// rowsToRecords converts a values matrix whose first row is the header.
// Rows without an id are skipped.
func rowsToRecords(values [][]any) []core.RawRecord {
	out := []core.RawRecord{}
	if len(values) == 0 {
		return out
	}
	header := toStrings(values[0])
	colID := indexOf(header, idColumn)
	if colID == -1 {
		return out
	}
	for _, raw := range values[1:] {
		row := toStrings(raw)
		id := safeGet(row, colID)
		if id == "" {
			continue
		}
		doc := core.Document{}
		for i, name := range header {
			if i == colID || name == "" {
				continue
			}
			cell := safeGet(row, i)
			if cell == "" {
				continue
			}
			doc[name] = decodeCell(cell)
		}
		out = append(out, core.RawRecord{ID: id, Fields: doc})
	}
	return out
}

// buildRow lays doc out along header, extending the header with any field it
// does not have yet. An empty header starts from the default layout.
func buildRow(header []string, id string, doc core.Document) ([]string, []any, error) {
	if len(header) == 0 {
		header = append([]string(nil), defaultHeader...)
	} else {
		header = append([]string(nil), header...)
	}
	if indexOf(header, idColumn) == -1 {
		return nil, nil, fmt.Errorf("sheet header has no %q column", idColumn)
	}
	for _, k := range sortedKeys(doc) {
		if indexOf(header, k) == -1 {
			header = append(header, k)
		}
	}
	row := make([]any, len(header))
	for i, name := range header {
		if strings.EqualFold(name, idColumn) {
			row[i] = id
			continue
		}
		cell, err := encodeCell(doc[name])
		if err != nil {
			return nil, nil, fmt.Errorf("field %s: %w", name, err)
		}
		row[i] = cell
	}
	return header, row, nil
}

func encodeCell(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []string, []any, map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return fmt.Sprint(t), nil
	}
}

func decodeCell(cell string) any {
	if strings.HasPrefix(cell, "[") {
		var items []any
		if err := json.Unmarshal([]byte(cell), &items); err == nil {
			return items
		}
	}
	return cell
}

// rowIndex returns the zero-based row holding id in column A, skipping the header.
func rowIndex(values [][]any, id string) int {
	for i, row := range values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i
		}
	}
	return -1
}

func sortedKeys(doc core.Document) []string {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
