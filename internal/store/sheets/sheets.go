// Package sheets keeps each collection in its own sheet of a Google
// spreadsheet. Row 1 is a header of field names with the document id in
// column A.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"expensedash/internal/core"
	"expensedash/internal/store"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Options struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

var _ store.Gateway = (*Client)(nil)

// New creates a Sheets client using service account credentials.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, core.Errorf(core.KindConfiguration, "sheets.open", "missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, core.E(core.KindConfiguration, "sheets.open", err)
	}
	return NewWithService(svc, spreadsheetID), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetIDs: map[string]int64{}}
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"component", "store",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.loadSheetIDs(ctx)
	if err != nil {
		return core.E(core.KindConnection, "sheets.ping", err)
	}
	return nil
}

func (c *Client) Close() error { return nil }

// loadSheetIDs refreshes the title to sheet id map.
func (c *Client) loadSheetIDs(ctx context.Context) (map[string]int64, error) {
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	ids := make(map[string]int64, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s.Properties != nil {
			ids[s.Properties.Title] = s.Properties.SheetId
		}
	}
	c.mu.Lock()
	c.sheetIDs = ids
	c.mu.Unlock()
	return ids, nil
}

func (c *Client) sheetID(ctx context.Context, title string) (int64, bool, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[title]
	c.mu.Unlock()
	if ok {
		return id, true, nil
	}
	ids, err := c.loadSheetIDs(ctx)
	if err != nil {
		return 0, false, err
	}
	id, ok = ids[title]
	return id, ok, nil
}

// ensureSheet creates the collection sheet with a default header when absent.
func (c *Client) ensureSheet(ctx context.Context, title string) error {
	if _, ok, err := c.sheetID(ctx, title); err != nil || ok {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	header := make([]any, 0, len(defaultHeader))
	for _, h := range defaultHeader {
		header = append(header, h)
	}
	rng := fmt.Sprintf("%s!A1", title)
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{header}}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	_, err := c.loadSheetIDs(ctx)
	return err
}

func (c *Client) readAll(ctx context.Context, title string) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:ZZ", title)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func (c *Client) FetchAll(ctx context.Context, collection string) ([]core.RawRecord, error) {
	if _, ok, err := c.sheetID(ctx, collection); err != nil {
		return nil, core.E(core.KindConnection, "sheets.fetch_all", err)
	} else if !ok {
		return []core.RawRecord{}, nil
	}
	values, err := c.readAll(ctx, collection)
	if err != nil {
		return nil, core.E(core.KindConnection, "sheets.fetch_all", err)
	}
	return rowsToRecords(values), nil
}

func (c *Client) Insert(ctx context.Context, collection string, doc core.Document) (string, error) {
	if err := c.ensureSheet(ctx, collection); err != nil {
		return "", core.E(core.KindWrite, "sheets.insert", err)
	}
	values, err := c.readAll(ctx, collection)
	if err != nil {
		return "", core.E(core.KindWrite, "sheets.insert", err)
	}
	var header []string
	if len(values) > 0 {
		header = toStrings(values[0])
	}
	id := uuid.NewString()
	newHeader, row, err := buildRow(header, id, doc)
	if err != nil {
		return "", core.E(core.KindWrite, "sheets.insert", err)
	}
	if len(newHeader) != len(header) {
		headerRow := make([]any, len(newHeader))
		for i, h := range newHeader {
			headerRow[i] = h
		}
		rng := fmt.Sprintf("%s!A1", collection)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{headerRow}}).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return "", core.E(core.KindWrite, "sheets.insert", fmt.Errorf("extend header: %w", err))
		}
	}

	rng := fmt.Sprintf("%s!A1", collection)
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", core.E(core.KindWrite, "sheets.insert", fmt.Errorf("append to %s: %w", collection, err))
	}
	return id, nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) (bool, error) {
	sheetID, ok, err := c.sheetID(ctx, collection)
	if err != nil {
		return false, core.E(core.KindWrite, "sheets.delete", err)
	}
	if !ok {
		return false, nil
	}
	rng := fmt.Sprintf("%s!A:A", collection)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return false, core.E(core.KindWrite, "sheets.delete", fmt.Errorf("read %s: %w", rng, err))
	}
	idx := rowIndex(resp.Values, id)
	if idx < 0 {
		return false, nil
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(idx),
			EndIndex:   int64(idx + 1),
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, core.E(core.KindWrite, "sheets.delete", fmt.Errorf("delete row %d: %w", idx+1, err))
	}
	return true, nil
}
