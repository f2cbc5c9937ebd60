// Package google mirrors transactions into a Google Sheet, one row per
// transaction keyed by the ID in column A.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"moneytracker/internal/core"
	"moneytracker/internal/log"
	ports "moneytracker/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Ensure interface conformance
var _ ports.Exporter = (*Client)(nil)

type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// valuesAPI is the slice of the Sheets API the client needs.
type valuesAPI interface {
	get(ctx context.Context, rng string) ([][]any, error)
	update(ctx context.Context, rng string, rows [][]any) error
	append(ctx context.Context, rng string, rows [][]any) error
	deleteRow(ctx context.Context, sheet string, row int) error
}

type Client struct {
	api    valuesAPI
	sheet  string
	logger *log.Logger

	// mu serializes read-modify-write cycles on the sheet.
	mu sync.Mutex
}

// New creates a client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Transactions"
	}
	return newClient(&serviceAPI{svc: svc, spreadsheetID: cfg.SpreadsheetID}, sheet, logger), nil
}

func newClient(api valuesAPI, sheet string, logger *log.Logger) *Client {
	return &Client{api: api, sheet: sheet, logger: logger}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Inline JSON wins over the file; GOOGLE_APPLICATION_CREDENTIALS is the last resort.
func newSheetsService(ctx context.Context, cfg Config, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		logger.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		logger.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Upsert rewrites the row holding tx.ID, or appends one. An empty sheet
// gets the header row first.
func (c *Client) Upsert(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.api.get(ctx, c.sheet+"!A:A")
	if err != nil {
		return fmt.Errorf("read ids from %s: %w", c.sheet, err)
	}
	if len(values) == 0 {
		if err := c.api.update(ctx, rowRange(c.sheet, 1), [][]any{header}); err != nil {
			return fmt.Errorf("write header to %s: %w", c.sheet, err)
		}
	}

	row := [][]any{toRow(tx)}
	if n := findRow(values, tx.ID); n > 0 {
		if err := c.api.update(ctx, rowRange(c.sheet, n), row); err != nil {
			return fmt.Errorf("update row %d in %s: %w", n, c.sheet, err)
		}
		c.logger.InfoContext(ctx, "Row updated", log.FieldTransactionID, tx.ID, "row", n)
		return nil
	}

	if err := c.api.append(ctx, fmt.Sprintf("%s!A:%s", c.sheet, lastColumn), row); err != nil {
		return fmt.Errorf("append to %s: %w", c.sheet, err)
	}
	c.logger.InfoContext(ctx, "Row appended", log.FieldTransactionID, tx.ID)
	return nil
}

// Delete removes the row holding id, if any.
func (c *Client) Delete(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := c.api.get(ctx, c.sheet+"!A:A")
	if err != nil {
		return fmt.Errorf("read ids from %s: %w", c.sheet, err)
	}
	n := findRow(values, id)
	if n < 0 {
		c.logger.DebugContext(ctx, "Row already absent", log.FieldTransactionID, id)
		return nil
	}
	if err := c.api.deleteRow(ctx, c.sheet, n); err != nil {
		return fmt.Errorf("delete row %d in %s: %w", n, c.sheet, err)
	}
	c.logger.InfoContext(ctx, "Row deleted", log.FieldTransactionID, id, "row", n)
	return nil
}

func (c *Client) ListIDs(ctx context.Context) ([]int64, error) {
	values, err := c.api.get(ctx, c.sheet+"!A:A")
	if err != nil {
		return nil, fmt.Errorf("read ids from %s: %w", c.sheet, err)
	}
	return idsOf(values), nil
}

// serviceAPI implements valuesAPI on the real Sheets service.
type serviceAPI struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

func (s *serviceAPI) get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceAPI) update(ctx context.Context, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

func (s *serviceAPI) append(ctx context.Context, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func (s *serviceAPI) deleteRow(ctx context.Context, sheet string, row int) error {
	sheetID, err := s.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(row - 1),
					EndIndex:        int64(row),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	return err
}

// sheetID resolves a sheet title to its numeric ID, caching the answer.
func (s *serviceAPI) sheetID(ctx context.Context, title string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.sheetIDs[title]; ok {
		return id, nil
	}
	resp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	if s.sheetIDs == nil {
		s.sheetIDs = map[string]int64{}
	}
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			s.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	id, ok := s.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found", title)
	}
	return id, nil
}
