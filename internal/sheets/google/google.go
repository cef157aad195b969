package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	ports "fintrack/internal/sheets"
)

const (
	rowCacheSize = 10000
	rowCacheTTL  = 10 * time.Minute
)

// Client exports transactions to a single sheet, one row per transaction,
// keyed by the ID in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger

	// rows maps transaction IDs to 1-based row numbers. Rows are cleared,
	// never deleted, so a cached number stays valid.
	rows *cache.LRUCache[int]
	// mu serialises lookups and writes so two exports of the same ID cannot
	// both append.
	mu sync.Mutex
}

// Ensure interface conformance
var (
	_ ports.TransactionExporter = (*Client)(nil)
	_ ports.TransactionRemover  = (*Client)(nil)
)

// Options configures NewClient. Exactly one of CredentialsJSON and
// CredentialsFile is needed.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Logger          *log.Logger
}

// NewClient creates a Sheets client authenticated with a service account.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := loadCredentials(opts.CredentialsJSON, opts.CredentialsFile)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName, opts.Logger), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = "Transactions"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
		rows:          cache.NewLRUCache[int](rowCacheSize, rowCacheTTL),
	}
}

func loadCredentials(inline, file string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials")
	}
}

// RowCache exposes the row index cache for periodic cleanup.
func (c *Client) RowCache() cache.Cleaner {
	return c.rows
}

// EnsureHeader writes the header row when A1 is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A1:%s1", c.sheetName, lastColumn())
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", c.sheetName, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]any{toAny(ports.Header)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header of %s: %w", c.sheetName, err)
	}
	c.logger.InfoContext(ctx, "Wrote export header", "sheet", c.sheetName)
	return nil
}

// Export writes tx to its existing row or appends a new one.
func (c *Client) Export(ctx context.Context, tx core.Transaction) (string, error) {
	if strings.TrimSpace(tx.ID) == "" {
		return "", errors.New("transaction without id")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	values := &gsheet.ValueRange{Values: [][]any{toAny(ports.Row(tx))}}

	row, found, err := c.findRow(ctx, tx.ID)
	if err != nil {
		return "", err
	}
	if found {
		rng := c.rowRange(row)
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, values).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("update %s: %w", rng, err)
		}
		c.logger.DebugContext(ctx, "Updated exported row", log.FieldTxID, tx.ID, "range", rng)
		return rng, nil
	}

	rng := fmt.Sprintf("%s!A:%s", c.sheetName, lastColumn())
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, values).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
		if n, ok := rowFromRange(ref); ok {
			c.rows.Set(tx.ID, n)
		}
	}
	c.logger.DebugContext(ctx, "Appended exported row", log.FieldTxID, tx.ID, "range", ref)
	return ref, nil
}

// Remove clears the row holding id. A missing row is not an error.
func (c *Client) Remove(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	row, found, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	rng := c.rowRange(row)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	c.rows.Delete(id)
	c.logger.DebugContext(ctx, "Cleared exported row", log.FieldTxID, id, "range", rng)
	return nil
}

// findRow returns the row number for id. A cache miss re-reads column A and
// refreshes the cache.
func (c *Client) findRow(ctx context.Context, id string) (int, bool, error) {
	if row, ok := c.rows.Get(id); ok {
		return row, true, nil
	}
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("read %s: %w", rng, err)
	}
	index := indexIDs(resp.Values)
	for k, row := range index {
		c.rows.Set(k, row)
	}
	row, ok := index[id]
	return row, ok, nil
}

func (c *Client) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", c.sheetName, row, lastColumn(), row)
}

// indexIDs maps the non-empty cells of a single-column read to their row
// numbers. The header cell is skipped.
func indexIDs(values [][]any) map[string]int {
	out := make(map[string]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if v == "" || (i == 0 && v == ports.Header[0]) {
			continue
		}
		if _, dup := out[v]; dup {
			continue
		}
		out[v] = i + 1
	}
	return out
}

// rowFromRange extracts the starting row of an A1 range such as
// "Transactions!A12:I12".
func rowFromRange(rng string) (int, bool) {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[i+1:]
	}
	if i := strings.Index(rng, ":"); i >= 0 {
		rng = rng[:i]
	}
	rng = strings.TrimLeft(rng, "ABCDEFGHIJKLMNOPQRSTUVWXYZ$")
	n := 0
	for _, r := range rng {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, n > 0
}

func lastColumn() string {
	return string(rune('A' + len(ports.Header) - 1))
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
