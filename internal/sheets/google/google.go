package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	ports "kobo/internal/sheets"

	"kobo/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID      string
	TransactionsSheet  string // base name, the transaction year is prefixed
	AlertsSheet        string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	alertsSheet       string
	now               func() time.Time

	mu      sync.Mutex
	headers map[string]bool // sheets known to carry a header row
}

var _ ports.Mirror = (*Client)(nil)

// New creates a Sheets client authenticated with a service account. Extra
// client options replace the credential lookup entirely.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	transactions := strings.TrimSpace(cfg.TransactionsSheet)
	if transactions == "" {
		transactions = "Transactions"
	}
	alerts := strings.TrimSpace(cfg.AlertsSheet)
	if alerts == "" {
		alerts = "Alerts"
	}

	if len(opts) == 0 {
		creds, err := serviceAccountJSON(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID)

	return &Client{
		svc:               svc,
		spreadsheetID:     spreadsheetID,
		transactionsSheet: transactions,
		alertsSheet:       alerts,
		now:               time.Now,
		headers:           make(map[string]bool),
	}, nil
}

// serviceAccountJSON resolves credentials from inline JSON, a key file, or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func serviceAccountJSON(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendTransaction writes one row to the transactions sheet of the
// transaction's year.
func (c *Client) AppendTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if strings.TrimSpace(tx.ID) == "" {
		return "", core.ErrEmptyID
	}
	sheet := ports.YearPrefixedName(c.transactionsSheet, tx.Date.UTC().Year())
	return c.append(ctx, sheet, ports.TransactionHeader, ports.TransactionRow(tx))
}

// AppendAlert writes one budget.exceeded row to the alerts sheet of the
// event's year.
func (c *Client) AppendAlert(ctx context.Context, e core.Event) (string, error) {
	if e.Kind != core.EventBudgetExceeded {
		return "", fmt.Errorf("unexpected event kind %q", e.Kind)
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = c.now()
		e.Timestamp = ts
	}
	sheet := ports.YearPrefixedName(c.alertsSheet, ts.UTC().Year())
	return c.append(ctx, sheet, ports.AlertHeader, ports.AlertRow(e))
}

func (c *Client) append(ctx context.Context, sheet string, header, row []any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	values := [][]any{row}
	if c.needsHeader(ctx, sheet) {
		values = [][]any{header, row}
	}

	rng := fmt.Sprintf("%s!A:H", quoteSheet(sheet))
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	c.mu.Lock()
	c.headers[sheet] = true
	c.mu.Unlock()

	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// needsHeader reports whether the sheet is still empty. The answer is
// remembered per sheet; a failed probe assumes a header already exists.
func (c *Client) needsHeader(ctx context.Context, sheet string) bool {
	c.mu.Lock()
	known := c.headers[sheet]
	c.mu.Unlock()
	if known {
		return false
	}

	rng := fmt.Sprintf("%s!A1:A1", quoteSheet(sheet))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		slog.WarnContext(ctx, "Could not probe sheet header", "sheet", sheet, "error", err)
		return false
	}
	return len(resp.Values) == 0
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
