package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"welth/internal/amqp"
	ports "welth/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

var _ ports.Exporter = (*Client)(nil)

type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON wins over CredentialsFile when both are set.
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client. Extra options replace service-account
// credentials, which lets tests point the client at a fake endpoint.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Activity"
	}

	if len(opts) == 0 {
		credentials, err := loadCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(credentials),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
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

// ExportEvent appends one activity row below the last non-empty row.
func (c *Client) ExportEvent(ctx context.Context, evt *amqp.TransactionEvent) (string, error) {
	if evt == nil {
		return "", errors.New("nil event")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:J", c.sheet)
	vr := &gsheet.ValueRange{Values: [][]any{ports.Row(evt)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheet, err)
	}
	if resp.Updates == nil {
		return rng, nil
	}
	return resp.Updates.UpdatedRange, nil
}

// EnsureHeader writes the column header when the first row is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:J1", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{ports.Header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	return nil
}
