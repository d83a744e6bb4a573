package sheets

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/dripsheet/dripsheet/internal/auth"
	"github.com/dripsheet/dripsheet/internal/model"
)

// Gateway reads the contact table and writes campaign state back.
type Gateway interface {
	// ReadAll returns the header row and every data row of the tab.
	ReadAll(ctx context.Context) (model.Table, error)
	// WriteCells writes all updates in a single request and returns the
	// number of cells the API reports as updated.
	WriteCells(ctx context.Context, updates []model.CellUpdate) (int, error)
}

const (
	readRetries    = 4
	maxReadBackoff = 30 * time.Second
)

// Client implements Gateway on the Google Sheets API.
type Client struct {
	service          *sheets.Service
	spreadsheetID    string
	tab              string
	valueInputOption string
	// sleep is swapped out in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Sheets gateway for one tab of a spreadsheet.
func NewClient(ctx context.Context, spreadsheetID, tab, valueInputOption string, opts ...option.ClientOption) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet ID is required")
	}
	if tab == "" {
		tab = "Sheet1"
	}
	if valueInputOption == "" {
		valueInputOption = "USER_ENTERED"
	}

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: failed to create service: %w", err)
	}
	return &Client{
		service:          srv,
		spreadsheetID:    spreadsheetID,
		tab:              tab,
		valueInputOption: strings.ToUpper(valueInputOption),
		sleep:            sleepContext,
	}, nil
}

// NewClientWithHTTP creates a gateway authenticated by client.
func NewClientWithHTTP(ctx context.Context, client *http.Client, spreadsheetID, tab, valueInputOption string) (*Client, error) {
	return NewClient(ctx, spreadsheetID, tab, valueInputOption, option.WithHTTPClient(client))
}

// ReadAll reads the whole tab. Numbers come back unformatted so a count
// shown as "1.00" still reads as 1; dates come back as displayed.
// Rate-limited reads are retried with exponential backoff; writes never are.
func (c *Client) ReadAll(ctx context.Context) (model.Table, error) {
	var resp *sheets.ValueRange
	var err error
	for attempt := 0; attempt < readRetries; attempt++ {
		resp, err = c.service.Spreadsheets.Values.Get(c.spreadsheetID, QuoteTab(c.tab)).
			ValueRenderOption("UNFORMATTED_VALUE").
			DateTimeRenderOption("FORMATTED_STRING").
			Context(ctx).
			Do()
		if err == nil || !isRateLimited(err) {
			break
		}
		backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
		if backoff > maxReadBackoff {
			backoff = maxReadBackoff
		}
		if serr := c.sleep(ctx, backoff); serr != nil {
			return model.Table{}, serr
		}
	}
	if err != nil {
		return model.Table{}, classify("failed to read sheet", err)
	}

	return toTable(resp.Values), nil
}

// WriteCells writes updates with one values:batchUpdate call so that a
// row's date and count change together or not at all.
func (c *Client) WriteCells(ctx context.Context, updates []model.CellUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	data := make([]*sheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, &sheets.ValueRange{
			Range:  QuoteTab(c.tab) + "!" + u.Range,
			Values: [][]interface{}{{u.Value}},
		})
	}

	resp, err := c.service.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: c.valueInputOption,
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return 0, classify("failed to write cells", err)
	}
	return int(resp.TotalUpdatedCells), nil
}

// QuoteTab quotes a tab name for use in an A1 range.
func QuoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

func toTable(values [][]interface{}) model.Table {
	if len(values) == 0 {
		return model.Table{}
	}
	toStrings := func(row []interface{}) []string {
		out := make([]string, len(row))
		for i, v := range row {
			switch v := v.(type) {
			case nil:
			case float64:
				out[i] = strconv.FormatFloat(v, 'f', -1, 64)
			default:
				out[i] = fmt.Sprint(v)
			}
		}
		return out
	}

	t := model.Table{Headers: toStrings(values[0])}
	for _, row := range values[1:] {
		t.Rows = append(t.Rows, toStrings(row))
	}
	return t
}

func isRateLimited(err error) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests
}

// classify marks credential problems as auth failures so the caller can
// abort the run.
func classify(msg string, err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("sheets: %s: %w: %v", msg, auth.ErrAuthFailure, err)
	}
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		return fmt.Errorf("sheets: %s: %w: %v", msg, auth.ErrAuthFailure, err)
	}
	return fmt.Errorf("sheets: %s: %w", msg, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
