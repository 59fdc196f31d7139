// Package sheets implements the document client over the Google Sheets and Drive APIs
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	perr "tariffsync/internal/platform/errors"
	"tariffsync/internal/platform/logger"
	"tariffsync/internal/services/propagation/domain"

	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	tokenURL       = "https://oauth2.googleapis.com/token"
	defaultTimeout = 60 * time.Second
)

// Options configures the Client
type Options struct {
	// service account credentials
	Email      string
	PrivateKey string

	Timeout time.Duration

	// Endpoint overrides the API base for both services, used by tests
	Endpoint string
	// HTTPClient skips JWT auth entirely when set
	HTTPClient *http.Client
}

// Client implements domain.DocumentClient
type Client struct {
	sheets *sheets.Service
	drive  *drive.Service
	log    logger.Logger
}

var _ domain.DocumentClient = (*Client)(nil)

// New authenticates as the service account and builds both API services
func New(ctx context.Context, o Options) (*Client, error) {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	hc := o.HTTPClient
	if hc == nil {
		if o.Email == "" || o.PrivateKey == "" {
			return nil, perr.Configurationf("google service account email and private key are required")
		}
		conf := &jwt.Config{
			Email:      o.Email,
			PrivateKey: []byte(o.PrivateKey),
			Scopes:     []string{sheets.SpreadsheetsScope, drive.DriveScope},
			TokenURL:   tokenURL,
		}
		hc = conf.Client(ctx)
		hc.Timeout = o.Timeout
	}

	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if o.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(o.Endpoint))
	}
	sh, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfiguration, "sheets service")
	}
	dr, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfiguration, "drive service")
	}
	return &Client{sheets: sh, drive: dr, log: *logger.Named("sheets")}, nil
}

// CreateDocument implements domain.DocumentClient
func (c *Client) CreateDocument(ctx context.Context, title string, grid domain.Grid) (string, error) {
	ss := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
		Sheets: []*sheets.Sheet{{
			Properties: &sheets.SheetProperties{
				Title: grid.Sheet,
				GridProperties: &sheets.GridProperties{
					RowCount:    int64(grid.Rows),
					ColumnCount: int64(grid.Columns),
				},
			},
		}},
	}
	out, err := c.sheets.Spreadsheets.Create(ss).Context(ctx).Do()
	if err != nil {
		return "", apiError(err, "create spreadsheet "+title)
	}
	c.log.Debug().Str("document", out.SpreadsheetId).Str("title", title).Msg("spreadsheet created")
	return out.SpreadsheetId, nil
}

// WriteRegion implements domain.DocumentClient: clear the tab, then write rows from A1 as RAW values
func (c *Client) WriteRegion(ctx context.Context, documentID, sheet string, rows [][]string) error {
	rng := quoteSheet(sheet)
	if _, err := c.sheets.Spreadsheets.Values.Clear(documentID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return apiError(err, "clear "+sheet)
	}
	if len(rows) == 0 {
		return nil
	}

	values := make([][]any, len(rows))
	for i, r := range rows {
		row := make([]any, len(r))
		for j, v := range r {
			row[j] = v
		}
		values[i] = row
	}
	vr := &sheets.ValueRange{
		Range:          rng + "!A1",
		MajorDimension: "ROWS",
		Values:         values,
	}
	_, err := c.sheets.Spreadsheets.Values.Update(documentID, rng+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return apiError(err, "update "+sheet)
	}
	return nil
}

// GrantAccess implements domain.DocumentClient
func (c *Client) GrantAccess(ctx context.Context, documentID, email string, role domain.Role) error {
	if strings.TrimSpace(email) == "" {
		return perr.Configurationf("no email to share %s with", documentID)
	}
	p := &drive.Permission{Type: "user", Role: string(role), EmailAddress: email}
	_, err := c.drive.Permissions.Create(documentID, p).
		SendNotificationEmail(true).
		Context(ctx).
		Do()
	if err != nil {
		return apiError(err, "share "+documentID)
	}
	return nil
}

// quoteSheet wraps a tab name in single quotes as A1 notation requires for names with spaces
func quoteSheet(name string) string {
	if !strings.ContainsAny(name, " '!") {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// apiError maps a googleapi failure to a publish error, keeping the status in the message
func apiError(err error, what string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		code := perr.ErrorCodePublish
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			code = perr.ErrorCodeConfiguration
		case http.StatusNotFound:
			code = perr.ErrorCodeNotFound
		}
		return perr.Wrap(err, code, fmt.Sprintf("%s: google api %d", what, gerr.Code))
	}
	return perr.Wrap(err, perr.ErrorCodePublish, what)
}
