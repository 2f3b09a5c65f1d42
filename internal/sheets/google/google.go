package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"activitylog/internal/core"
	"activitylog/internal/log"
	ports "activitylog/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const valueInputOption = "USER_ENTERED"

// activityHeader is row 1 of the activities sheet. Column A holds the id.
var activityHeader = []any{
	"ID", "Date", "Customer", "End User", "Vendor", "Work Location", "Personnel", "Activity",
	"Completed", "PO Status", "Invoiced", "Invoice Number", "Payment Status", "Reports Pending", "Charges",
}

type Config struct {
	SpreadsheetID   string
	ActivitiesSheet string
	SummarySheet    string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc             *gsheet.Service
	spreadsheetID   string
	activitiesSheet string
	summarySheet    string
	lastColumn      string
	logger          *log.Logger
}

// Ensure interface conformance
var _ ports.Exporter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg, logger)
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config, logger *log.Logger) (*Client, error) {
	if svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	activities := strings.TrimSpace(cfg.ActivitiesSheet)
	if activities == "" {
		activities = "Activities"
	}
	summary := strings.TrimSpace(cfg.SummarySheet)
	if summary == "" {
		summary = "Summary"
	}
	if logger == nil {
		logger = log.Nop()
	}

	return &Client{
		svc:             svc,
		spreadsheetID:   spreadsheetID,
		activitiesSheet: activities,
		summarySheet:    summary,
		lastColumn:      columnLetter(len(activityHeader)),
		logger:          logger.WithComponent(log.ComponentSheets),
	}, nil
}

func newSheetsService(ctx context.Context, cfg Config, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		logger.InfoContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		logger.InfoContext(ctx, "Reading service account credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets service created", "scope", gsheet.SpreadsheetsScope)
	return service, nil
}

// UpsertActivity overwrites the row whose column A matches r.ID, or appends
// a new row after the last one in use.
func (c *Client) UpsertActivity(ctx context.Context, r core.ActivityRecord) error {
	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return err
	}

	row := rowOf(ids, r.ID)
	if row == 0 {
		if len(ids) == 0 {
			if err := c.update(ctx, fmt.Sprintf("%s!A1:%s1", c.activitiesSheet, c.lastColumn), [][]any{activityHeader}); err != nil {
				return fmt.Errorf("write header: %w", err)
			}
			ids = append(ids, "")
		}
		// Next row = number of existing rows + 1
		row = len(ids) + 1
	}

	rng := fmt.Sprintf("%s!A%d:%s%d", c.activitiesSheet, row, c.lastColumn, row)
	if err := c.update(ctx, rng, [][]any{activityRow(r)}); err != nil {
		return fmt.Errorf("upsert activity %d: %w", r.ID, err)
	}
	c.logger.DebugContext(ctx, "Activity row written", log.FieldActivityID, r.ID, "range", rng)
	return nil
}

// RemoveActivity blanks the row of id. The row itself stays so the rows
// below keep their position.
func (c *Client) RemoveActivity(ctx context.Context, id int64) error {
	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return err
	}
	row := rowOf(ids, id)
	if row == 0 {
		c.logger.DebugContext(ctx, "No row to clear", log.FieldActivityID, id)
		return nil
	}

	rng := fmt.Sprintf("%s!A%d:%s%d", c.activitiesSheet, row, c.lastColumn, row)
	if err := c.clear(ctx, rng); err != nil {
		return fmt.Errorf("clear activity %d: %w", id, err)
	}
	return nil
}

func (c *Client) ReplaceActivities(ctx context.Context, rs []core.ActivityRecord) error {
	if err := c.clear(ctx, c.activitiesSheet); err != nil {
		return fmt.Errorf("clear %s: %w", c.activitiesSheet, err)
	}

	values := make([][]any, 0, len(rs)+1)
	values = append(values, activityHeader)
	for _, r := range rs {
		values = append(values, activityRow(r))
	}
	rng := fmt.Sprintf("%s!A1:%s%d", c.activitiesSheet, c.lastColumn, len(values))
	if err := c.update(ctx, rng, values); err != nil {
		return fmt.Errorf("write %s: %w", c.activitiesSheet, err)
	}
	c.logger.InfoContext(ctx, "Activities sheet rewritten", log.FieldCount, len(rs))
	return nil
}

func (c *Client) WriteSummary(ctx context.Context, s ports.Summary) error {
	if err := c.clear(ctx, c.summarySheet); err != nil {
		return fmt.Errorf("clear %s: %w", c.summarySheet, err)
	}
	values := summaryRows(s)
	rng := fmt.Sprintf("%s!A1:C%d", c.summarySheet, len(values))
	if err := c.update(ctx, rng, values); err != nil {
		return fmt.Errorf("write %s: %w", c.summarySheet, err)
	}
	return nil
}

// readIDColumn returns column A of the activities sheet as text, header
// included.
func (c *Client) readIDColumn(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", c.activitiesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = safeGet(toStrings(row), 0)
	}
	return out, nil
}

func (c *Client) update(ctx context.Context, rng string, values [][]any) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	return err
}

func (c *Client) clear(ctx context.Context, rng string) error {
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// rowOf returns the 1-based sheet row holding id, skipping the header, or 0.
func rowOf(ids []string, id int64) int {
	for i := 1; i < len(ids); i++ {
		if v, err := strconv.ParseInt(ids[i], 10, 64); err == nil && v == id {
			return i + 1
		}
	}
	return 0
}

func activityRow(r core.ActivityRecord) []any {
	return []any{
		r.ID,
		r.ActivityDate.String(),
		r.CustomerName,
		r.EndUser,
		r.VendorName,
		r.WorkLocation,
		r.Personnel,
		r.Activity,
		r.ActivityCompleted,
		string(r.POStatus),
		r.Invoiced,
		r.InvoiceNumber,
		string(r.PaymentStatus),
		r.ReportsPending,
		chargesCell(r.Charges),
	}
}

// chargesCell sends parsable charges in plain decimal notation so the sheet
// stores a number. Anything else is kept as text.
func chargesCell(c core.Charges) any {
	if a, err := c.Amount(); err == nil {
		return a.String()
	}
	return string(c)
}

func summaryRows(s ports.Summary) [][]any {
	rows := [][]any{
		{"Generated At", s.GeneratedAt.Format("2006-01-02 15:04:05")},
		{},
		{"Total Activities", s.Stats.TotalActivities},
		{"Completed Activities", s.Stats.CompletedActivities},
		{"Pending Payments", s.Stats.PendingPayments},
		{"Overdue Payments", s.Stats.OverduePayments},
		{"Total Charges", s.Stats.TotalCharges.String()},
		{"Pending Reports", s.Stats.PendingReports},
		{"Skipped Charges", s.Stats.Skipped},
		{},
		{"Personnel", "Activities"},
	}
	for _, p := range s.Personnel {
		rows = append(rows, []any{p.Name, p.Count})
	}
	rows = append(rows, []any{}, []any{"Work Location", "Activities", "Revenue"})
	for _, l := range s.Locations {
		rows = append(rows, []any{l.Location, l.Count, l.Revenue.String()})
	}
	return rows
}

// columnLetter maps 1 to A, 26 to Z, 27 to AA.
func columnLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}
