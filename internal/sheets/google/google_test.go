package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"activitylog/internal/core"
	"activitylog/internal/log"
	ports "activitylog/internal/sheets"
)

type call struct {
	method string
	rng    string
	values [][]any
}

// fakeSheets answers the values endpoints of the Sheets API. idColumn is
// what a read of column A returns.
type fakeSheets struct {
	mu       sync.Mutex
	idColumn [][]any
	calls    []call
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const prefix = "/v4/spreadsheets/sheet-id/values/"
	rng, ok := strings.CutPrefix(r.URL.Path, prefix)
	if !ok {
		http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotFound)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		f.calls = append(f.calls, call{method: "get", rng: rng})
		_ = json.NewEncoder(w).Encode(gsheet.ValueRange{Range: rng, Values: f.idColumn})
	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":clear"):
		f.calls = append(f.calls, call{method: "clear", rng: strings.TrimSuffix(rng, ":clear")})
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut:
		if got := r.URL.Query().Get("valueInputOption"); got != valueInputOption {
			http.Error(w, "bad valueInputOption "+got, http.StatusBadRequest)
			return
		}
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.calls = append(f.calls, call{method: "update", rng: rng, values: vr.Values})
		_, _ = w.Write([]byte(`{}`))
	default:
		http.Error(w, "unexpected request", http.StatusMethodNotAllowed)
	}
}

func (f *fakeSheets) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	c, err := NewWithService(svc, Config{SpreadsheetID: "sheet-id"}, log.Nop())
	require.NoError(t, err)
	return c
}

func sampleRecord() core.ActivityRecord {
	return core.ActivityRecord{
		ID:                12,
		CustomerName:      "Acme",
		WorkLocation:      "NYC",
		Personnel:         "Jane Smith",
		Activity:          "Pump overhaul",
		ActivityDate:      core.NewDate(2024, 3, 1),
		ActivityCompleted: true,
		POStatus:          core.POApproved,
		PaymentStatus:     core.PaymentPending,
		Charges:           "250.50",
	}
}

func TestNewWithService_Validation(t *testing.T) {
	_, err := NewWithService(nil, Config{SpreadsheetID: "x"}, nil)
	assert.Error(t, err)

	svc := &gsheet.Service{}
	_, err = NewWithService(svc, Config{}, nil)
	assert.EqualError(t, err, "missing spreadsheet id")

	c, err := NewWithService(svc, Config{SpreadsheetID: " x "}, nil)
	require.NoError(t, err)
	assert.Equal(t, "x", c.spreadsheetID)
	assert.Equal(t, "Activities", c.activitiesSheet)
	assert.Equal(t, "Summary", c.summarySheet)
	assert.Equal(t, "O", c.lastColumn)
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")

	_, err = New(context.Background(), Config{SpreadsheetID: "x", CredentialsFile: "/does/not/exist.json"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestUpsertActivity_EmptySheetWritesHeader(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	require.NoError(t, c.UpsertActivity(context.Background(), sampleRecord()))

	calls := fake.recorded()
	require.Len(t, calls, 3)
	assert.Equal(t, call{method: "get", rng: "Activities!A:A"}, calls[0])
	assert.Equal(t, "Activities!A1:O1", calls[1].rng)
	assert.Equal(t, "ID", calls[1].values[0][0])
	assert.Equal(t, "Activities!A2:O2", calls[2].rng)

	row := calls[2].values[0]
	require.Len(t, row, 15)
	assert.EqualValues(t, 12, row[0])
	assert.Equal(t, "2024-03-01", row[1])
	assert.Equal(t, "Jane Smith", row[6])
	assert.Equal(t, true, row[8])
	assert.Equal(t, "250.50", row[14])
}

func TestUpsertActivity_OverwritesMatchingRow(t *testing.T) {
	fake := &fakeSheets{idColumn: [][]any{{"ID"}, {"3"}, {}, {"12"}, {"15"}}}
	c := newTestClient(t, fake)

	require.NoError(t, c.UpsertActivity(context.Background(), sampleRecord()))

	calls := fake.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "Activities!A4:O4", calls[1].rng)
}

func TestUpsertActivity_AppendsAfterLastRow(t *testing.T) {
	fake := &fakeSheets{idColumn: [][]any{{"ID"}, {"3"}, {"4"}}}
	c := newTestClient(t, fake)

	require.NoError(t, c.UpsertActivity(context.Background(), sampleRecord()))

	calls := fake.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "Activities!A4:O4", calls[1].rng)
}

func TestRemoveActivity(t *testing.T) {
	fake := &fakeSheets{idColumn: [][]any{{"ID"}, {"12"}}}
	c := newTestClient(t, fake)

	require.NoError(t, c.RemoveActivity(context.Background(), 12))
	require.NoError(t, c.RemoveActivity(context.Background(), 99))

	calls := fake.recorded()
	require.Len(t, calls, 3)
	assert.Equal(t, call{method: "clear", rng: "Activities!A2:O2"}, calls[1])
	assert.Equal(t, "get", calls[2].method)
}

func TestReplaceActivities(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	bad := sampleRecord()
	bad.ID = 13
	bad.ActivityDate = core.LenientDate("someday")
	bad.Charges = "n/a"

	require.NoError(t, c.ReplaceActivities(context.Background(), []core.ActivityRecord{sampleRecord(), bad}))

	calls := fake.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, call{method: "clear", rng: "Activities"}, calls[0])
	assert.Equal(t, "Activities!A1:O3", calls[1].rng)
	require.Len(t, calls[1].values, 3)
	assert.Equal(t, "someday", calls[1].values[2][1])
	assert.Equal(t, "n/a", calls[1].values[2][14])
}

func TestWriteSummary(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	r := sampleRecord()
	other := sampleRecord()
	other.ID, other.WorkLocation, other.Charges = 13, "LA", "100"
	s := ports.BuildSummary([]core.ActivityRecord{r, other}, time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC))

	require.NoError(t, c.WriteSummary(context.Background(), s))

	calls := fake.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, call{method: "clear", rng: "Summary"}, calls[0])

	values := calls[1].values
	assert.Equal(t, []any{"Generated At", "2024-06-15 09:30:00"}, values[0])
	assert.Equal(t, []any{"Total Charges", "350.50"}, values[6])
	assert.Contains(t, values, []any{"Jane Smith", float64(2)})
	assert.Contains(t, values, []any{"NYC", float64(1), "250.50"})
}

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(1))
	assert.Equal(t, "O", columnLetter(15))
	assert.Equal(t, "Z", columnLetter(26))
	assert.Equal(t, "AA", columnLetter(27))
	assert.Equal(t, "BA", columnLetter(53))
}

func TestRowOf(t *testing.T) {
	ids := []string{"12", "3", "", "x", "12"}
	assert.Equal(t, 5, rowOf(ids, 12), "header row is never a match")
	assert.Equal(t, 2, rowOf(ids, 3))
	assert.Equal(t, 0, rowOf(ids, 99))
}
