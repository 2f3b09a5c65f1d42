package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activitylog/internal/auth"
	"activitylog/internal/core"
	"activitylog/internal/records"
	"activitylog/internal/records/memory"
	"activitylog/internal/services"
)

func fixtureRecords() []core.ActivityRecord {
	now := time.Now().UTC()
	return []core.ActivityRecord{
		{ID: 1, CustomerName: "Acme", WorkLocation: "NYC", Personnel: "Jane", Activity: "Install",
			ActivityDate: core.NewDate(2024, 1, 10), ActivityCompleted: true,
			POStatus: core.POApproved, PaymentStatus: core.PaymentPaid, Charges: "100"},
		{ID: 2, CustomerName: "Acme", WorkLocation: "LA", Personnel: "John", Activity: "Survey",
			ActivityDate: core.NewDate(2024, 1, 12), ReportsPending: true,
			POStatus: core.POPending, PaymentStatus: core.PaymentPending, Charges: "50.25"},
		{ID: 3, CustomerName: "Globex", WorkLocation: "NYC", Personnel: "Jane", Activity: "Repair",
			ActivityDate: core.LenientDate("soon"),
			POStatus: core.POPending, PaymentStatus: core.PaymentOverdue, Charges: "abc"},
		{ID: 4, CustomerName: "Globex", WorkLocation: "NYC", Personnel: "Ann", Activity: "Audit",
			ActivityDate: core.DateOf(now),
			POStatus: core.POPending, PaymentStatus: core.PaymentPending, Charges: "10"},
	}
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Activities == nil {
		opts.Activities = services.NewActivityService(memory.New(fixtureRecords()...), nil, nil, nil)
	}
	srv := NewServer(opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func newServerWithRecords(t *testing.T, rs ...core.ActivityRecord) *Server {
	t.Helper()
	return newTestServer(t, Options{Activities: services.NewActivityService(memory.New(rs...), nil, nil, nil)})
}

func do(t *testing.T, srv *Server, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorBody](t, rr).Message
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rr)["status"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ready", decode[map[string]any](t, rr)["status"])
}

func TestReadyReportsStoreFailure(t *testing.T) {
	srv := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("db down") }})

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "failed", body["checks"].(map[string]any)["store"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/healthz", "", "X-Request-ID", "abc-123")
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/api/activity", "")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestListActivities(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/activity", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.ActivityRecord](t, rr), 4)

	rr = do(t, srv, http.MethodGet, "/api/activity?status=completed", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[[]core.ActivityRecord](t, rr)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	rr = do(t, srv, http.MethodGet, "/api/activity?personnel=Jane", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.ActivityRecord](t, rr), 2)

	rr = do(t, srv, http.MethodGet, "/api/activity?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetActivity(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/activity/2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[core.ActivityRecord](t, rr)
	assert.Equal(t, "John", got.Personnel)

	rr = do(t, srv, http.MethodGet, "/api/activity/99", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "activity not found", errorMessage(t, rr))

	rr = do(t, srv, http.MethodGet, "/api/activity/abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateUpdateDeleteActivity(t *testing.T) {
	srv := newTestServer(t, Options{})

	body := `{"customerName":"Initech","workLocation":"Austin","personnel":"Peter","activity":"Migrate",
		"activityDate":"2024-03-01","poStatus":"Approved","paymentStatus":"Pending","charges":"75.50"}`
	rr := do(t, srv, http.MethodPost, "/api/activity", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[core.ActivityRecord](t, rr)
	assert.Equal(t, int64(5), created.ID)
	assert.Equal(t, "/api/activity/5", rr.Header().Get("Location"))

	rr = do(t, srv, http.MethodPut, "/api/activity/5", `{"activityCompleted":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, decode[core.ActivityRecord](t, rr).ActivityCompleted)

	rr = do(t, srv, http.MethodDelete, "/api/activity/5", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = do(t, srv, http.MethodGet, "/api/activity/5", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/api/activity/5", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateActivityRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"personnel":`, http.StatusBadRequest},
		{"trailing data", `{"personnel":"x"} {}`, http.StatusBadRequest},
		{"missing fields", `{"personnel":"x"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"customerName":"A","workLocation":"B","personnel":"C","activity":"D",
			"activityDate":"yesterday","poStatus":"Pending","paymentStatus":"Pending","charges":1}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/activity", tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestUpdateActivityEmptyPatch(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPut, "/api/activity/1", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestPersonnel(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/api/activity/personnel", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.ElementsMatch(t, []string{"Ann", "Jane", "John"}, decode[[]string](t, rr))
}

func TestStats(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/activity/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[services.StatsReport](t, rr)
	assert.Equal(t, 4, got.TotalActivities)
	assert.Equal(t, 1, got.CompletedActivities)
	assert.Equal(t, 2, got.PendingPayments)
	assert.Equal(t, 1, got.OverduePayments)
	assert.Equal(t, 1, got.PendingReports)
	assert.Equal(t, "160.25", got.TotalCharges.String())
	assert.Equal(t, "1", rr.Header().Get(skippedRecordsHeader))

	rr = do(t, srv, http.MethodGet, "/api/activity/stats?period=decade", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestTrends(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/activity/trends?period=day&from=2024-01-10&to=2024-01-12", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.True(t, strings.HasPrefix(rr.Body.String(), "["), rr.Body.String())
	got := decode[[]core.TrendPoint](t, rr)
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 0, 1}, []int{got[0].Count, got[1].Count, got[2].Count})
	assert.Equal(t, "2024-01-10", got[0].Label)
	assert.Equal(t, "100", got[0].Amount.String())
	assert.Equal(t, "1", rr.Header().Get(skippedRecordsHeader))
	assert.Equal(t, "day", rr.Header().Get(periodHeader))
	assert.Equal(t, "1", rr.Header().Get(undatedRecordsHeader))
	assert.Equal(t, "0", rr.Header().Get(invalidChargesHeader))
	assert.Empty(t, rr.Header().Get(sparseTrendHeader))

	rr = do(t, srv, http.MethodGet, "/api/activity/trends?from=2024-01-10", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/activity/trends?period=fortnight", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestBreakdowns(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/activity/by-personnel", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.HasPrefix(rr.Body.String(), "["), rr.Body.String())
	people := decode[[]core.PersonnelMetric](t, rr)
	assert.Equal(t, []core.PersonnelMetric{{Name: "Ann", Count: 1}}, people)
	assert.Equal(t, "month", rr.Header().Get(periodHeader))
	assert.Equal(t, "1", rr.Header().Get(undatedRecordsHeader))
	assert.Equal(t, "1", rr.Header().Get(skippedRecordsHeader))

	rr = do(t, srv, http.MethodGet, "/api/activity/by-location?period=year", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.HasPrefix(rr.Body.String(), "["), rr.Body.String())
	places := decode[[]core.LocationMetric](t, rr)
	require.Len(t, places, 1)
	assert.Equal(t, "NYC", places[0].Location)
	assert.Equal(t, 1, places[0].Count)
	assert.Equal(t, "10", places[0].Revenue.String())
	assert.Equal(t, "year", rr.Header().Get(periodHeader))
	assert.Equal(t, "1", rr.Header().Get(undatedRecordsHeader))
	assert.Equal(t, "0", rr.Header().Get(invalidChargesHeader))
}

func TestBreakdownsEmptyWindowIsEmptyArray(t *testing.T) {
	srv := newServerWithRecords(t, core.ActivityRecord{ID: 1, Personnel: "Jane", Charges: "1"})

	for _, path := range []string{"/api/activity/by-personnel", "/api/activity/by-location", "/api/activity/trends"} {
		rr := do(t, srv, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.JSONEq(t, "[]", rr.Body.String(), path)
	}
}

func TestTrendsWideSpanIsSparse(t *testing.T) {
	srv := newServerWithRecords(t,
		core.ActivityRecord{ID: 1, Personnel: "Jane", ActivityDate: core.NewDate(1900, 1, 1), Charges: "1"},
		core.ActivityRecord{ID: 2, Personnel: "John", ActivityDate: core.NewDate(2999, 12, 31), Charges: "2"},
	)

	rr := do(t, srv, http.MethodGet, "/api/activity/trends?period=day", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[[]core.TrendPoint](t, rr)
	require.Len(t, got, 2)
	assert.Equal(t, "1900-01-01", got[0].Label)
	assert.Equal(t, "2999-12-31", got[1].Label)
	assert.Equal(t, "true", rr.Header().Get(sparseTrendHeader))
}

func TestMethodNotAllowedAndNotFound(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPatch, "/api/activity", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET, POST", rr.Header().Get("Allow"))

	rr = do(t, srv, http.MethodPost, "/api/activity/stats", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = do(t, srv, http.MethodPost, "/healthz", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = do(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not found", errorMessage(t, rr))

	// Login is only routed when auth is configured.
	rr = do(t, srv, http.MethodPost, "/api/auth/login", `{}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStoreFailureIsGeneric(t *testing.T) {
	srv := newTestServer(t, Options{Activities: failingAPI{}})

	rr := do(t, srv, http.MethodGet, "/api/activity", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, genericFailure, errorMessage(t, rr))
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		rr := do(t, srv, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, Options{})
	do(t, srv, http.MethodGet, "/api/activity", "")

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "activitylog_http_requests_total")
}

func TestAuthRequired(t *testing.T) {
	users := auth.NewMemoryUsers()
	authSvc := auth.NewService(users, auth.TokenConfig{Secret: "test-secret", Issuer: "activitylog", TTL: time.Hour}, nil)
	require.NoError(t, authSvc.EnsureAdmin(context.Background(), "admin@example.com", "hunter22"))

	srv := newTestServer(t, Options{Auth: authSvc, AuthRequired: true})

	rr := do(t, srv, http.MethodGet, "/api/activity", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))

	rr = do(t, srv, http.MethodGet, "/api/activity", "", "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, srv, http.MethodPost, "/api/auth/login", `{"email":"admin@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, srv, http.MethodPost, "/api/auth/login", `{"email":"admin@example.com"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, http.MethodPost, "/api/auth/login", `{"email":"admin@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	login := decode[auth.LoginResult](t, rr)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, "admin@example.com", login.User.Email)

	rr = do(t, srv, http.MethodGet, "/api/activity", "", "Authorization", "Bearer "+login.Token)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Probes stay open.
	rr = do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLoginAcceptsForm(t *testing.T) {
	authSvc := auth.NewService(auth.NewMemoryUsers(), auth.TokenConfig{Secret: "s", TTL: time.Hour}, nil)
	require.NoError(t, authSvc.EnsureAdmin(context.Background(), "admin@example.com", "pw"))
	srv := newTestServer(t, Options{Auth: authSvc})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("email=admin%40example.com&password=pw"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

type failingAPI struct{ ActivityAPI }

func (failingAPI) List(context.Context, records.Filter) ([]core.ActivityRecord, error) {
	return nil, errors.New("dial tcp: connection refused")
}
