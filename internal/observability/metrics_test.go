package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET /api/activity", "GET", "200"))
	RecordHTTPRequest("GET /api/activity", "GET", 200, 15*time.Millisecond)
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET /api/activity", "GET", "200"))
	assert.Equal(t, before+1, after)

	RecordHTTPRequest("", "GET", 404, time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("unmatched", "GET", "404")))
}

func TestRecordSkippedIgnoresZero(t *testing.T) {
	RecordSkipped("trend", 0)
	RecordSkipped("trend", 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(skippedRecords.WithLabelValues("trend")))
}

func TestRecordFullExport(t *testing.T) {
	RecordFullExport(time.Time{})
	RecordFullExport(time.Unix(1700000000, 0))
	assert.Equal(t, float64(1700000000), testutil.ToFloat64(lastFullExport))
}

func TestRecordCacheLookup(t *testing.T) {
	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)
	assert.Equal(t, float64(1), testutil.ToFloat64(cacheResults.WithLabelValues("hit")))
	assert.Equal(t, float64(2), testutil.ToFloat64(cacheResults.WithLabelValues("miss")))
}
