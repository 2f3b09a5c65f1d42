// Package observability holds the Prometheus collectors shared by the API
// server and the export worker.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "activitylog"

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests grouped by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	rateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})

	activityWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "activity",
		Name:      "writes_total",
		Help:      "Successful activity writes by action.",
	}, []string{"action"})

	skippedRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "aggregate",
		Name:      "skipped_records_total",
		Help:      "Records left out of an aggregate because of a malformed date or charges.",
	}, []string{"view"})

	anomalies = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "activity",
		Name:      "anomalies_total",
		Help:      "Soft consistency problems seen on written records.",
	})

	cacheResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Snapshot cache lookups by result.",
	}, []string{"result"})

	publishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "amqp",
		Name:      "publish_errors_total",
		Help:      "Change messages that could not be published.",
	})

	exportsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "messages_total",
		Help:      "Change messages handled by the export worker, by outcome.",
	}, []string{"outcome"})

	lastFullExport = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "export",
		Name:      "last_full_export_timestamp_seconds",
		Help:      "Unix timestamp of the last successful full spreadsheet export.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequests,
		httpDuration,
		rateLimited,
		activityWrites,
		skippedRecords,
		anomalies,
		cacheResults,
		publishErrors,
		exportsProcessed,
		lastFullExport,
	)
}

// RecordHTTPRequest counts one finished request. route is the mux pattern,
// never the raw path.
func RecordHTTPRequest(route, method string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func RecordRateLimited() {
	rateLimited.Inc()
}

func RecordActivityWrite(action string) {
	activityWrites.WithLabelValues(action).Inc()
}

func RecordSkipped(view string, n int) {
	if n <= 0 {
		return
	}
	skippedRecords.WithLabelValues(view).Add(float64(n))
}

func RecordAnomalies(n int) {
	if n <= 0 {
		return
	}
	anomalies.Add(float64(n))
}

func RecordCacheLookup(hit bool) {
	if hit {
		cacheResults.WithLabelValues("hit").Inc()
		return
	}
	cacheResults.WithLabelValues("miss").Inc()
}

func RecordPublishError() {
	publishErrors.Inc()
}

// RecordExport counts a handled change message. outcome is one of
// "exported", "skipped" or "failed".
func RecordExport(outcome string) {
	exportsProcessed.WithLabelValues(outcome).Inc()
}

func RecordFullExport(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastFullExport.Set(float64(ts.Unix()))
}
