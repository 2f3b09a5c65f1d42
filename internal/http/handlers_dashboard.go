package http

import (
	"net/http"
	"strconv"

	"activitylog/internal/log"
)

// Dashboard aggregates. Stats is an object; the other views are arrays of
// points or groups. Each response carries X-Skipped-Records with the number
// of records the aggregate could not use.

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	params := ParseDashboardParams(r.URL.Query())

	ctx, cancel := s.withStoreTimeout(r.Context())
	defer cancel()

	report, err := s.activities.Stats(ctx, params.Period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	skipped := report.Skipped + report.Undated
	logSkipped(r, "stats", skipped)
	NewJSONResponse().SkippedRecords(skipped).JSON(report).Write(w)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	params := ParseDashboardParams(r.URL.Query())

	ctx, cancel := s.withStoreTimeout(r.Context())
	defer cancel()

	trend, err := s.activities.Trend(ctx, params.Period, params.From, params.To)
	if err != nil {
		writeError(w, r, err)
		return
	}
	skipped := trend.Skipped + trend.InvalidCharges
	logSkipped(r, "trends", skipped)
	resp := NewJSONResponse().
		SkippedRecords(skipped).
		Header(periodHeader, string(trend.Period)).
		Header(undatedRecordsHeader, strconv.Itoa(trend.Skipped)).
		Header(invalidChargesHeader, strconv.Itoa(trend.InvalidCharges))
	if trend.Sparse {
		resp.Header(sparseTrendHeader, "true")
	}
	resp.JSON(trend.Points).Write(w)
}

func (s *Server) handleByPersonnel(w http.ResponseWriter, r *http.Request) {
	params := ParseDashboardParams(r.URL.Query())

	ctx, cancel := s.withStoreTimeout(r.Context())
	defer cancel()

	report, err := s.activities.ByPersonnel(ctx, params.Period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logSkipped(r, "by_personnel", report.Undated)
	NewJSONResponse().
		SkippedRecords(report.Undated).
		Header(periodHeader, string(report.Period)).
		Header(undatedRecordsHeader, strconv.Itoa(report.Undated)).
		JSON(report.Groups).
		Write(w)
}

func (s *Server) handleByLocation(w http.ResponseWriter, r *http.Request) {
	params := ParseDashboardParams(r.URL.Query())

	ctx, cancel := s.withStoreTimeout(r.Context())
	defer cancel()

	report, err := s.activities.ByLocation(ctx, params.Period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	skipped := report.Skipped + report.Undated
	logSkipped(r, "by_location", skipped)
	NewJSONResponse().
		SkippedRecords(skipped).
		Header(periodHeader, string(report.Period)).
		Header(undatedRecordsHeader, strconv.Itoa(report.Undated)).
		Header(invalidChargesHeader, strconv.Itoa(report.Skipped)).
		JSON(report.Groups).
		Write(w)
}

func logSkipped(r *http.Request, view string, n int) {
	if n == 0 {
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Aggregate skipped malformed records",
		log.FieldOperation, log.OpAggregate,
		"view", view,
		log.FieldSkipped, n)
}
