package http

import (
	"context"
	"net/http"
	"time"

	"activitylog/internal/core"
	"activitylog/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
			checks["store"] = "failed"
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"hits":           s.rateLimiter.GetMetrics().TotalHits,
	}
	sec := s.securityDetector.GetMetrics()
	checks["security"] = map[string]any{
		"suspicious_requests": sec.SuspiciousRequests,
	}
	checks["requests"] = s.traceMiddleware.GetMetrics().TotalRequests

	NewJSONResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError("not found").Write(w)
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withStoreTimeout(r.Context())
	defer cancel()

	rs, err := s.activities.List(ctx, ParseActivityFilter(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(rs).Write(w)
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	id, err := ParseActivityID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.withStoreTimeout(r.Context())
	defer cancel()

	rec, err := s.activities.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(rec).Write(w)
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	var in core.ActivityRecord
	if err := DecodeJSONBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.withStoreTimeout(r.Context())
	defer cancel()

	created, err := s.activities.Create(ctx, sanitizeRecord(in))
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "Activity created",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithActivity(created.ID, created.Personnel, created.WorkLocation, string(created.Charges)).
			ToSlice()...)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/activity/"+formatID(created.ID)).
		JSON(created).
		Write(w)
}

func (s *Server) handleUpdateActivity(w http.ResponseWriter, r *http.Request) {
	id, err := ParseActivityID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch core.ActivityPatch
	if err := DecodeJSONBody(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.withStoreTimeout(r.Context())
	defer cancel()

	updated, err := s.activities.Update(ctx, id, sanitizePatch(patch))
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Activity updated", log.FieldOperation, log.OpUpdate, log.FieldActivityID, id)
	NewJSONResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	id, err := ParseActivityID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := s.withStoreTimeout(r.Context())
	defer cancel()

	if err := s.activities.Delete(ctx, id); err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Activity deleted", log.FieldOperation, log.OpDelete, log.FieldActivityID, id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handlePersonnel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.withStoreTimeout(r.Context())
	defer cancel()

	people, err := s.activities.Personnel(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(people).Write(w)
}
