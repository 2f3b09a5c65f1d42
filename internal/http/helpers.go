package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"activitylog/internal/auth"
	"activitylog/internal/core"
	"activitylog/internal/log"
	"activitylog/internal/records"
	"activitylog/internal/services"
)

// Dashboard views answer with a bare JSON array, so their metadata travels in
// headers. X-Skipped-Records is the total the view left out.
const (
	skippedRecordsHeader = "X-Skipped-Records"
	periodHeader         = "X-Period"
	undatedRecordsHeader = "X-Undated-Records"
	invalidChargesHeader = "X-Invalid-Charges"
	sparseTrendHeader    = "X-Sparse-Trend"
)

// genericFailure is what clients see for any backend problem. The cause is
// only logged.
const genericFailure = "failed to fetch activities"

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// withStoreTimeout bounds a single call into the service.
func (s *Server) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// errorResponse maps service, store and auth errors to a status code.
func errorResponse(err error) (*JSONResponseBuilder, bool) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return UnprocessableEntityError(verr.Error()), true
	case errors.Is(err, core.ErrInvalidPeriod), errors.Is(err, core.ErrInvalidRange):
		return UnprocessableEntityError(err.Error()), true
	case errors.Is(err, records.ErrInvalidFilter), errors.Is(err, errInvalidID), errors.Is(err, errInvalidBody):
		return BadRequestError(err.Error()), true
	case errors.Is(err, records.ErrNotFound):
		return NotFoundError("activity not found"), true
	case errors.Is(err, auth.ErrInvalidCredentials):
		return UnauthorizedError("invalid email or password"), true
	case errors.Is(err, auth.ErrMissingToken):
		return UnauthorizedError("missing bearer token"), true
	case errors.Is(err, auth.ErrInvalidToken):
		return UnauthorizedError("invalid or expired token"), true
	}
	return InternalServerError(genericFailure), false
}

// writeError writes the response for err. Unexpected errors are logged with
// their cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp, expected := errorResponse(err)
	if !expected {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldMethod, r.Method,
			log.FieldError, err.Error())
	}
	resp.Write(w)
}
