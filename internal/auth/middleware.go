package auth

import (
	"context"
	"net/http"

	"activitylog/internal/log"
)

type ctxKey struct{}

// ClaimsFromContext returns the claims stored by Middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}

// Middleware rejects requests without a valid bearer token. onError writes
// the rejection so the HTTP layer keeps one error body format.
func Middleware(s *Service, onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := s.Verify(BearerToken(r.Header.Get("Authorization")))
			if err != nil {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Rejected request token",
					log.FieldPath, r.URL.Path, log.FieldError, err.Error())
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
		})
	}
}
