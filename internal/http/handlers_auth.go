package http

import (
	"net/http"

	"activitylog/internal/log"
)

// handleLogin accepts {"email", "password"} as JSON or form data.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	email, password := p.Get("email"), p.Get("password")
	if email == "" || password == "" {
		UnprocessableEntityError("email and password are required").Write(w)
		return
	}

	ctx, cancel := s.withStoreTimeout(r.Context())
	defer cancel()

	res, err := s.auth.Login(ctx, email, password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(ctx).InfoContext(ctx, "User logged in", log.FieldOperation, log.OpLogin, "user_id", res.User.ID)
	NewJSONResponse().Header("Cache-Control", "no-store").JSON(res).Write(w)
}
