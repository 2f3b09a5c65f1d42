package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"activitylog/internal/auth"
	"activitylog/internal/core"
	"activitylog/internal/log"
	"activitylog/internal/middleware/ratelimit"
	"activitylog/internal/middleware/security"
	"activitylog/internal/middleware/trace"
	"activitylog/internal/observability"
	"activitylog/internal/records"
	"activitylog/internal/services"
)

const defaultStoreTimeout = 7 * time.Second

// ActivityAPI is what the handlers need from the activity service.
type ActivityAPI interface {
	List(ctx context.Context, f records.Filter) ([]core.ActivityRecord, error)
	Get(ctx context.Context, id int64) (core.ActivityRecord, error)
	Personnel(ctx context.Context) ([]string, error)
	Create(ctx context.Context, r core.ActivityRecord) (core.ActivityRecord, error)
	Update(ctx context.Context, id int64, p core.ActivityPatch) (core.ActivityRecord, error)
	Delete(ctx context.Context, id int64) error

	Stats(ctx context.Context, period string) (services.StatsReport, error)
	Trend(ctx context.Context, period, from, to string) (core.Trend, error)
	ByPersonnel(ctx context.Context, period string) (services.PersonnelReport, error)
	ByLocation(ctx context.Context, period string) (services.LocationReport, error)
}

type Options struct {
	Addr       string
	Activities ActivityAPI

	// Auth enables POST /api/auth/login. With AuthRequired set, every
	// /api/activity route also needs a bearer token.
	Auth         *auth.Service
	AuthRequired bool

	// Ready backs /readyz. Nil means always ready.
	Ready func(ctx context.Context) error

	RateLimitPerMinute int
	AllowedOrigins     []string
	TrustedProxies     []string
	StoreTimeout       time.Duration
	Logger             *log.Logger
}

type Server struct {
	http.Server
	activities   ActivityAPI
	auth         *auth.Service
	authRequired bool
	ready        func(ctx context.Context) error

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	startedAt    time.Time
	storeTimeout time.Duration
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	storeTimeout := opts.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, log.FieldError, err.Error())
		}
	}

	s := &Server{
		activities:       opts.Activities,
		auth:             opts.Auth,
		authRequired:     opts.AuthRequired && opts.Auth != nil,
		ready:            opts.Ready,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, observability.RecordHTTPRequest, logger),
		startedAt:        time.Now(),
		storeTimeout:     storeTimeout,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	headersCfg := security.DefaultHeadersConfig()
	headersCfg.AllowedOrigins = opts.AllowedOrigins

	// Built inside out. trace must wrap the mux directly so the matched
	// pattern is visible to its observer.
	var handler http.Handler = s.traceMiddleware.Middleware(mux)
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimited)(handler)
	handler = s.detectSuspicious(handler)
	handler = security.NewHeadersMiddleware(headersCfg).Middleware(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.Handle("GET /api/activity", s.protect(s.handleListActivities))
	mux.Handle("POST /api/activity", s.protect(s.handleCreateActivity))
	mux.Handle("GET /api/activity/personnel", s.protect(s.handlePersonnel))
	mux.Handle("GET /api/activity/stats", s.protect(s.handleStats))
	mux.Handle("GET /api/activity/trends", s.protect(s.handleTrends))
	mux.Handle("GET /api/activity/by-personnel", s.protect(s.handleByPersonnel))
	mux.Handle("GET /api/activity/by-location", s.protect(s.handleByLocation))
	mux.Handle("GET /api/activity/{id}", s.protect(s.handleGetActivity))
	mux.Handle("PUT /api/activity/{id}", s.protect(s.handleUpdateActivity))
	mux.Handle("DELETE /api/activity/{id}", s.protect(s.handleDeleteActivity))

	// "/api/activity/{id}" covers the named views too: a methodless pattern
	// per view would conflict with "GET /api/activity/{id}".
	methodNotAllowed := map[string][]string{
		"/healthz":           {http.MethodGet},
		"/readyz":            {http.MethodGet},
		"/metrics":           {http.MethodGet},
		"/api/activity":      {http.MethodGet, http.MethodPost},
		"/api/activity/{id}": {http.MethodGet, http.MethodPut, http.MethodDelete},
	}

	if s.auth != nil {
		mux.HandleFunc("POST /api/auth/login", s.handleLogin)
		methodNotAllowed["/api/auth/login"] = []string{http.MethodPost}
	}

	for pattern, allowed := range methodNotAllowed {
		mux.HandleFunc(pattern, s.methodNotAllowed(allowed))
	}
	mux.HandleFunc("/", s.handleNotFound)
}

// protect requires a bearer token when the server was built with
// AuthRequired.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if !s.authRequired {
		return h
	}
	return auth.Middleware(s.auth, writeError)(h)
}

// methodNotAllowed answers a known path hit with an unsupported method.
// Method-specific patterns win over these, so only the leftovers land here.
func (s *Server) methodNotAllowed(allowed []string) http.HandlerFunc {
	allow := strings.Join(allowed, ", ")
	return func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError(allow).Write(w)
	}
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	observability.RecordRateLimited()
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError("rate limit exceeded, please try again later").Write(w)
}

// detectSuspicious only logs. Blocking is left to the rate limiter.
func (s *Server) detectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				"user_agent", r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
