package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/campusgate/pkg/academics"
	"github.com/platinummonkey/campusgate/pkg/audit"
	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/httputil"
	"github.com/platinummonkey/campusgate/pkg/middleware"
	"github.com/platinummonkey/campusgate/pkg/observability"
	"github.com/platinummonkey/campusgate/pkg/rbac"
)

// DefaultMaxBodyBytes caps request bodies when Options leaves it unset
const DefaultMaxBodyBytes = 1 << 20

// Options wires the server's collaborators. Auth and Academics are required;
// everything else is optional.
type Options struct {
	Auth      *auth.Service
	Academics *academics.Service
	Cookies   httputil.CookieConfig

	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Health   *observability.HealthChecker
	Audit    audit.Logger

	// Limiter guards the public auth routes. Nil disables rate limiting.
	Limiter    middleware.Limiter
	TrustProxy bool

	CORSOrigins  []string
	MaxBodyBytes int64
	Tracing      bool
}

// Server is the campusgate HTTP API
type Server struct {
	auth      *auth.Service
	academics *academics.Service
	cookies   httputil.CookieConfig
	logger    *observability.Logger
	metrics   *observability.Metrics
	audit     audit.Logger

	router  *mux.Router
	matrix  *rbac.Matrix
	handler http.Handler
}

// NewServer builds the router, the permission matrix and the middleware stack
func NewServer(opts Options) (*Server, error) {
	if opts.Auth == nil {
		return nil, errors.New("api: auth service is required")
	}
	if opts.Academics == nil {
		return nil, errors.New("api: academics service is required")
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.Audit == nil {
		opts.Audit = audit.NoOpLogger{}
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{
		auth:      opts.Auth,
		academics: opts.Academics,
		cookies:   opts.Cookies,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		audit:     opts.Audit,
		router:    mux.NewRouter(),
	}

	routes := s.routes()
	matrix, err := buildMatrix(routes)
	if err != nil {
		return nil, err
	}
	s.matrix = matrix

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteNotFound(w, "Route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteMethodNotAllowed(w, "Method not allowed")
	})
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}

	if opts.Health != nil {
		observability.RegisterHealthRoutes(s.router, opts.Health)
	}
	if opts.Gatherer != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(opts.Gatherer)).Methods(http.MethodGet)
	}

	s.registerRoutes(routes, opts)

	var handler http.Handler = s.router
	if opts.Tracing {
		handler = otelhttp.NewHandler(handler, "campusgate")
	}
	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(opts.Logger),
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(opts.CORSOrigins),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(opts.MaxBodyBytes),
	)(handler)

	return s, nil
}

// registerRoutes mounts each route behind the stages its row asks for
func (s *Server) registerRoutes(routes []Route, opts Options) {
	api := s.router.PathPrefix(APIPrefix).Subrouter()

	base := middleware.NewPipeline(s.writeError).WithMetrics(opts.Metrics)
	var limit func(http.Handler) http.Handler
	if opts.Limiter != nil {
		limit = middleware.RateLimit(opts.Limiter, middleware.ClientIP(opts.TrustProxy), s.writeError, opts.Metrics)
	}

	for _, rt := range routes {
		pipeline := base
		if !rt.Public() {
			pipeline = pipeline.With(middleware.Authenticate(s.auth.Tokens()))
			if rt.APIKey {
				pipeline = pipeline.With(middleware.RequireAPIKey(s.auth))
			}
			pipeline = pipeline.With(middleware.Authorize(s.matrix))
		}
		if rt.Schema != nil {
			pipeline = pipeline.With(middleware.ValidateBody(rt.Schema))
		}

		h := pipeline.Then(rt.Handler)
		if rt.RateLimited && limit != nil {
			h = limit(h)
		}
		api.Handle("/"+strings.TrimLeft(rt.Path, "/"), h).Methods(rt.Methods...)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Matrix returns the permission matrix derived from the route table
func (s *Server) Matrix() *rbac.Matrix {
	return s.matrix
}

// writeError audits authorization failures before writing the envelope
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		s.record(r, s.event(r, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied).WithMessage(err.Error()))
	case errors.Is(err, auth.ErrInvalidAPIKey):
		s.record(r, s.event(r, audit.EventTypeAuthKeyRejected, audit.EventStatusDenied))
	}
	httputil.WriteError(w, r, err)
}

// event starts an audit event for the principal on r, if any
func (s *Server) event(r *http.Request, eventType audit.EventType, status audit.EventStatus) *audit.Event {
	event := audit.NewEvent(r.Context(), r, eventType, status)
	if p, ok := middleware.PrincipalFrom(r.Context()); ok {
		event.WithPrincipal(p)
	}
	return event
}

func (s *Server) record(r *http.Request, event *audit.Event) {
	audit.Emit(r.Context(), s.audit, event)
}
