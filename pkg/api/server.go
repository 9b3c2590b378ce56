// Package api serves the compute gateway over HTTP: the JSON compute
// endpoint, the latest result, progress event streams, GraphQL, health and
// Prometheus metrics.
package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-graphmetrics/pkg/api/middleware"
	"github.com/dd0wney/cluso-graphmetrics/pkg/auth"
	"github.com/dd0wney/cluso-graphmetrics/pkg/gateway"
	gql "github.com/dd0wney/cluso-graphmetrics/pkg/graphql"
	"github.com/dd0wney/cluso-graphmetrics/pkg/health"
	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
	"github.com/dd0wney/cluso-graphmetrics/pkg/metrics"
)

// Routes
const (
	ComputePath = "/api/v1/metrics"
	LatestPath  = "/api/v1/metrics/latest"
	EventsPath  = "/api/v1/events"
	VersionPath = "/api/v1/version"
	GraphQLPath = "/graphql"
	HealthPath  = "/health"
	LivePath    = "/health/live"
	ReadyPath   = "/health/ready"
	MetricsPath = "/metrics"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured
const DefaultMaxBodyBytes = 64 << 20

// Server represents the HTTP API server
type Server struct {
	gateway        *gateway.Gateway
	graphqlHandler *gql.GraphQLHandler
	healthChecker  *health.HealthChecker
	metrics        *metrics.Registry
	validator      auth.TokenValidator
	corsConfig     *middleware.CORSConfig
	logger         logging.Logger
	maxBodyBytes   int64
	heartbeat      time.Duration
	version        string
	startTime      time.Time

	closing   chan struct{}
	closeOnce sync.Once
}

// Option configures a Server
type Option func(*Server)

// WithMetrics exposes reg on /metrics and records HTTP metrics in it
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Server) { s.metrics = reg }
}

// WithHealthChecker serves hc on the health routes
func WithHealthChecker(hc *health.HealthChecker) Option {
	return func(s *Server) { s.healthChecker = hc }
}

// WithAuth requires bearer tokens accepted by v on every API route
func WithAuth(v auth.TokenValidator) Option {
	return func(s *Server) { s.validator = v }
}

// WithCORS sets the allowed cross-origin callers
func WithCORS(cfg *middleware.CORSConfig) Option {
	return func(s *Server) { s.corsConfig = cfg }
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMaxBodyBytes bounds request bodies
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// WithVersion sets the version reported by the API
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithHeartbeat sets the keep-alive interval of event streams
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) { s.heartbeat = d }
}

// NewServer creates a new API server in front of gw
func NewServer(gw *gateway.Gateway, opts ...Option) (*Server, error) {
	s := &Server{
		gateway:      gw,
		corsConfig:   middleware.DefaultCORSConfig(),
		maxBodyBytes: DefaultMaxBodyBytes,
		heartbeat:    15 * time.Second,
		version:      "dev",
		startTime:    time.Now(),
		closing:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNopLogger()
	}
	s.logger = s.logger.With(logging.Component("api"))
	if s.healthChecker == nil {
		s.healthChecker = health.NewHealthChecker()
	}

	schema, err := gql.NewSchema(&computeService{server: s})
	if err != nil {
		return nil, fmt.Errorf("build graphql schema: %w", err)
	}
	s.graphqlHandler = gql.NewGraphQLHandler(schema, gql.DefaultMaxDepth)

	if s.corsConfig.AllowsAnyOrigin() {
		s.logger.Warn("CORS allows all origins")
	}
	if s.validator == nil {
		s.logger.Warn("authentication disabled")
	}
	return s, nil
}

// Handler returns the complete handler with its middleware chain
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+ComputePath, s.requireAuth(true, s.handleCompute))
	mux.HandleFunc("GET "+LatestPath, s.requireAuth(false, s.handleLatest))
	mux.HandleFunc("GET "+EventsPath, s.requireAuth(false, s.handleEvents))
	mux.HandleFunc("GET "+VersionPath, s.handleVersion)
	mux.Handle(GraphQLPath, s.requireAuth(false, s.graphqlHandler.ServeHTTP))

	mux.HandleFunc("GET "+HealthPath, s.healthChecker.HTTPHandler())
	mux.HandleFunc("GET "+LivePath, s.healthChecker.LivenessHandler())
	mux.HandleFunc("GET "+ReadyPath, s.healthChecker.ReadinessHandler())
	if s.metrics != nil {
		mux.Handle("GET "+MetricsPath, promhttp.HandlerFor(s.metrics.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	handler = middleware.BodySizeLimit(s.maxBodyBytes, s.respondError)(handler)
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.RequestID()(handler)
	if s.metrics != nil {
		handler = middleware.Metrics(s.metrics,
			ComputePath, LatestPath, EventsPath, VersionPath, GraphQLPath,
			HealthPath, LivePath, ReadyPath, MetricsPath)(handler)
	}
	handler = middleware.CORS(s.corsConfig)(handler)
	handler = middleware.SecurityHeaders(nil)(handler)
	handler = middleware.PanicRecovery(s.logger, s.respondError)(handler)
	return handler
}

// Close ends open event streams. Register it to run when the HTTP server
// begins shutting down.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, VersionResponse{
		Version: s.version,
		Runner:  s.gateway.RunnerName(),
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	})
}
