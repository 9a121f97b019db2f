package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"ascendfit/internal/core"
	"ascendfit/internal/observability"
)

// FunctionsPrefix is the route group the feature endpoints live under
const FunctionsPrefix = "/functions/v1"

const defaultMetricsPath = "/metrics"

// corsAllowHeaders are the headers browser clients send with every call
var corsAllowHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MasterKey     string // Optional: service key required on feature and history routes
	BodySizeLimit string // echo size string, e.g. "25M"
	AllowOrigins  []string

	// RateLimitRPS enables per-client rate limiting when positive
	RateLimitRPS   float64
	RateLimitBurst int

	Metrics         *observability.Metrics // nil disables the metrics endpoint and middleware
	MetricsEndpoint string                 // HTTP path for metrics endpoint (default: /metrics)

	// SentryEnabled attaches a Sentry hub to every request
	SentryEnabled bool

	// SwaggerEnabled mounts the API docs UI under /swagger/
	SwaggerEnabled bool
}

// New creates a new HTTP server
func New(handler *Handler, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	metricsPath := ""
	authSkipPaths := []string{"/health"}
	if cfg.Metrics != nil {
		metricsPath = normalizeMetricsPath(cfg.MetricsEndpoint)
		authSkipPaths = append(authSkipPaths, metricsPath)
	}

	// Global middleware stack (order matters)
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(core.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	if cfg.SentryEnabled {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true, Timeout: 2 * time.Second}))
	}
	if cfg.Metrics != nil {
		e.Use(cfg.Metrics.Middleware())
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: corsAllowHeaders,
	}))

	bodyLimit := cfg.BodySizeLimit
	if bodyLimit == "" {
		bodyLimit = "25M"
	}
	e.Use(middleware.BodyLimit(bodyLimit))

	if cfg.RateLimitRPS > 0 {
		e.Use(rateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, authSkipPaths))
	}

	// Authentication (skips public paths)
	if cfg.MasterKey != "" {
		e.Use(AuthMiddleware(cfg.MasterKey, authSkipPaths))
	}

	// Public routes
	e.GET("/health", handler.Health)
	if cfg.Metrics != nil {
		e.GET(metricsPath, echo.WrapHandler(cfg.Metrics.Handler()))
	}

	// Feature routes
	fn := e.Group(FunctionsPrefix)
	fn.POST("/chat-assistant", handler.Chat)
	fn.POST("/generate-meal-plan", handler.MealPlan)
	fn.POST("/generate-workout", handler.Workout)
	fn.POST("/analyze-video", handler.Video)
	fn.POST("/analyze-posture-realtime", handler.Posture)

	e.GET("/v1/history", handler.History)

	if cfg.SwaggerEnabled {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// normalizeMetricsPath cleans the configured path and refuses paths that
// would shadow API routes.
func normalizeMetricsPath(p string) string {
	if p == "" {
		return defaultMetricsPath
	}
	p = path.Clean("/" + p)
	if p == "/" || strings.HasPrefix(p, "/v1/") || strings.HasPrefix(p, FunctionsPrefix+"/") || p == "/health" {
		slog.Warn("metrics endpoint conflicts with API routes, using default", "configured", p, "path", defaultMetricsPath)
		return defaultMetricsPath
	}
	return p
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

func rateLimiter(rps float64, burst int, skipPaths []string) echo.MiddlewareFunc {
	if burst <= 0 {
		burst = int(rps) + 1
	}
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			_, ok := skip[c.Request().URL.Path]
			return ok || c.Request().Method == http.MethodOptions
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return handleError(c, core.NewInternalError("failed to identify client", err))
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error": "Too many requests. Please slow down.",
				"code":  core.ErrorKindRateLimit,
			})
		},
	})
}

// errorHandler renders echo errors (unknown routes, oversized bodies) in the
// same {error, code} shape as handler errors.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = handleError(c, err)
		return
	}

	code := core.ErrorKindInternal
	switch he.Code {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		code = core.ErrorKindNotFound
	case http.StatusUnauthorized:
		code = core.ErrorKindAuthentication
	case http.StatusTooManyRequests:
		code = core.ErrorKindRateLimit
	default:
		if he.Code < http.StatusInternalServerError {
			code = core.ErrorKindValidation
		}
	}
	msg := http.StatusText(he.Code)
	if s, ok := he.Message.(string); ok && s != "" {
		msg = s
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(he.Code)
		return
	}
	_ = c.JSON(he.Code, map[string]any{"error": msg, "code": code})
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
