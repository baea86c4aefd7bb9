package http

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/farmiq/farmiq-backend/docs"
	"github.com/farmiq/farmiq-backend/internal/infrastructure/http/handlers"
)

// Options configures the base server.
type Options struct {
	Environment    string
	AllowedOrigins []string
	Dependencies   map[string]handlers.PingFunc
	Logger         zerolog.Logger
}

// NewRouter builds the Echo instance with global middleware, tooling
// endpoints and health probes registered. API routes are added on top.
func NewRouter(opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// --- Global middleware ---
	// Metrics wrap the request logger, which runs the error handler, so the
	// recorded code is the status the client received.
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestMetrics())
	e.Use(requestLogger(opts.Logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     opts.AllowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, echo.HeaderCookie, "Idempotency-Key"},
	}))

	// --- Tooling ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler(opts.Environment)
	healthDepsHandler := handlers.NewHealthDependenciesHandler(opts.Dependencies)

	e.GET("/api/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/api/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
