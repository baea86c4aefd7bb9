package api

import (
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/farmiq/farmiq-backend/internal/api/handler"
	"github.com/farmiq/farmiq-backend/internal/api/middleware"
	"github.com/farmiq/farmiq-backend/internal/core/domain"
	"github.com/farmiq/farmiq-backend/internal/core/ports"
)

// Dependencies are the services the API routes are served from.
type Dependencies struct {
	Auth          ports.AuthService
	Sessions      ports.SessionService
	Installations ports.InstallationService
	Cookie        middleware.SessionCookie
	Logger        zerolog.Logger
}

// RegisterRoutes installs the error handler, the validator and every /api
// route on e.
func RegisterRoutes(e *echo.Echo, deps Dependencies) {
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)
	e.Validator = handler.NewValidator()

	authHandler := handler.NewAuthHandler(deps.Auth, deps.Sessions, deps.Cookie)
	installationHandler := handler.NewInstallationHandler(deps.Installations)

	requireAuth := middleware.RequireAuth()

	g := e.Group("/api", middleware.LoadSession(deps.Sessions, deps.Cookie))

	// --- Auth routes ---
	g.POST("/auth/register", authHandler.Register)
	g.POST("/auth/login", authHandler.Login)
	g.GET("/auth/session", authHandler.Session)
	g.GET("/auth/user/:id", authHandler.GetUser, requireAuth)
	g.POST("/auth/logout", authHandler.Logout)

	// --- Role dashboards ---
	for _, role := range domain.Roles {
		g.GET("/"+string(role)+"/dashboard", handler.Dashboard(role), requireAuth, middleware.RBAC(role))
	}

	// --- IoT installation workflow ---
	iot := g.Group("/iot", requireAuth)
	farmerOnly := middleware.RBAC(domain.RoleFarmer)
	iot.GET("/status", installationHandler.Status, farmerOnly)
	iot.POST("/request", installationHandler.Create, farmerOnly)
	iot.POST("/reschedule", installationHandler.Reschedule, farmerOnly)
	iot.POST("/cancel", installationHandler.Cancel, farmerOnly)
	iot.POST("/mark-installed", installationHandler.MarkInstalled, middleware.RBAC(domain.RoleAdmin))
}
