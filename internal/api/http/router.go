package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/devmatch/request-service/internal/api/http/handlers"
	"github.com/devmatch/request-service/internal/auth"
	"github.com/devmatch/request-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Requests       *handlers.RequestsHandler
	Matches        *handlers.MatchesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/password/reset/request", cfg.Users.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Users.ConfirmPasswordReset)
	authGroup.Post("/password/change", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleClient, domain.RoleDeveloper), cfg.Users.ChangePassword)

	requests := app.Group("/requests", cfg.AuthMiddleware.Handle)
	requests.Post("", auth.RequireClient(), cfg.Requests.Create)
	requests.Get("", cfg.Requests.List)
	requests.Get("/:id", cfg.Requests.Get)
	requests.Post("/:id/status", cfg.Requests.ChangeStatus)
	requests.Get("/:id/actions", cfg.Requests.Actions)
	requests.Get("/:id/history", cfg.Requests.History)

	requests.Post("/:id/matches", auth.RequireDeveloper(), cfg.Matches.Apply)
	requests.Get("/:id/matches", cfg.Matches.List)
	requests.Post("/:id/abandon", auth.RequireDeveloper(), cfg.Matches.Abandon)

	matches := app.Group("/matches", cfg.AuthMiddleware.Handle)
	matches.Post("/:id/approve", auth.RequireClient(), cfg.Matches.Approve)
	matches.Post("/:id/reject", auth.RequireClient(), cfg.Matches.Reject)
}
