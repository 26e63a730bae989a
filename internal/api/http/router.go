package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/oms-chat/internal/api/http/handlers"
	"github.com/spec-kit/oms-chat/internal/auth"
	"github.com/spec-kit/oms-chat/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	TicketChat     *handlers.TicketChatHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)
	api.Get("/tickets/:id/messages", cfg.TicketChat.History)

	presence := api.Group("/chat/presence", auth.RequireRole(domain.RoleAdmin))
	presence.Get("", cfg.TicketChat.Presence)
	presence.Get("/tickets/:id", cfg.TicketChat.TicketPresence)
	presence.Get("/users/:id", cfg.TicketChat.UserPresence)
}
