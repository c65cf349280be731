package handler

import (
	"time"

	"cargodesk-backend/internal/config"
	"cargodesk-backend/internal/middleware"
	"cargodesk-backend/internal/realtime"
	"cargodesk-backend/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Config    *config.Config
	Auth      *service.AuthService
	Support   *service.Support
	Hub       *realtime.Hub
	Health    map[string]Pinger
	StartedAt time.Time
}

// Mount registers every route on app.
func Mount(app *fiber.App, d Deps) {
	production := d.Config.IsProduction()

	healthH := NewHealthHandler(d.Health)
	app.Get("/health", healthH.Health)
	app.Get("/ready", healthH.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")

	// Admin routes go before the protected group
	admin := v1.Group("/admin", middleware.AdminKey(d.Config.AdminKey))
	adminH := NewAdminHandler(d.Support, d.Hub, d.StartedAt)
	admin.Get("/stats", adminH.Stats)
	admin.Post("/announce", adminH.Announce)
	admin.Get("/staff", adminH.ListStaff)
	admin.Put("/staff/:id", adminH.SetStaff)

	serverH := NewServerHandler(d.Auth)
	admin.Post("/tokens/validate", serverH.ValidateToken)

	// Public
	publicH := NewPublicHandler(d.Support, d.Hub)
	v1.Get("/support/status", publicH.Status)

	// JWT-protected routes, catch-all, must be last
	protected := v1.Group("", middleware.Auth(d.Auth))

	chatH := NewChatHandler(d.Support, production)
	chat := protected.Group("/chat")
	chat.Get("/", chatH.ListChats)
	chat.Post("/messages", middleware.RateLimit(60, time.Minute), chatH.SendMessage)
	chat.Get("/messages", chatH.ListMessages)
	chat.Post("/orders/:orderRef", chatH.OpenOrderChat)
	chat.Get("/:chatId", chatH.GetChat)
	chat.Put("/:chatId/status", middleware.RequireStaff(), chatH.UpdateStatus)
	chat.Get("/:chatId/export", middleware.RequireStaff(), chatH.Export)

	notifH := NewNotificationHandler(d.Support, production)
	protected.Get("/notifications", notifH.List)
	protected.Put("/notifications/read", notifH.MarkRead)

	wsH := NewWSHandler(d.Hub, d.Auth, d.Support, d.Config.WSSendRPS, d.Config.WSSendBurst)
	app.Get("/ws", wsH.Upgrade)
}
