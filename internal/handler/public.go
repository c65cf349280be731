package handler

import (
	"context"
	"time"

	"cargodesk-backend/internal/realtime"
	"cargodesk-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

type PublicHandler struct {
	support *service.Support
	hub     *realtime.Hub
}

func NewPublicHandler(support *service.Support, hub *realtime.Hub) *PublicHandler {
	return &PublicHandler{support: support, hub: hub}
}

// Status tells the storefront whether live support is staffed.
// GET /api/v1/support/status
func (h *PublicHandler) Status(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	staffActive := 0
	if staff, err := h.support.Directory.Staff(ctx); err == nil {
		for _, s := range staff {
			if s.Active && h.hub.IsOnline(s.UserID) {
				staffActive++
			}
		}
	}

	result := fiber.Map{
		"support_status": "offline",
		"staff_online":   staffActive,
	}
	if staffActive > 0 {
		result["support_status"] = "online"
	}

	if counts, err := h.support.Directory.Counts(ctx); err == nil {
		result["queue_open"] = counts.Open
		result["queue_pending"] = counts.Pending
	}

	return c.JSON(result)
}
