package handler

import (
	"cargodesk-backend/internal/middleware"
	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

type NotificationHandler struct {
	support    *service.Support
	production bool
}

func NewNotificationHandler(support *service.Support, production bool) *NotificationHandler {
	return &NotificationHandler{support: support, production: production}
}

// List returns the caller's notifications, newest first.
// GET /api/v1/notifications?unread=true&limit=50
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	list, err := h.support.Fanout.List(c.Context(), middleware.Identity(c).UserID, c.QueryBool("unread", false), c.QueryInt("limit", 50))
	if err != nil {
		return serviceError(c, err, h.production)
	}
	return c.JSON(fiber.Map{"notifications": list})
}

// MarkRead marks the listed notifications read, or all when ids is empty.
// PUT /api/v1/notifications/read
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	var req model.MarkNotificationsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}
	}

	n, err := h.support.Fanout.MarkRead(c.Context(), middleware.Identity(c).UserID, req.IDs)
	if err != nil {
		return serviceError(c, err, h.production)
	}
	return c.JSON(fiber.Map{"ok": true, "updated": n})
}
