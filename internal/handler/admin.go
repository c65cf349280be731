package handler

import (
	"time"

	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/realtime"
	"cargodesk-backend/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	support   *service.Support
	hub       *realtime.Hub
	startedAt time.Time
}

func NewAdminHandler(support *service.Support, hub *realtime.Hub, startedAt time.Time) *AdminHandler {
	return &AdminHandler{support: support, hub: hub, startedAt: startedAt}
}

func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	counts, err := h.support.Directory.Counts(c.Context())
	if err != nil {
		return serviceError(c, err, true)
	}
	total := counts.Open + counts.Pending + counts.Closed

	return c.JSON(fiber.Map{
		"chats":       counts,
		"chats_total": humanize.Comma(int64(total)),
		"online":      h.hub.OnlineCount(),
		"started":     humanize.Time(h.startedAt),
		"started_at":  h.startedAt.UTC(),
	})
}

func (h *AdminHandler) Announce(c *fiber.Ctx) error {
	var req model.WSAnnounce
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	if req.Message == "" {
		return c.Status(400).JSON(fiber.Map{"error": "message is required"})
	}

	h.hub.Broadcast(model.NewEvent(model.EventAnnounce, req))
	return c.JSON(fiber.Map{"ok": true, "online": h.hub.OnlineCount()})
}

func (h *AdminHandler) ListStaff(c *fiber.Ctx) error {
	staff, err := h.support.Directory.Staff(c.Context())
	if err != nil {
		return serviceError(c, err, true)
	}
	return c.JSON(fiber.Map{"staff": staff})
}

// SetStaff adds a staff member to the roster or toggles their availability.
// PUT /api/v1/admin/staff/:id
func (h *AdminHandler) SetStaff(c *fiber.Ctx) error {
	var req model.StaffUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.support.Directory.SetStaff(c.Context(), c.Params("id"), req.DisplayName, req.Active); err != nil {
		return serviceError(c, err, true)
	}
	return c.JSON(fiber.Map{"ok": true})
}
