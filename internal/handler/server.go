package handler

import (
	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ServerHandler struct {
	authSvc *service.AuthService
}

func NewServerHandler(authSvc *service.AuthService) *ServerHandler {
	return &ServerHandler{authSvc: authSvc}
}

// ValidateToken lets peer services (order system, storefront) check an access
// token the same way this server does.
// POST /api/v1/admin/tokens/validate
func (h *ServerHandler) ValidateToken(c *fiber.Ctx) error {
	var req model.ValidateTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	id, err := h.authSvc.ValidateAccessToken(req.Token)
	if err != nil {
		return c.JSON(model.ValidateTokenResponse{Valid: false})
	}

	return c.JSON(model.ValidateTokenResponse{
		Valid:  true,
		UserID: id.UserID,
		Name:   id.Name,
		Role:   id.Role,
	})
}
