package handler

import (
	"errors"
	"fmt"
	"log"

	"cargodesk-backend/internal/middleware"
	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/service"

	"github.com/gofiber/fiber/v2"
)

const recentSupportLimit = 200

type ChatHandler struct {
	support    *service.Support
	production bool
}

func NewChatHandler(support *service.Support, production bool) *ChatHandler {
	return &ChatHandler{support: support, production: production}
}

// SendMessage appends a message to the caller's support chat, or to chatId.
// POST /api/v1/chat/messages
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req model.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	msg, err := h.support.Router.Send(c.Context(), service.ChannelHTTP, middleware.Identity(c), req)
	if err != nil {
		return h.chatError(c, err)
	}
	return c.Status(201).JSON(msg.View())
}

// ListMessages returns the caller's support chat history, or recent messages
// across all support chats for staff.
// GET /api/v1/chat/messages
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	who := middleware.Identity(c)

	if who.Role.IsStaff() {
		msgs, err := h.support.Messages.RecentSupport(c.Context(), c.QueryInt("limit", recentSupportLimit))
		if err != nil {
			return h.chatError(c, err)
		}
		return c.JSON(fiber.Map{"chatId": nil, "messages": model.MessageViews(msgs)})
	}

	chat, err := h.support.Directory.FindSupportChat(c.Context(), who.UserID)
	if errors.Is(err, service.ErrNotFound) {
		return c.JSON(fiber.Map{"chatId": nil, "messages": []model.MessageView{}})
	}
	if err != nil {
		return h.chatError(c, err)
	}
	// Authorize repairs a missing customer membership.
	if _, err := h.support.Directory.Authorize(c.Context(), who, chat.ID); err != nil {
		return h.chatError(c, err)
	}

	msgs, err := h.support.Messages.History(c.Context(), chat.ID)
	if err != nil {
		return h.chatError(c, err)
	}
	return c.JSON(fiber.Map{"chatId": chat.ID, "messages": model.MessageViews(msgs)})
}

// ListChats returns the chat queue for staff and the caller's own chats
// otherwise.
// GET /api/v1/chat?status=open
func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	chats, err := h.support.Directory.ListChats(c.Context(), middleware.Identity(c), model.ChatStatus(c.Query("status")))
	if err != nil {
		return h.chatError(c, err)
	}
	if chats == nil {
		chats = []*model.Chat{}
	}
	return c.JSON(fiber.Map{"chats": chats})
}

// OpenOrderChat resolves the caller's discussion thread for an order.
// POST /api/v1/chat/orders/:orderRef
func (h *ChatHandler) OpenOrderChat(c *fiber.Ctx) error {
	chat, err := h.support.Directory.GetOrCreateOrderChat(c.Context(), middleware.Identity(c), c.Params("orderRef"))
	if err != nil {
		return h.chatError(c, err)
	}
	return c.JSON(chat)
}

// GetChat returns a page of the chat and marks what the caller has now seen
// as read.
// GET /api/v1/chat/:chatId?page=1&limit=50
func (h *ChatHandler) GetChat(c *fiber.Ctx) error {
	who := middleware.Identity(c)
	chatID := c.Params("chatId")

	if _, err := h.support.Router.MarkChatRead(c.Context(), who, chatID); err != nil {
		return h.chatError(c, err)
	}
	chat, err := h.support.Directory.Authorize(c.Context(), who, chatID)
	if err != nil {
		return h.chatError(c, err)
	}

	msgs, page, err := h.support.Messages.ListWindow(c.Context(), chat.ID, c.QueryInt("page", 1), c.QueryInt("limit", 0))
	if err != nil {
		return h.chatError(c, err)
	}
	return c.JSON(fiber.Map{
		"chat":       chat,
		"messages":   model.MessageViews(msgs),
		"pagination": page,
	})
}

// UpdateStatus is the staff status edit.
// PUT /api/v1/chat/:chatId/status
func (h *ChatHandler) UpdateStatus(c *fiber.Ctx) error {
	var req model.ChatStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	chat, err := h.support.Lifecycle.UpdateStatus(c.Context(), middleware.Identity(c), c.Params("chatId"), req)
	if err != nil {
		return h.chatError(c, err)
	}
	return c.JSON(chat)
}

// Export downloads a snapshot of the chat.
// GET /api/v1/chat/:chatId/export
func (h *ChatHandler) Export(c *fiber.Ctx) error {
	exp, err := h.support.Lifecycle.Export(c.Context(), middleware.Identity(c), c.Params("chatId"))
	if err != nil {
		return h.chatError(c, err)
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="chat-%s.json"`, exp.Chat.ID))
	return c.JSON(exp)
}

func (h *ChatHandler) chatError(c *fiber.Ctx, err error) error {
	return serviceError(c, err, h.production)
}

func serviceError(c *fiber.Ctx, err error, production bool) error {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidTransition):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "chat not found"})
	case errors.Is(err, service.ErrForbidden):
		return c.Status(403).JSON(fiber.Map{"error": "staff only"})
	default:
		log.Printf("[Chat] %s %s: %v", c.Method(), c.Path(), err)
		if production {
			return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
		}
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
}
