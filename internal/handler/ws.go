package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/realtime"
	"cargodesk-backend/internal/service"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const readTimeout = 60 * time.Second

type WSHandler struct {
	hub     *realtime.Hub
	auth    *service.AuthService
	support *service.Support
	rps     int
	burst   int
}

func NewWSHandler(hub *realtime.Hub, auth *service.AuthService, support *service.Support, rps, burst int) *WSHandler {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = rps
	}
	return &WSHandler{hub: hub, auth: auth, support: support, rps: rps, burst: burst}
}

func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return c.Status(401).JSON(fiber.Map{"error": "token required"})
	}

	id, err := h.auth.ValidateAccessToken(token)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
	}

	c.Locals("identity", id)
	return websocket.New(h.handleConnection)(c)
}

func (h *WSHandler) handleConnection(c *websocket.Conn) {
	id, _ := c.Locals("identity").(model.Identity)
	client := realtime.NewClient(c, id)

	h.hub.Register(client)
	defer h.hub.Unregister(client)

	ctx := context.Background()
	h.support.Directory.RegisterStaff(ctx, id)
	limiter := rate.NewLimiter(rate.Limit(h.rps), h.burst)

	// Writer goroutine
	go func() {
		defer c.Close()
		for msg := range client.Send {
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	c.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			break
		}
		c.SetReadDeadline(time.Now().Add(readTimeout))

		var event model.WSEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			h.reply(client, model.EventError, model.WSError{Error: "malformed event"})
			continue
		}
		h.handleEvent(ctx, client, limiter, &event)
	}
}

func (h *WSHandler) handleEvent(ctx context.Context, client *realtime.Client, limiter *rate.Limiter, event *model.WSEvent) {
	who := client.Identity

	switch event.Type {
	case model.EventPing:
		h.hub.Heartbeat(client)
		h.reply(client, model.EventPong, nil)

	case model.EventSubscribe:
		var ref model.WSChatRef
		if err := json.Unmarshal(event.Data, &ref); err != nil || ref.ChatID == "" {
			h.reply(client, model.EventError, model.WSError{Error: "chat_id is required"})
			return
		}
		if _, err := h.support.Directory.Authorize(ctx, who, ref.ChatID); err != nil {
			h.reply(client, model.EventError, model.WSError{Error: wsErrorText(err)})
			return
		}
		if !h.hub.Subscribe(client, ref.ChatID) {
			log.Printf("[WS] %s subscribe to %s after disconnect", who.UserID, ref.ChatID)
		}

	case model.EventUnsubscribe:
		var ref model.WSChatRef
		if err := json.Unmarshal(event.Data, &ref); err == nil {
			h.hub.Unsubscribe(client, ref.ChatID)
		}

	case model.EventMessageSend:
		var req model.SendMessageRequest
		if err := json.Unmarshal(event.Data, &req); err != nil {
			h.reply(client, model.EventError, model.WSError{Error: "invalid message payload"})
			return
		}
		if !limiter.Allow() {
			h.reply(client, model.EventError, model.WSError{Error: "rate limited", ClientRef: req.ClientRef})
			return
		}
		msg, err := h.support.Router.Send(ctx, service.ChannelRealtime, who, req)
		if err != nil {
			h.reply(client, model.EventError, model.WSError{Error: wsErrorText(err), ClientRef: req.ClientRef})
			return
		}
		h.reply(client, model.EventMessageSent, model.WSMessageSent{ClientRef: req.ClientRef, Message: msg.View()})

	case model.EventChatRead:
		var ref model.WSChatRef
		if err := json.Unmarshal(event.Data, &ref); err != nil || ref.ChatID == "" {
			h.reply(client, model.EventError, model.WSError{Error: "chat_id is required"})
			return
		}
		if _, err := h.support.Router.MarkChatRead(ctx, who, ref.ChatID); err != nil {
			h.reply(client, model.EventError, model.WSError{Error: wsErrorText(err)})
		}

	default:
		log.Printf("[WS] unknown event type %s from %s", event.Type, who.UserID)
	}
}

func (h *WSHandler) reply(client *realtime.Client, eventType string, data any) {
	h.hub.SendTo(client, model.NewEvent(eventType, data))
}

// wsErrorText mirrors the REST status mapping without exposing internals.
func wsErrorText(err error) string {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidTransition):
		return err.Error()
	case errors.Is(err, service.ErrNotFound):
		return "chat not found"
	case errors.Is(err, service.ErrForbidden):
		return "staff only"
	}
	log.Printf("[WS] %v", err)
	return "internal server error"
}
