package service

import (
	"context"
	"log"
	"time"

	"cargodesk-backend/internal/metrics"
	"cargodesk-backend/internal/model"
)

// Channel names the ingress a message arrived on.
type Channel string

const (
	ChannelHTTP     Channel = "http"
	ChannelRealtime Channel = "realtime"
)

// DeliveryRouter is the one send path shared by REST and realtime ingress:
// validate, resolve the chat, append, fan out, push to live connections, then
// reopen a closed chat.
type DeliveryRouter struct {
	directory *SessionDirectory
	store     *MessageStore
	lifecycle *ChatLifecycle
	fanout    *NotificationFanout
	dispatch  Dispatcher
}

func NewDeliveryRouter(directory *SessionDirectory, store *MessageStore, lifecycle *ChatLifecycle,
	fanout *NotificationFanout, dispatch Dispatcher) *DeliveryRouter {
	return &DeliveryRouter{
		directory: directory,
		store:     store,
		lifecycle: lifecycle,
		fanout:    fanout,
		dispatch:  dispatch,
	}
}

// Send persists a message from sender. Delivery after the append is best
// effort: the stored message is returned even if notification or realtime
// push fails.
func (r *DeliveryRouter) Send(ctx context.Context, channel Channel, sender model.Identity, req model.SendMessageRequest) (*model.Message, error) {
	content, err := ParseContent(req)
	if err != nil {
		return nil, err
	}

	chat, err := r.resolveChat(ctx, sender, req.ChatID)
	if err != nil {
		return nil, err
	}

	msg, before, err := r.store.appendRecord(ctx, chat.ID, sender, content)
	if err != nil {
		return nil, err
	}
	metrics.MessagesAppended.WithLabelValues(string(channel), string(msg.Kind)).Inc()

	r.deliver(ctx, chat, msg)
	// After deliver, so a reopen notice is pushed behind the message that caused it.
	r.lifecycle.OnActivity(ctx, before, msg)
	return msg, nil
}

func (r *DeliveryRouter) resolveChat(ctx context.Context, sender model.Identity, chatID string) (*model.Chat, error) {
	if sender.Role.IsStaff() {
		if chatID == "" {
			return nil, invalid("chatId is required for staff")
		}
		chat, err := r.directory.Authorize(ctx, sender, chatID)
		if err != nil {
			return nil, err
		}
		r.directory.RegisterStaff(ctx, sender)
		r.lifecycle.Touch(ctx, chat, sender)
		return chat, nil
	}
	if chatID == "" {
		return r.directory.GetOrCreateSupportChat(ctx, sender)
	}
	return r.directory.Authorize(ctx, sender, chatID)
}

func (r *DeliveryRouter) deliver(ctx context.Context, chat *model.Chat, msg *model.Message) {
	participants, err := r.directory.Participants(ctx, chat.ID)
	if err != nil {
		log.Printf("[Delivery] participants of %s: %v", chat.ID, err)
		return
	}
	r.fanout.Fanout(ctx, chat, participants, msg)
	if r.dispatch != nil {
		r.dispatch.PublishChat(chat.ID, participants, model.NewEvent(model.EventMessageNew, msg.View()))
	}
}

// MarkChatRead marks the chat's messages read for reader, clears their
// notifications for it and tells other viewers.
func (r *DeliveryRouter) MarkChatRead(ctx context.Context, reader model.Identity, chatID string) (int64, error) {
	chat, err := r.directory.Authorize(ctx, reader, chatID)
	if err != nil {
		return 0, err
	}
	n, err := r.store.MarkRead(ctx, chat.ID, reader.UserID, time.Time{})
	if err != nil {
		return 0, err
	}
	if _, err := r.fanout.MarkChatRead(ctx, reader.UserID, chat.ID); err != nil {
		log.Printf("[Delivery] clear notifications of %s on %s: %v", reader.UserID, chat.ID, err)
	}
	if n > 0 && r.dispatch != nil {
		r.dispatch.PublishChat(chat.ID, nil, model.NewEvent(model.EventChatRead, map[string]interface{}{
			"chat_id": chat.ID,
			"user_id": reader.UserID,
			"count":   n,
		}))
	}
	return n, nil
}
