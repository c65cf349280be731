package service

import (
	"context"
	"log"

	"cargodesk-backend/internal/metrics"
	"cargodesk-backend/internal/model"
)

// OfflineAlerter is told when a staff participant is notified while offline.
type OfflineAlerter interface {
	AlertOffline(chat *model.Chat, recipientID string, msg *model.Message)
}

// FanoutResult lists which recipients got which kind of notice.
type FanoutResult struct {
	Ephemeral []string
	Persisted []string
}

// NotificationFanout notifies every participant except the sender: online
// recipients get an ephemeral realtime notice, offline recipients get a
// persisted notification created at most once per (message, recipient),
// also emitted to their user room.
type NotificationFanout struct {
	notifications NotificationStore
	dispatch      Dispatcher
	alerts        OfflineAlerter
}

func NewNotificationFanout(notifications NotificationStore, dispatch Dispatcher, alerts OfflineAlerter) *NotificationFanout {
	return &NotificationFanout{notifications: notifications, dispatch: dispatch, alerts: alerts}
}

// Fanout never fails the caller; per-recipient errors are logged and counted.
func (f *NotificationFanout) Fanout(ctx context.Context, chat *model.Chat, participants []string, msg *model.Message) FanoutResult {
	var res FanoutResult
	if msg.Kind == model.MessageSystem {
		return res
	}

	preview := msg.Summary()
	for _, rid := range participants {
		if rid == msg.SenderID {
			continue
		}
		notice := model.WSNotice{
			ChatID:     chat.ID,
			MessageID:  msg.ID,
			SenderName: msg.SenderName,
			Preview:    preview,
		}

		if f.dispatch != nil && f.dispatch.IsOnline(rid) {
			f.dispatch.PublishUser(rid, model.NewEvent(model.EventNotificationNew, notice))
			metrics.Notifications.WithLabelValues("ephemeral").Inc()
			res.Ephemeral = append(res.Ephemeral, rid)
			continue
		}

		n := &model.Notification{
			RecipientID: rid,
			Kind:        model.NotificationNewMessage,
			MessageID:   msg.ID,
			ChatID:      chat.ID,
			Preview:     preview,
		}
		created, err := f.notifications.CreateForMessage(ctx, n)
		if err != nil {
			log.Printf("[Fanout] persist notification for %s on %s failed: %v", rid, msg.ID, err)
			metrics.Notifications.WithLabelValues("failed").Inc()
			continue
		}
		if !created {
			metrics.Notifications.WithLabelValues("duplicate").Inc()
			continue
		}
		metrics.Notifications.WithLabelValues("persisted").Inc()
		res.Persisted = append(res.Persisted, rid)

		// A connection opened since the presence check still learns the id.
		if f.dispatch != nil {
			notice.NotificationID = n.ID
			f.dispatch.PublishUser(rid, model.NewEvent(model.EventNotificationNew, notice))
		}

		if f.alerts != nil && rid != chat.CustomerID {
			f.alerts.AlertOffline(chat, rid, msg)
		}
	}
	return res
}

func (f *NotificationFanout) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	list, err := f.notifications.ListForUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}

// MarkRead marks the given notifications, or all of them when ids is empty.
func (f *NotificationFanout) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	return f.notifications.MarkRead(ctx, userID, ids)
}

func (f *NotificationFanout) MarkChatRead(ctx context.Context, userID, chatID string) (int64, error) {
	return f.notifications.MarkChatRead(ctx, userID, chatID)
}
