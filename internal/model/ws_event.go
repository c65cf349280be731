package model

import "encoding/json"

// Realtime event names.
const (
	EventPing            = "ping"
	EventPong            = "pong"
	EventSubscribe       = "subscribe"
	EventUnsubscribe     = "unsubscribe"
	EventMessageSend     = "message:send"
	EventMessageSent     = "message:sent"
	EventMessageNew      = "message:new"
	EventChatRead        = "chat:read"
	EventChatStatus      = "chat:status"
	EventNotificationNew = "notification:new"
	EventError           = "error"
	EventAnnounce        = "server:announce"
)

type WSEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals data into an event. Marshal failures yield an event
// without data.
func NewEvent(eventType string, data any) *WSEvent {
	ev := &WSEvent{Type: eventType}
	if data == nil {
		return ev
	}
	if raw, err := json.Marshal(data); err == nil {
		ev.Data = raw
	}
	return ev
}

type WSAnnounce struct {
	Message string `json:"message"`
}

// WSChatRef is the data of subscribe, unsubscribe and chat:read.
type WSChatRef struct {
	ChatID string `json:"chat_id"`
}

// WSMessageSent acknowledges a realtime send.
type WSMessageSent struct {
	ClientRef string      `json:"clientRef,omitempty"`
	Message   MessageView `json:"message"`
}

// WSNotice is the lightweight notification:new payload. NotificationID is
// empty for ephemeral notices sent to online recipients.
type WSNotice struct {
	NotificationID string `json:"notificationId,omitempty"`
	ChatID         string `json:"chatId"`
	MessageID      string `json:"messageId"`
	SenderName     string `json:"senderName"`
	Preview        string `json:"preview"`
}

// WSChatStatus announces a lifecycle transition.
type WSChatStatus struct {
	ChatID string     `json:"chatId"`
	From   ChatStatus `json:"from"`
	To     ChatStatus `json:"to"`
}

type WSError struct {
	Error     string `json:"error"`
	ClientRef string `json:"clientRef,omitempty"`
}
