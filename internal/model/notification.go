package model

import "time"

const NotificationNewMessage = "new_message"

// Notification is a persisted async notice for a recipient who was offline
// when the source message was sent.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Kind        string    `json:"kind"`
	MessageID   string    `json:"message_id"`
	ChatID      string    `json:"chat_id"`
	Preview     string    `json:"preview"`
	CreatedAt   time.Time `json:"created_at"`
	Read        bool      `json:"read"`
}

// MarkNotificationsRequest is the body of PUT /notifications/read. An empty
// IDs list marks everything read.
type MarkNotificationsRequest struct {
	IDs []string `json:"ids"`
}
