package model

import "time"

type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageFile   MessageKind = "file"
	MessageImage  MessageKind = "image"
	MessageSystem MessageKind = "system"
)

// Valid reports whether k may be sent by a user. System messages are
// platform-authored only.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageText, MessageFile, MessageImage:
		return true
	}
	return false
}

// Message is an immutable chat log entry; only IsRead/ReadAt change after insert.
type Message struct {
	ID            string      `json:"id"`
	ChatID        string      `json:"chat_id"`
	SenderID      string      `json:"sender_id"`
	SenderName    string      `json:"sender_name"`
	SenderRole    Role        `json:"sender_role"`
	Kind          MessageKind `json:"kind"`
	Body          string      `json:"body"`
	AttachmentRef *string     `json:"attachment_ref,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	IsRead        bool        `json:"is_read"`
	ReadAt        *time.Time  `json:"read_at,omitempty"`
}

// MessageContent is what a sender supplies; everything else is server-assigned.
type MessageContent struct {
	Kind          MessageKind
	Body          string
	AttachmentRef *string
}

// SendMessageRequest is the body of POST /chat/messages and the data of a
// realtime message:send event.
type SendMessageRequest struct {
	ChatID        string      `json:"chatId,omitempty"`
	Content       string      `json:"content"`
	Type          MessageKind `json:"type"`
	AttachmentRef *string     `json:"attachmentRef,omitempty"`
	ClientRef     string      `json:"clientRef,omitempty"`
}

// MessageView is the wire shape of a message for both REST and realtime.
type MessageView struct {
	ID            string      `json:"id"`
	ChatID        string      `json:"chatId"`
	SenderID      string      `json:"senderId"`
	SenderName    string      `json:"senderName"`
	SenderRole    Role        `json:"senderRole"`
	Content       string      `json:"content"`
	Type          MessageKind `json:"type"`
	AttachmentRef *string     `json:"attachmentRef,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
	Status        string      `json:"status"`
}

func (m *Message) View() MessageView {
	status := "sent"
	if m.IsRead {
		status = "read"
	}
	return MessageView{
		ID:            m.ID,
		ChatID:        m.ChatID,
		SenderID:      m.SenderID,
		SenderName:    m.SenderName,
		SenderRole:    m.SenderRole,
		Content:       m.Body,
		Type:          m.Kind,
		AttachmentRef: m.AttachmentRef,
		Timestamp:     m.CreatedAt,
		Status:        status,
	}
}

func MessageViews(msgs []Message) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		out = append(out, msgs[i].View())
	}
	return out
}

// Pagination describes a listWindow page.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

const summaryMaxRunes = 120

// Summary is the chat list preview for m.
func (m *Message) Summary() string {
	switch m.Kind {
	case MessageFile:
		return "[file]"
	case MessageImage:
		return "[image]"
	}
	r := []rune(m.Body)
	if len(r) > summaryMaxRunes {
		return string(r[:summaryMaxRunes]) + "…"
	}
	return m.Body
}
