package model

import "time"

type ChatKind string

const (
	ChatKindSupport ChatKind = "support"
	ChatKindOrder   ChatKind = "order-linked"
)

type ChatStatus string

const (
	ChatOpen    ChatStatus = "open"
	ChatPending ChatStatus = "pending"
	ChatClosed  ChatStatus = "closed"
)

func (s ChatStatus) Valid() bool {
	switch s {
	case ChatOpen, ChatPending, ChatClosed:
		return true
	}
	return false
}

// Chat is a conversation row. CustomerID is the originating customer and is
// always a participant.
type Chat struct {
	ID              string     `json:"id"`
	Kind            ChatKind   `json:"kind"`
	CustomerID      string     `json:"customer_id"`
	Title           string     `json:"title"`
	Status          ChatStatus `json:"status"`
	Priority        string     `json:"priority"`
	AssignedStaffID *string    `json:"assigned_staff_id,omitempty"`
	OrderRef        *string    `json:"order_ref,omitempty"`
	LastMessage     string     `json:"last_message"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Participant is a (chat, user) membership record.
type Participant struct {
	ChatID   string    `json:"chat_id"`
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// ChatStatusRequest is the staff payload for PUT /chat/:chatId/status.
type ChatStatusRequest struct {
	Status     ChatStatus `json:"status"`
	Priority   *string    `json:"priority,omitempty"`
	AssignedTo *string    `json:"assignedTo,omitempty"`
}

// ChatCounts summarises the support queue.
type ChatCounts struct {
	Open    int `json:"open"`
	Pending int `json:"pending"`
	Closed  int `json:"closed"`
}
