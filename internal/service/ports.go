package service

import (
	"context"
	"time"

	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/repository"
)

// ChatStore persists chats and their participant sets.
type ChatStore interface {
	FindByCustomer(ctx context.Context, customerID string, kind model.ChatKind, orderRef *string) (*model.Chat, error)
	Create(ctx context.Context, chat *model.Chat) (*model.Chat, error)
	GetByID(ctx context.Context, id string) (*model.Chat, error)
	List(ctx context.Context, f repository.ChatFilter) ([]*model.Chat, error)
	AddParticipant(ctx context.Context, chatID, userID string) error
	Participants(ctx context.Context, chatID string) ([]string, error)
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	TransitionStatus(ctx context.Context, chatID string, from, to model.ChatStatus) (bool, error)
	SetPriority(ctx context.Context, chatID, priority string) error
	Assign(ctx context.Context, chatID, staffID string, onlyIfUnassigned bool) (bool, error)
	CountByStatus(ctx context.Context) (model.ChatCounts, error)
}

// MessageLog is the append-only per-chat message log.
type MessageLog interface {
	Append(ctx context.Context, msg *model.Message, now time.Time) (*model.Message, *model.Chat, error)
	MarkRead(ctx context.Context, chatID, readerID string, cutoff time.Time) (int64, error)
	Count(ctx context.Context, chatID string) (int, error)
	Slice(ctx context.Context, chatID string, offset, limit int) ([]model.Message, error)
	ListByChat(ctx context.Context, chatID string) ([]model.Message, error)
	ListRecentByKind(ctx context.Context, kind model.ChatKind, limit int) ([]model.Message, error)
}

type NotificationStore interface {
	CreateForMessage(ctx context.Context, n *model.Notification) (bool, error)
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)
	MarkChatRead(ctx context.Context, userID, chatID string) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type StaffRoster interface {
	Register(ctx context.Context, userID, displayName string) error
	Upsert(ctx context.Context, userID, displayName string, active bool) error
	NextAssignee(ctx context.Context, now time.Time) (*model.StaffMember, error)
	List(ctx context.Context) ([]model.StaffMember, error)
}

// Dispatcher is the process-wide realtime egress. Implementations never
// block and never report delivery failures.
type Dispatcher interface {
	// PublishChat delivers ev to connections viewing the chat and, for the
	// listed participants, to their connections that are not viewing it.
	PublishChat(chatID string, participants []string, ev *model.WSEvent)
	PublishUser(userID string, ev *model.WSEvent)
	IsOnline(userID string) bool
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}
