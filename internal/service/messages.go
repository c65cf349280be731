package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"cargodesk-backend/internal/model"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
	maxBodyRunes    = 4000
)

// MessageStore is the single append entry point for every ingress channel.
type MessageStore struct {
	messages MessageLog
	clock    Clock
	pageSize int
}

func NewMessageStore(messages MessageLog, clock Clock) *MessageStore {
	if clock == nil {
		clock = SystemClock
	}
	return &MessageStore{messages: messages, clock: clock, pageSize: DefaultPageSize}
}

// SetPageSize overrides the default listWindow limit.
func (s *MessageStore) SetPageSize(n int) {
	if n > 0 && n <= MaxPageSize {
		s.pageSize = n
	}
}

// ParseContent validates a send request into message content.
func ParseContent(req model.SendMessageRequest) (model.MessageContent, error) {
	kind := req.Type
	if kind == "" {
		kind = model.MessageText
	}
	if !kind.Valid() {
		return model.MessageContent{}, invalid("unsupported message type %q", req.Type)
	}

	body := strings.TrimSpace(req.Content)
	var ref *string
	if req.AttachmentRef != nil && strings.TrimSpace(*req.AttachmentRef) != "" {
		r := strings.TrimSpace(*req.AttachmentRef)
		ref = &r
	}

	switch kind {
	case model.MessageText:
		if body == "" {
			return model.MessageContent{}, invalid("content is required")
		}
	default:
		if ref == nil {
			return model.MessageContent{}, invalid("attachment is required for %s messages", kind)
		}
	}
	if utf8.RuneCountInString(body) > maxBodyRunes {
		return model.MessageContent{}, invalid("content exceeds %d characters", maxBodyRunes)
	}
	return model.MessageContent{Kind: kind, Body: body, AttachmentRef: ref}, nil
}

// Append persists a message with a server-assigned, per-chat strictly
// increasing creation time.
func (s *MessageStore) Append(ctx context.Context, chatID string, sender model.Identity, content model.MessageContent) (*model.Message, error) {
	stored, _, err := s.appendRecord(ctx, chatID, sender, content)
	return stored, err
}

// appendRecord is Append that also returns the chat row as it was before
// the message landed.
func (s *MessageStore) appendRecord(ctx context.Context, chatID string, sender model.Identity, content model.MessageContent) (*model.Message, *model.Chat, error) {
	if content.Kind == model.MessageSystem && sender.Role != model.RoleSystem {
		return nil, nil, invalid("system messages are platform-authored")
	}

	msg := &model.Message{
		ChatID:        chatID,
		SenderID:      sender.UserID,
		SenderName:    sender.Name,
		SenderRole:    sender.Role,
		Kind:          content.Kind,
		Body:          content.Body,
		AttachmentRef: content.AttachmentRef,
	}
	stored, before, err := s.messages.Append(ctx, msg, s.clock.Now())
	if err != nil {
		if nf := notFound(err); nf == ErrNotFound {
			return nil, nil, nf
		}
		return nil, nil, fmt.Errorf("append message: %w", err)
	}
	return stored, before, nil
}

// MarkRead marks every message not authored by readerID and created before
// cutoff as read. A zero cutoff means now.
func (s *MessageStore) MarkRead(ctx context.Context, chatID, readerID string, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		cutoff = s.clock.Now()
	}
	return s.messages.MarkRead(ctx, chatID, readerID, cutoff)
}

// ListWindow returns page (1-based, newest first) of the chat in
// chronological order. Increasing page loads older messages.
func (s *MessageStore) ListWindow(ctx context.Context, chatID string, page, limit int) ([]model.Message, model.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.pageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	total, err := s.messages.Count(ctx, chatID)
	if err != nil {
		return nil, model.Pagination{}, err
	}
	p := model.Pagination{Page: page, Limit: limit, Total: total}

	start, end := windowBounds(total, page, limit)
	if end <= start {
		return []model.Message{}, p, nil
	}
	p.HasMore = start > 0

	msgs, err := s.messages.Slice(ctx, chatID, start, end-start)
	if err != nil {
		return nil, p, err
	}
	return msgs, p, nil
}

func windowBounds(total, page, limit int) (start, end int) {
	// Past the oldest page; also keeps page*limit from overflowing.
	if page > total/limit+1 {
		return 0, 0
	}
	start = total - page*limit
	if start < 0 {
		start = 0
	}
	end = total - (page-1)*limit
	if end < 0 {
		end = 0
	}
	return start, end
}

// History returns the full ordered log of a chat.
func (s *MessageStore) History(ctx context.Context, chatID string) ([]model.Message, error) {
	return s.messages.ListByChat(ctx, chatID)
}

// RecentSupport returns the newest messages across all support chats.
func (s *MessageStore) RecentSupport(ctx context.Context, limit int) ([]model.Message, error) {
	return s.messages.ListRecentByKind(ctx, model.ChatKindSupport, limit)
}
