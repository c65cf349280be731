package service

import (
	"context"
	"fmt"
	"log"

	"cargodesk-backend/internal/metrics"
	"cargodesk-backend/internal/model"
)

var transitions = map[model.ChatStatus][]model.ChatStatus{
	model.ChatOpen:    {model.ChatPending, model.ChatClosed},
	model.ChatPending: {model.ChatOpen, model.ChatClosed},
	model.ChatClosed:  {model.ChatOpen},
}

var priorities = map[string]bool{"low": true, "normal": true, "high": true, "urgent": true}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to model.ChatStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

const maxTransitionAttempts = 3

// ChatLifecycle owns the open/pending/closed state machine, staff
// assignment and chat export.
type ChatLifecycle struct {
	chats    ChatStore
	store    *MessageStore
	dispatch Dispatcher
	clock    Clock
}

func NewChatLifecycle(chats ChatStore, store *MessageStore, dispatch Dispatcher, clock Clock) *ChatLifecycle {
	if clock == nil {
		clock = SystemClock
	}
	return &ChatLifecycle{chats: chats, store: store, dispatch: dispatch, clock: clock}
}

// OnActivity reopens a chat that was closed when a non-system message
// arrived. chat is the row as it was before that message.
func (l *ChatLifecycle) OnActivity(ctx context.Context, chat *model.Chat, msg *model.Message) {
	if chat == nil || msg.Kind == model.MessageSystem || chat.Status != model.ChatClosed {
		return
	}
	if _, err := l.transition(ctx, chat, model.ChatOpen); err != nil {
		log.Printf("[Lifecycle] reopen %s failed: %v", chat.ID, err)
	}
}

// transition performs chat.Status -> to only if no one else moved the chat
// first. The winner writes exactly one system message.
func (l *ChatLifecycle) transition(ctx context.Context, chat *model.Chat, to model.ChatStatus) (bool, error) {
	from := chat.Status
	if from == to {
		return false, nil
	}
	if !CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	ok, err := l.chats.TransitionStatus(ctx, chat.ID, from, to)
	if err != nil || !ok {
		return false, err
	}
	chat.Status = to
	metrics.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()
	log.Printf("[Lifecycle] chat %s %s -> %s", chat.ID, from, to)

	sys, err := l.store.Append(ctx, chat.ID, model.SystemIdentity, model.MessageContent{
		Kind: model.MessageSystem,
		Body: fmt.Sprintf("Chat status changed to %s", to),
	})
	if err != nil {
		log.Printf("[Lifecycle] system message for %s failed: %v", chat.ID, err)
	}

	if l.dispatch != nil {
		participants, err := l.chats.Participants(ctx, chat.ID)
		if err != nil {
			log.Printf("[Lifecycle] participants of %s: %v", chat.ID, err)
		}
		if sys != nil {
			l.dispatch.PublishChat(chat.ID, participants, model.NewEvent(model.EventMessageNew, sys.View()))
		}
		l.dispatch.PublishChat(chat.ID, participants, model.NewEvent(model.EventChatStatus, model.WSChatStatus{
			ChatID: chat.ID,
			From:   from,
			To:     to,
		}))
	}
	return true, nil
}

// UpdateStatus applies a staff status edit. Concurrent edits resolve
// last-write-wins; every transition that actually happens is recorded once.
func (l *ChatLifecycle) UpdateStatus(ctx context.Context, actor model.Identity, chatID string, req model.ChatStatusRequest) (*model.Chat, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	if !req.Status.Valid() {
		return nil, invalid("status must be one of open, pending, closed")
	}
	if req.Priority != nil && !priorities[*req.Priority] {
		return nil, invalid("unknown priority %q", *req.Priority)
	}
	if req.AssignedTo != nil && *req.AssignedTo == "" {
		return nil, invalid("assignedTo must not be empty")
	}

	chat, err := l.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, notFound(err)
	}
	if chat.Status != req.Status && !CanTransition(chat.Status, req.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, chat.Status, req.Status)
	}

	l.Touch(ctx, chat, actor)

	if req.AssignedTo != nil {
		if _, err := l.chats.Assign(ctx, chat.ID, *req.AssignedTo, false); err != nil {
			return nil, err
		}
		if err := l.chats.AddParticipant(ctx, chat.ID, *req.AssignedTo); err != nil {
			log.Printf("[Lifecycle] add assignee %s to %s failed: %v", *req.AssignedTo, chat.ID, err)
		}
	}
	if req.Priority != nil {
		if err := l.chats.SetPriority(ctx, chat.ID, *req.Priority); err != nil {
			return nil, notFound(err)
		}
	}

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		if chat.Status == req.Status {
			break
		}
		ok, err := l.transition(ctx, chat, req.Status)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if chat, err = l.chats.GetByID(ctx, chatID); err != nil {
			return nil, notFound(err)
		}
	}

	updated, err := l.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, notFound(err)
	}
	return updated, nil
}

// Touch makes staff the owner of an unassigned chat and a participant of it.
func (l *ChatLifecycle) Touch(ctx context.Context, chat *model.Chat, staff model.Identity) {
	if !staff.Role.IsStaff() {
		return
	}
	if chat.AssignedStaffID == nil {
		ok, err := l.chats.Assign(ctx, chat.ID, staff.UserID, true)
		switch {
		case err != nil:
			log.Printf("[Lifecycle] assign %s to %s failed: %v", chat.ID, staff.UserID, err)
		case ok:
			id := staff.UserID
			chat.AssignedStaffID = &id
			log.Printf("[Lifecycle] chat %s assigned to %s", chat.ID, staff.UserID)
		}
	}
	if err := l.chats.AddParticipant(ctx, chat.ID, staff.UserID); err != nil {
		log.Printf("[Lifecycle] add staff %s to %s failed: %v", staff.UserID, chat.ID, err)
	}
}

// Export returns a read-only snapshot of a chat. It never mutates state.
func (l *ChatLifecycle) Export(ctx context.Context, actor model.Identity, chatID string) (*model.ChatExport, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	return l.ExportByID(ctx, chatID)
}

// ExportByID skips the caller check; supportctl uses it directly.
func (l *ChatLifecycle) ExportByID(ctx context.Context, chatID string) (*model.ChatExport, error) {
	chat, err := l.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, notFound(err)
	}
	participants, err := l.chats.Participants(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	msgs, err := l.store.History(ctx, chat.ID)
	if err != nil {
		return nil, err
	}
	if participants == nil {
		participants = []string{}
	}
	return &model.ChatExport{
		ExportedAt:   l.clock.Now().UTC(),
		Chat:         *chat,
		OrderRef:     chat.OrderRef,
		Participants: participants,
		Messages:     model.MessageViews(msgs),
	}, nil
}
