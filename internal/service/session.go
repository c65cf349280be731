package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"cargodesk-backend/internal/metrics"
	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/repository"

	"golang.org/x/sync/singleflight"
)

// SessionDirectory resolves the single conversation a customer talks in and
// manages chat membership.
//
// Concurrent first contacts are collapsed in-process by a singleflight group
// keyed per customer; across instances the partial unique index on
// (customer_id) decides the winner and losers re-read it.
type SessionDirectory struct {
	chats ChatStore
	staff StaffRoster
	clock Clock
	group singleflight.Group
}

func NewSessionDirectory(chats ChatStore, staff StaffRoster, clock Clock) *SessionDirectory {
	if clock == nil {
		clock = SystemClock
	}
	return &SessionDirectory{chats: chats, staff: staff, clock: clock}
}

// GetOrCreateSupportChat returns the customer's support chat, creating it and
// assigning a staff member on first contact.
func (d *SessionDirectory) GetOrCreateSupportChat(ctx context.Context, customer model.Identity) (*model.Chat, error) {
	return d.getOrCreate(ctx, customer, model.ChatKindSupport, nil)
}

// GetOrCreateOrderChat returns the customer's discussion thread for an order.
func (d *SessionDirectory) GetOrCreateOrderChat(ctx context.Context, customer model.Identity, orderRef string) (*model.Chat, error) {
	orderRef = strings.TrimSpace(orderRef)
	if orderRef == "" {
		return nil, invalid("order reference is required")
	}
	return d.getOrCreate(ctx, customer, model.ChatKindOrder, &orderRef)
}

func (d *SessionDirectory) getOrCreate(ctx context.Context, customer model.Identity, kind model.ChatKind, orderRef *string) (*model.Chat, error) {
	if customer.UserID == "" {
		return nil, invalid("user id is required")
	}
	if customer.Role.IsStaff() {
		return nil, invalid("staff members do not own %s chats", kind)
	}

	key := string(kind) + ":" + customer.UserID
	if orderRef != nil {
		key += ":" + *orderRef
	}
	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		return d.resolve(context.WithoutCancel(ctx), customer, kind, orderRef)
	})
	if err != nil {
		return nil, err
	}
	chat := *v.(*model.Chat)
	return &chat, nil
}

func (d *SessionDirectory) resolve(ctx context.Context, customer model.Identity, kind model.ChatKind, orderRef *string) (*model.Chat, error) {
	chat, err := d.chats.FindByCustomer(ctx, customer.UserID, kind, orderRef)
	if err == nil {
		d.ensureMember(ctx, chat, customer.UserID)
		return chat, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find %s chat: %w", kind, err)
	}

	draft := &model.Chat{
		Kind:       kind,
		CustomerID: customer.UserID,
		Title:      chatTitle(customer, kind, orderRef),
		Status:     model.ChatOpen,
		Priority:   "normal",
		OrderRef:   orderRef,
	}

	created, err := d.chats.Create(ctx, draft)
	if errors.Is(err, repository.ErrConflict) {
		// Lost the race to a concurrent first contact; the winner is authoritative.
		metrics.SessionConflicts.Inc()
		chat, err := d.chats.FindByCustomer(ctx, customer.UserID, kind, orderRef)
		if err != nil {
			return nil, fmt.Errorf("reread %s chat after conflict: %w", kind, err)
		}
		d.ensureMember(ctx, chat, customer.UserID)
		return chat, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create %s chat: %w", kind, err)
	}
	metrics.ChatsCreated.WithLabelValues(string(kind)).Inc()

	d.addParticipantLogged(ctx, created.ID, customer.UserID)
	d.assignNew(ctx, created)

	log.Printf("[Session] created %s chat %s for %s", kind, created.ID, customer.UserID)
	return created, nil
}

// assignNew hands a freshly created chat to the next staff member. It runs
// only after Create wins so a lost race never spends a rotation slot.
func (d *SessionDirectory) assignNew(ctx context.Context, chat *model.Chat) {
	assignee, err := d.staff.NextAssignee(ctx, d.clock.Now())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		log.Printf("[Session] no active staff for chat %s, leaving unassigned", chat.ID)
		return
	case err != nil:
		log.Printf("[Session] staff selection failed: %v", err)
		return
	}

	ok, err := d.chats.Assign(ctx, chat.ID, assignee.UserID, true)
	if err != nil {
		log.Printf("[Session] assign %s to %s failed: %v", chat.ID, assignee.UserID, err)
		return
	}
	if !ok {
		return
	}
	id := assignee.UserID
	chat.AssignedStaffID = &id
	d.addParticipantLogged(ctx, chat.ID, id)
}

func chatTitle(customer model.Identity, kind model.ChatKind, orderRef *string) string {
	name := customer.Name
	if name == "" {
		name = customer.UserID
	}
	if kind == model.ChatKindOrder && orderRef != nil {
		return fmt.Sprintf("Order %s: %s", *orderRef, name)
	}
	return "Support: " + name
}

// AddParticipant adds userID to the chat. Re-adding a member is a no-op.
func (d *SessionDirectory) AddParticipant(ctx context.Context, chatID, userID string) error {
	if chatID == "" || userID == "" {
		return invalid("chat id and user id are required")
	}
	return d.chats.AddParticipant(ctx, chatID, userID)
}

// addParticipantLogged never aborts the caller; a missing member is repaired
// by ensureMember on a later read.
func (d *SessionDirectory) addParticipantLogged(ctx context.Context, chatID, userID string) {
	if err := d.AddParticipant(ctx, chatID, userID); err != nil {
		log.Printf("[Session] add participant %s to %s failed: %v", userID, chatID, err)
	}
}

func (d *SessionDirectory) ensureMember(ctx context.Context, chat *model.Chat, userID string) {
	ok, err := d.chats.IsParticipant(ctx, chat.ID, userID)
	if err != nil {
		log.Printf("[Session] membership check %s/%s failed: %v", chat.ID, userID, err)
		return
	}
	if !ok {
		log.Printf("[Session] repairing missing participant %s in %s", userID, chat.ID)
		d.addParticipantLogged(ctx, chat.ID, userID)
	}
}

// Authorize loads a chat for who. Staff may open any chat; everyone else must
// be a participant, and a miss is reported as ErrNotFound.
func (d *SessionDirectory) Authorize(ctx context.Context, who model.Identity, chatID string) (*model.Chat, error) {
	if chatID == "" {
		return nil, invalid("chat id is required")
	}
	chat, err := d.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, notFound(err)
	}
	if who.Role.IsStaff() {
		return chat, nil
	}

	ok, err := d.chats.IsParticipant(ctx, chat.ID, who.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if chat.CustomerID != who.UserID {
			return nil, ErrNotFound
		}
		log.Printf("[Session] repairing missing participant %s in %s", who.UserID, chat.ID)
		d.addParticipantLogged(ctx, chat.ID, who.UserID)
	}
	return chat, nil
}

// FindSupportChat returns the customer's support chat without creating one.
func (d *SessionDirectory) FindSupportChat(ctx context.Context, customerID string) (*model.Chat, error) {
	chat, err := d.chats.FindByCustomer(ctx, customerID, model.ChatKindSupport, nil)
	if err != nil {
		return nil, notFound(err)
	}
	return chat, nil
}

func (d *SessionDirectory) Participants(ctx context.Context, chatID string) ([]string, error) {
	return d.chats.Participants(ctx, chatID)
}

// ListChats returns every chat for staff and the caller's own chats otherwise.
func (d *SessionDirectory) ListChats(ctx context.Context, who model.Identity, status model.ChatStatus) ([]*model.Chat, error) {
	if status != "" && !status.Valid() {
		return nil, invalid("unknown status %q", status)
	}
	f := repository.ChatFilter{Status: status}
	if !who.Role.IsStaff() {
		f.ParticipantID = who.UserID
	}
	return d.chats.List(ctx, f)
}

// RegisterStaff adds a staff identity to the assignment roster.
func (d *SessionDirectory) RegisterStaff(ctx context.Context, who model.Identity) {
	if !who.Role.IsStaff() {
		return
	}
	if err := d.staff.Register(ctx, who.UserID, who.Name); err != nil {
		log.Printf("[Session] register staff %s failed: %v", who.UserID, err)
	}
}

func (d *SessionDirectory) SetStaff(ctx context.Context, userID, displayName string, active bool) error {
	if userID == "" {
		return invalid("user id is required")
	}
	return d.staff.Upsert(ctx, userID, displayName, active)
}

func (d *SessionDirectory) Staff(ctx context.Context) ([]model.StaffMember, error) {
	return d.staff.List(ctx)
}

func (d *SessionDirectory) Counts(ctx context.Context) (model.ChatCounts, error) {
	return d.chats.CountByStatus(ctx)
}
