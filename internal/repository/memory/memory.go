// Package memory is an in-process implementation of the repositories. It
// enforces the same uniqueness rules as the Postgres schema and is used for
// local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/repository"

	"github.com/google/uuid"
)

type participantKey struct{ chatID, userID string }

type notificationKey struct{ messageID, recipientID string }

// DB holds all tables behind one mutex.
type DB struct {
	mu            sync.Mutex
	chats         map[string]*model.Chat
	participants  map[participantKey]time.Time
	messages      map[string][]*model.Message
	notifications []*model.Notification
	notifIndex    map[notificationKey]*model.Notification
	staff         map[string]*model.StaffMember
	now           func() time.Time

	// FailAddParticipant, when set, is returned by AddParticipant. Tests use
	// it to exercise the lazy participant repair.
	FailAddParticipant error
}

func New() *DB {
	return NewWithClock(time.Now)
}

// NewWithClock stamps row timestamps with now instead of the wall clock.
func NewWithClock(now func() time.Time) *DB {
	return &DB{
		chats:        make(map[string]*model.Chat),
		participants: make(map[participantKey]time.Time),
		messages:     make(map[string][]*model.Message),
		notifIndex:   make(map[notificationKey]*model.Notification),
		staff:        make(map[string]*model.StaffMember),
		now:          now,
	}
}

func (db *DB) Chats() *Chats                 { return &Chats{db} }
func (db *DB) Messages() *Messages           { return &Messages{db} }
func (db *DB) Notifications() *Notifications { return &Notifications{db} }
func (db *DB) Staff() *Staff                 { return &Staff{db} }

func copyChat(c *model.Chat) *model.Chat {
	cp := *c
	return &cp
}

// Chats implements the chat and participant tables.
type Chats struct{ db *DB }

func (r *Chats) FindByCustomer(_ context.Context, customerID string, kind model.ChatKind, orderRef *string) (*model.Chat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if c := r.db.findLocked(customerID, kind, orderRef); c != nil {
		return copyChat(c), nil
	}
	return nil, repository.ErrNotFound
}

func (db *DB) findLocked(customerID string, kind model.ChatKind, orderRef *string) *model.Chat {
	for _, c := range db.chats {
		if c.CustomerID != customerID || c.Kind != kind {
			continue
		}
		if kind == model.ChatKindOrder {
			if orderRef == nil || c.OrderRef == nil || *c.OrderRef != *orderRef {
				continue
			}
		}
		return c
	}
	return nil
}

func (r *Chats) Create(_ context.Context, chat *model.Chat) (*model.Chat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.findLocked(chat.CustomerID, chat.Kind, chat.OrderRef) != nil {
		return nil, repository.ErrConflict
	}
	c := copyChat(chat)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := r.db.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	r.db.chats[c.ID] = c
	return copyChat(c), nil
}

func (r *Chats) GetByID(_ context.Context, id string) (*model.Chat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.chats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyChat(c), nil
}

func (r *Chats) List(_ context.Context, f repository.ChatFilter) ([]*model.Chat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*model.Chat
	for _, c := range r.db.chats {
		if f.CustomerID != "" && c.CustomerID != f.CustomerID {
			continue
		}
		if f.ParticipantID != "" {
			if _, ok := r.db.participants[participantKey{c.ID, f.ParticipantID}]; !ok {
				continue
			}
		}
		if f.Kind != "" && c.Kind != f.Kind {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, copyChat(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *Chats) AddParticipant(_ context.Context, chatID, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.FailAddParticipant != nil {
		return r.db.FailAddParticipant
	}
	if _, ok := r.db.chats[chatID]; !ok {
		return repository.ErrNotFound
	}
	key := participantKey{chatID, userID}
	if _, ok := r.db.participants[key]; !ok {
		r.db.participants[key] = r.db.now()
	}
	return nil
}

func (r *Chats) Participants(_ context.Context, chatID string) ([]string, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	type member struct {
		id     string
		joined time.Time
	}
	var members []member
	for k, joined := range r.db.participants {
		if k.chatID == chatID {
			members = append(members, member{k.userID, joined})
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].joined.Equal(members[j].joined) {
			return members[i].id < members[j].id
		}
		return members[i].joined.Before(members[j].joined)
	})
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.id)
	}
	return ids, nil
}

func (r *Chats) IsParticipant(_ context.Context, chatID, userID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	_, ok := r.db.participants[participantKey{chatID, userID}]
	return ok, nil
}

func (r *Chats) TransitionStatus(_ context.Context, chatID string, from, to model.ChatStatus) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.chats[chatID]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = r.db.now().UTC()
	return true, nil
}

func (r *Chats) SetPriority(_ context.Context, chatID, priority string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.chats[chatID]
	if !ok {
		return repository.ErrNotFound
	}
	c.Priority = priority
	c.UpdatedAt = r.db.now().UTC()
	return nil
}

func (r *Chats) Assign(_ context.Context, chatID, staffID string, onlyIfUnassigned bool) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c, ok := r.db.chats[chatID]
	if !ok {
		return false, nil
	}
	if onlyIfUnassigned && c.AssignedStaffID != nil {
		return false, nil
	}
	id := staffID
	c.AssignedStaffID = &id
	c.UpdatedAt = r.db.now().UTC()
	return true, nil
}

func (r *Chats) CountByStatus(_ context.Context) (model.ChatCounts, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var counts model.ChatCounts
	for _, c := range r.db.chats {
		switch c.Status {
		case model.ChatOpen:
			counts.Open++
		case model.ChatPending:
			counts.Pending++
		case model.ChatClosed:
			counts.Closed++
		}
	}
	return counts, nil
}
