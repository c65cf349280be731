package memory

import (
	"context"
	"sort"
	"time"

	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/repository"

	"github.com/google/uuid"
)

// Messages implements the message log.
type Messages struct{ db *DB }

func copyMessage(m *model.Message) model.Message {
	cp := *m
	if m.ReadAt != nil {
		t := *m.ReadAt
		cp.ReadAt = &t
	}
	return cp
}

func (r *Messages) Append(_ context.Context, msg *model.Message, now time.Time) (*model.Message, *model.Chat, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	chat, ok := r.db.chats[msg.ChatID]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	before := copyChat(chat)

	out := *msg
	out.ID = uuid.NewString()
	out.CreatedAt = repository.NextCreatedAt(now, chat.LastMessageAt)
	out.IsRead = false
	out.ReadAt = nil
	stored := out
	r.db.messages[chat.ID] = append(r.db.messages[chat.ID], &stored)

	at := out.CreatedAt
	chat.LastMessage = out.Summary()
	chat.LastMessageAt = &at
	chat.UpdatedAt = at
	return &out, before, nil
}

func (r *Messages) MarkRead(_ context.Context, chatID, readerID string, cutoff time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, m := range r.db.messages[chatID] {
		if m.IsRead || m.SenderID == readerID || !m.CreatedAt.Before(cutoff) {
			continue
		}
		at := cutoff
		m.IsRead = true
		m.ReadAt = &at
		n++
	}
	return n, nil
}

func (r *Messages) Count(_ context.Context, chatID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.messages[chatID]), nil
}

func (r *Messages) Slice(_ context.Context, chatID string, offset, limit int) ([]model.Message, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	all := r.db.messages[chatID]
	if offset >= len(all) || limit <= 0 {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]model.Message, 0, end-offset)
	for _, m := range all[offset:end] {
		out = append(out, copyMessage(m))
	}
	return out, nil
}

func (r *Messages) ListByChat(ctx context.Context, chatID string) ([]model.Message, error) {
	return r.Slice(ctx, chatID, 0, int(^uint(0)>>1))
}

func (r *Messages) ListRecentByKind(_ context.Context, kind model.ChatKind, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Message
	for chatID, msgs := range r.db.messages {
		if c, ok := r.db.chats[chatID]; !ok || c.Kind != kind {
			continue
		}
		for _, m := range msgs {
			out = append(out, copyMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *Messages) GetByID(_ context.Context, id string) (*model.Message, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, msgs := range r.db.messages {
		for _, m := range msgs {
			if m.ID == id {
				cp := copyMessage(m)
				return &cp, nil
			}
		}
	}
	return nil, repository.ErrNotFound
}
