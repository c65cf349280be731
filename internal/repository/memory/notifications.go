package memory

import (
	"context"
	"sort"
	"time"

	"cargodesk-backend/internal/model"

	"github.com/google/uuid"
)

// Notifications implements the notification table keyed by
// (message, recipient).
type Notifications struct{ db *DB }

func (r *Notifications) CreateForMessage(_ context.Context, n *model.Notification) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := notificationKey{n.MessageID, n.RecipientID}
	if _, ok := r.db.notifIndex[key]; ok {
		return false, nil
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = r.db.now().UTC()
	stored := *n
	r.db.notifications = append(r.db.notifications, &stored)
	r.db.notifIndex[key] = &stored
	return true, nil
}

func (r *Notifications) ListForUser(_ context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Notification
	for _, n := range r.db.notifications {
		if n.RecipientID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, *n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Notifications) MarkRead(_ context.Context, userID string, ids []string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for _, notif := range r.db.notifications {
		if notif.RecipientID != userID || notif.Read {
			continue
		}
		if len(ids) > 0 && !want[notif.ID] {
			continue
		}
		notif.Read = true
		n++
	}
	return n, nil
}

func (r *Notifications) MarkChatRead(_ context.Context, userID, chatID string) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, notif := range r.db.notifications {
		if notif.RecipientID == userID && notif.ChatID == chatID && !notif.Read {
			notif.Read = true
			n++
		}
	}
	return n, nil
}

func (r *Notifications) CountForMessage(_ context.Context, messageID, recipientID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	count := 0
	for _, n := range r.db.notifications {
		if n.MessageID == messageID && n.RecipientID == recipientID {
			count++
		}
	}
	return count, nil
}

func (r *Notifications) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.notifications[:0]
	var n int64
	for _, notif := range r.db.notifications {
		if notif.Read && notif.CreatedAt.Before(cutoff) {
			delete(r.db.notifIndex, notificationKey{notif.MessageID, notif.RecipientID})
			n++
			continue
		}
		kept = append(kept, notif)
	}
	r.db.notifications = kept
	return n, nil
}

