package repository

import (
	"context"
	"time"

	"cargodesk-backend/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// CreateForMessage inserts n unless one already exists for the same
// (message, recipient) pair. The boolean reports whether a row was written.
func (r *NotificationRepository) CreateForMessage(ctx context.Context, n *model.Notification) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, recipient_id, kind, message_id, chat_id, preview)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id, recipient_id) DO NOTHING
		RETURNING created_at
	`, n.ID, n.RecipientID, n.Kind, n.MessageID, n.ChatID, n.Preview).Scan(&n.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, recipient_id, kind, message_id, chat_id, preview, created_at, read
		FROM notifications
		WHERE recipient_id = $1 AND ($2 = FALSE OR read = FALSE)
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Kind, &n.MessageID, &n.ChatID, &n.Preview, &n.CreatedAt, &n.Read); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags the user's notifications read; an empty ids slice means all.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		tag, err := r.pool.Exec(ctx, `
			UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND NOT read
		`, userID)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}
	valid := ids[:0:0]
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE recipient_id = $1 AND id = ANY($2::uuid[]) AND NOT read
	`, userID, valid)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) MarkChatRead(ctx context.Context, userID, chatID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE recipient_id = $1 AND chat_id = $2 AND NOT read
	`, userID, chatID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *NotificationRepository) CountForMessage(ctx context.Context, messageID, recipientID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE message_id = $1 AND recipient_id = $2
	`, messageID, recipientID).Scan(&n)
	return n, err
}

// DeleteReadBefore removes read notifications created before cutoff.
func (r *NotificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM notifications WHERE read = TRUE AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
