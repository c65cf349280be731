package repository

import (
	"context"
	"time"

	"cargodesk-backend/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageColumns = `id, chat_id, sender_id, sender_name, sender_role, kind, body, attachment_ref,
	created_at, is_read, read_at`

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func scanMessages(rows pgx.Rows) ([]model.Message, error) {
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.SenderName, &m.SenderRole, &m.Kind, &m.Body,
			&m.AttachmentRef, &m.CreatedAt, &m.IsRead, &m.ReadAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Append persists msg and updates the chat summary in one transaction. The
// chat row lock serialises appends per chat so createdAt stays strictly
// increasing. The returned chat reflects the row before any lifecycle change.
func (r *MessageRepository) Append(ctx context.Context, msg *model.Message, now time.Time) (*model.Message, *model.Chat, error) {
	if _, err := uuid.Parse(msg.ChatID); err != nil {
		return nil, nil, ErrNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	chat, err := scanChat(tx.QueryRow(ctx, `
		SELECT `+chatColumns+` FROM chats WHERE id = $1 FOR UPDATE
	`, msg.ChatID))
	if err != nil {
		return nil, nil, err
	}

	out := *msg
	out.ID = uuid.NewString()
	out.CreatedAt = NextCreatedAt(now, chat.LastMessageAt)
	out.IsRead = false
	out.ReadAt = nil

	if _, err := tx.Exec(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, sender_name, sender_role, kind, body, attachment_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, out.ID, out.ChatID, out.SenderID, out.SenderName, out.SenderRole, out.Kind, out.Body, out.AttachmentRef, out.CreatedAt); err != nil {
		return nil, nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE chats SET last_message = $2, last_message_at = $3, updated_at = $3 WHERE id = $1
	`, chat.ID, out.Summary(), out.CreatedAt); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return &out, chat, nil
}

// MarkRead flags every unread message in the chat authored by someone other
// than readerID and created before cutoff, in a single statement.
func (r *MessageRepository) MarkRead(ctx context.Context, chatID, readerID string, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages SET is_read = TRUE, read_at = $3
		WHERE chat_id = $1 AND sender_id <> $2 AND created_at < $3 AND NOT is_read
	`, chatID, readerID, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepository) Count(ctx context.Context, chatID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE chat_id = $1`, chatID).Scan(&n)
	return n, err
}

// Slice returns limit messages starting at offset in chronological order.
func (r *MessageRepository) Slice(ctx context.Context, chatID string, offset, limit int) ([]model.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC
		OFFSET $2 LIMIT $3
	`, chatID, offset, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (r *MessageRepository) ListByChat(ctx context.Context, chatID string) ([]model.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE chat_id = $1 ORDER BY created_at ASC
	`, chatID)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// ListRecentByKind returns the newest limit messages across all chats of a
// kind, oldest first.
func (r *MessageRepository) ListRecentByKind(ctx context.Context, kind model.ChatKind, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT m.* FROM messages m
			JOIN chats c ON c.id = m.chat_id
			WHERE c.kind = $1
			ORDER BY m.created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, kind, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	rows, err := r.pool.Query(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return &msgs[0], nil
}
