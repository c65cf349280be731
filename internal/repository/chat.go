package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cargodesk-backend/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const chatColumns = `id, kind, customer_id, title, status, priority, assigned_staff_id, order_ref,
	last_message, last_message_at, created_at, updated_at`

type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func scanChat(row pgx.Row) (*model.Chat, error) {
	c := &model.Chat{}
	err := row.Scan(&c.ID, &c.Kind, &c.CustomerID, &c.Title, &c.Status, &c.Priority, &c.AssignedStaffID,
		&c.OrderRef, &c.LastMessage, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// FindByCustomer returns the customer's chat of the given kind. orderRef is
// only consulted for order-linked chats.
func (r *ChatRepository) FindByCustomer(ctx context.Context, customerID string, kind model.ChatKind, orderRef *string) (*model.Chat, error) {
	if kind == model.ChatKindOrder {
		if orderRef == nil {
			return nil, ErrNotFound
		}
		return scanChat(r.pool.QueryRow(ctx, `
			SELECT `+chatColumns+` FROM chats
			WHERE customer_id = $1 AND kind = $2 AND order_ref = $3
		`, customerID, kind, *orderRef))
	}
	return scanChat(r.pool.QueryRow(ctx, `
		SELECT `+chatColumns+` FROM chats
		WHERE customer_id = $1 AND kind = $2
	`, customerID, kind))
}

// Create inserts a chat. A concurrent insert for the same customer surfaces
// as ErrConflict via the partial unique indexes.
func (r *ChatRepository) Create(ctx context.Context, chat *model.Chat) (*model.Chat, error) {
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}
	c, err := scanChat(r.pool.QueryRow(ctx, `
		INSERT INTO chats (id, kind, customer_id, title, status, priority, assigned_staff_id, order_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+chatColumns,
		chat.ID, chat.Kind, chat.CustomerID, chat.Title, chat.Status, chat.Priority, chat.AssignedStaffID, chat.OrderRef))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return c, nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return scanChat(r.pool.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = $1`, id))
}

func (r *ChatRepository) List(ctx context.Context, f ChatFilter) ([]*model.Chat, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}

	var conditions []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if f.CustomerID != "" {
		add("customer_id = $%d", f.CustomerID)
	}
	if f.ParticipantID != "" {
		add("id IN (SELECT chat_id FROM chat_participants WHERE user_id = $%d)", f.ParticipantID)
	}
	if f.Kind != "" {
		add("kind = $%d", f.Kind)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, f.Limit)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM chats %s
		ORDER BY updated_at DESC
		LIMIT $%d
	`, chatColumns, where, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*model.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// AddParticipant is insert-if-absent; re-adding a member is a no-op.
func (r *ChatRepository) AddParticipant(ctx context.Context, chatID, userID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_participants (chat_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (chat_id, user_id) DO NOTHING
	`, chatID, userID)
	return err
}

func (r *ChatRepository) Participants(ctx context.Context, chatID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id FROM chat_participants WHERE chat_id = $1 ORDER BY joined_at, user_id
	`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ChatRepository) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2)
	`, chatID, userID).Scan(&ok)
	return ok, err
}

// TransitionStatus moves the chat from -> to only if it is still in from.
// The boolean reports whether this call performed the transition.
func (r *ChatRepository) TransitionStatus(ctx context.Context, chatID string, from, to model.ChatStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE chats SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, chatID, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ChatRepository) SetPriority(ctx context.Context, chatID, priority string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE chats SET priority = $2, updated_at = NOW() WHERE id = $1
	`, chatID, priority)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Assign sets the owning staff member. With onlyIfUnassigned the update is
// skipped when someone already owns the chat.
func (r *ChatRepository) Assign(ctx context.Context, chatID, staffID string, onlyIfUnassigned bool) (bool, error) {
	query := `UPDATE chats SET assigned_staff_id = $2, updated_at = NOW() WHERE id = $1`
	if onlyIfUnassigned {
		query += ` AND assigned_staff_id IS NULL`
	}
	tag, err := r.pool.Exec(ctx, query, chatID, staffID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ChatRepository) CountByStatus(ctx context.Context) (model.ChatCounts, error) {
	var counts model.ChatCounts
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM chats GROUP BY status`)
	if err != nil {
		return counts, err
	}
	defer rows.Close()

	for rows.Next() {
		var status model.ChatStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return counts, err
		}
		switch status {
		case model.ChatOpen:
			counts.Open = n
		case model.ChatPending:
			counts.Pending = n
		case model.ChatClosed:
			counts.Closed = n
		}
	}
	return counts, rows.Err()
}

// NextCreatedAt keeps createdAt strictly increasing within a chat at the
// microsecond precision Postgres stores.
func NextCreatedAt(now time.Time, last *time.Time) time.Time {
	t := now.UTC().Truncate(time.Microsecond)
	if last != nil && !t.After(*last) {
		t = last.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return t
}
