package repository

import (
	"context"
	"time"

	"cargodesk-backend/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StaffRepository struct {
	pool *pgxpool.Pool
}

func NewStaffRepository(pool *pgxpool.Pool) *StaffRepository {
	return &StaffRepository{pool: pool}
}

// Register adds a staff member to the roster as active if unknown. Existing
// rows keep their active flag.
func (r *StaffRepository) Register(ctx context.Context, userID, displayName string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO support_staff (user_id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, displayName)
	return err
}

func (r *StaffRepository) Upsert(ctx context.Context, userID, displayName string, active bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO support_staff (user_id, display_name, active)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET display_name = EXCLUDED.display_name, active = EXCLUDED.active
	`, userID, displayName, active)
	return err
}

// NextAssignee picks the active staff member assigned least recently (never
// assigned first, ties broken by user id) and stamps them with now. Rows
// locked by a concurrent pick are skipped.
func (r *StaffRepository) NextAssignee(ctx context.Context, now time.Time) (*model.StaffMember, error) {
	s := &model.StaffMember{}
	err := r.pool.QueryRow(ctx, `
		UPDATE support_staff SET last_assigned_at = $1
		WHERE user_id = (
			SELECT user_id FROM support_staff
			WHERE active
			ORDER BY last_assigned_at ASC NULLS FIRST, user_id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING user_id, display_name, active, last_assigned_at
	`, now).Scan(&s.UserID, &s.DisplayName, &s.Active, &s.LastAssignedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *StaffRepository) List(ctx context.Context) ([]model.StaffMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, display_name, active, last_assigned_at FROM support_staff ORDER BY user_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StaffMember
	for rows.Next() {
		var s model.StaffMember
		if err := rows.Scan(&s.UserID, &s.DisplayName, &s.Active, &s.LastAssignedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
