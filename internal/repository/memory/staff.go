package memory

import (
	"context"
	"sort"
	"time"

	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/repository"
)

// Staff implements the support roster.
type Staff struct{ db *DB }

func (r *Staff) Register(_ context.Context, userID, displayName string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.staff[userID]; !ok {
		r.db.staff[userID] = &model.StaffMember{UserID: userID, DisplayName: displayName, Active: true}
	}
	return nil
}

func (r *Staff) Upsert(_ context.Context, userID, displayName string, active bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if s, ok := r.db.staff[userID]; ok {
		s.DisplayName = displayName
		s.Active = active
		return nil
	}
	r.db.staff[userID] = &model.StaffMember{UserID: userID, DisplayName: displayName, Active: active}
	return nil
}

func (r *Staff) NextAssignee(_ context.Context, now time.Time) (*model.StaffMember, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var best *model.StaffMember
	for _, s := range r.db.staff {
		if !s.Active {
			continue
		}
		if best == nil || lessRecentlyAssigned(s, best) {
			best = s
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	at := now
	best.LastAssignedAt = &at
	cp := *best
	return &cp, nil
}

func lessRecentlyAssigned(a, b *model.StaffMember) bool {
	switch {
	case a.LastAssignedAt == nil && b.LastAssignedAt != nil:
		return true
	case a.LastAssignedAt != nil && b.LastAssignedAt == nil:
		return false
	case a.LastAssignedAt != nil && !a.LastAssignedAt.Equal(*b.LastAssignedAt):
		return a.LastAssignedAt.Before(*b.LastAssignedAt)
	}
	return a.UserID < b.UserID
}

func (r *Staff) List(_ context.Context) ([]model.StaffMember, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]model.StaffMember, 0, len(r.db.staff))
	for _, s := range r.db.staff {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
