package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/repository"
	"cargodesk-backend/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateSupportChat_ConcurrentFirstContact(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	const callers = 25
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chat, err := e.Directory.GetOrCreateSupportChat(ctx, alice)
			if assert.NoError(t, err) {
				ids[i] = chat.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	chats, err := e.db.Chats().List(ctx, repository.ChatFilter{CustomerID: alice.UserID})
	require.NoError(t, err)
	require.Len(t, chats, 1)

	ok, err := e.db.Chats().IsParticipant(ctx, ids[0], alice.UserID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetOrCreateSupportChat_AcrossInstances(t *testing.T) {
	clock := newFakeClock()
	db := memory.NewWithClock(clock.Now)
	ctx := context.Background()

	// Two directories share the store but not the singleflight group.
	dirs := []*SessionDirectory{
		NewSessionDirectory(db.Chats(), db.Staff(), clock),
		NewSessionDirectory(db.Chats(), db.Staff(), clock),
	}

	const callers = 20
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chat, err := dirs[i%2].GetOrCreateSupportChat(ctx, alice)
			if assert.NoError(t, err) {
				ids[i] = chat.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	chats, err := db.Chats().List(ctx, repository.ChatFilter{CustomerID: alice.UserID})
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

// staleChats misses on the first lookup so that Create hits the uniqueness
// constraint, as a concurrent instance would cause.
type staleChats struct {
	*memory.Chats
	mu     sync.Mutex
	missed bool
}

func (s *staleChats) FindByCustomer(ctx context.Context, customerID string, kind model.ChatKind, orderRef *string) (*model.Chat, error) {
	s.mu.Lock()
	miss := !s.missed
	s.missed = true
	s.mu.Unlock()
	if miss {
		return nil, repository.ErrNotFound
	}
	return s.Chats.FindByCustomer(ctx, customerID, kind, orderRef)
}

func TestGetOrCreateSupportChat_ConflictRereadsWinner(t *testing.T) {
	clock := newFakeClock()
	db := memory.NewWithClock(clock.Now)
	ctx := context.Background()

	winner, err := NewSessionDirectory(db.Chats(), db.Staff(), clock).GetOrCreateSupportChat(ctx, alice)
	require.NoError(t, err)

	loser := NewSessionDirectory(&staleChats{Chats: db.Chats()}, db.Staff(), clock)
	chat, err := loser.GetOrCreateSupportChat(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, chat.ID)
}

func TestGetOrCreateSupportChat_LostRaceKeepsRotationSlot(t *testing.T) {
	clock := newFakeClock()
	db := memory.NewWithClock(clock.Now)
	ctx := context.Background()
	winnerDir := NewSessionDirectory(db.Chats(), db.Staff(), clock)
	require.NoError(t, winnerDir.SetStaff(ctx, "s1", "First", true))
	require.NoError(t, winnerDir.SetStaff(ctx, "s2", "Second", true))

	winner, err := winnerDir.GetOrCreateSupportChat(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, winner.AssignedStaffID)
	assert.Equal(t, "s1", *winner.AssignedStaffID)

	clock.Advance(time.Minute)
	loser := NewSessionDirectory(&staleChats{Chats: db.Chats()}, db.Staff(), clock)
	chat, err := loser.GetOrCreateSupportChat(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, chat.ID)
	assert.Equal(t, "s1", *chat.AssignedStaffID)

	roster, err := winnerDir.Staff(ctx)
	require.NoError(t, err)
	for _, s := range roster {
		if s.UserID == "s2" {
			assert.Nil(t, s.LastAssignedAt, "s2 was never handed a chat")
		}
	}

	next, err := winnerDir.GetOrCreateSupportChat(ctx, bob)
	require.NoError(t, err)
	require.NotNil(t, next.AssignedStaffID)
	assert.Equal(t, "s2", *next.AssignedStaffID)
}

func TestGetOrCreateSupportChat_RejectsStaffAndAnonymous(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Directory.GetOrCreateSupportChat(ctx, sam)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.Directory.GetOrCreateSupportChat(ctx, model.Identity{Role: model.RoleCustomer})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetOrCreateSupportChat_AssignsLeastRecentlyAssignedStaff(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Directory.SetStaff(ctx, "s2", "Second", true))
	require.NoError(t, e.Directory.SetStaff(ctx, "s1", "First", true))
	require.NoError(t, e.Directory.SetStaff(ctx, "s0", "Away", false))

	var got []string
	for _, customer := range []string{"c1", "c2", "c3"} {
		e.clock.Advance(1)
		chat, err := e.Directory.GetOrCreateSupportChat(ctx, model.Identity{UserID: customer, Role: model.RoleCustomer})
		require.NoError(t, err)
		require.NotNil(t, chat.AssignedStaffID)
		got = append(got, *chat.AssignedStaffID)

		ok, err := e.db.Chats().IsParticipant(ctx, chat.ID, *chat.AssignedStaffID)
		require.NoError(t, err)
		assert.True(t, ok, "assignee joins the chat")
	}
	assert.Equal(t, []string{"s1", "s2", "s1"}, got)
}

func TestGetOrCreateSupportChat_NoStaffLeavesUnassigned(t *testing.T) {
	e := newTestEngine(t)

	chat, err := e.Directory.GetOrCreateSupportChat(context.Background(), alice)
	require.NoError(t, err)
	assert.Nil(t, chat.AssignedStaffID)
	assert.Equal(t, model.ChatOpen, chat.Status)
	assert.Equal(t, "Support: Alice", chat.Title)
}

func TestGetOrCreateOrderChat(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	support, err := e.Directory.GetOrCreateSupportChat(ctx, alice)
	require.NoError(t, err)

	first, err := e.Directory.GetOrCreateOrderChat(ctx, alice, "ORD-1")
	require.NoError(t, err)
	again, err := e.Directory.GetOrCreateOrderChat(ctx, alice, " ORD-1 ")
	require.NoError(t, err)
	other, err := e.Directory.GetOrCreateOrderChat(ctx, alice, "ORD-2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.NotEqual(t, first.ID, other.ID)
	assert.NotEqual(t, support.ID, first.ID)
	assert.Equal(t, model.ChatKindOrder, first.Kind)
	require.NotNil(t, first.OrderRef)
	assert.Equal(t, "ORD-1", *first.OrderRef)

	_, err = e.Directory.GetOrCreateOrderChat(ctx, alice, "  ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthorize(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	chat, err := e.Directory.GetOrCreateSupportChat(ctx, alice)
	require.NoError(t, err)

	_, err = e.Directory.Authorize(ctx, alice, chat.ID)
	assert.NoError(t, err)

	_, err = e.Directory.Authorize(ctx, sam, chat.ID)
	assert.NoError(t, err, "staff may open any chat")

	_, err = e.Directory.Authorize(ctx, bob, chat.ID)
	assert.ErrorIs(t, err, ErrNotFound, "non-participants see a missing chat")

	_, err = e.Directory.Authorize(ctx, alice, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.Directory.Authorize(ctx, alice, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthorize_RepairsMissingCustomerMembership(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	e.db.FailAddParticipant = errors.New("relation unavailable")
	chat, err := e.Directory.GetOrCreateSupportChat(ctx, alice)
	require.NoError(t, err, "membership failures never abort chat creation")

	ok, err := e.db.Chats().IsParticipant(ctx, chat.ID, alice.UserID)
	require.NoError(t, err)
	require.False(t, ok)

	e.db.FailAddParticipant = nil
	_, err = e.Directory.Authorize(ctx, alice, chat.ID)
	require.NoError(t, err)

	ok, err = e.db.Chats().IsParticipant(ctx, chat.ID, alice.UserID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAddParticipant_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	chat, err := e.Directory.GetOrCreateSupportChat(ctx, alice)
	require.NoError(t, err)

	require.NoError(t, e.Directory.AddParticipant(ctx, chat.ID, sam.UserID))
	require.NoError(t, e.Directory.AddParticipant(ctx, chat.ID, sam.UserID))

	members, err := e.Directory.Participants(ctx, chat.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{alice.UserID, sam.UserID}, members)

	assert.ErrorIs(t, e.Directory.AddParticipant(ctx, "", sam.UserID), ErrValidation)
}

func TestListChats(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	a, err := e.Directory.GetOrCreateSupportChat(ctx, alice)
	require.NoError(t, err)
	_, err = e.Directory.GetOrCreateSupportChat(ctx, bob)
	require.NoError(t, err)

	mine, err := e.Directory.ListChats(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	all, err := e.Directory.ListChats(ctx, sam, model.ChatOpen)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = e.Directory.ListChats(ctx, sam, "archived")
	assert.ErrorIs(t, err, ErrValidation)
}
