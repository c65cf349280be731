package discord

import (
	"context"
	"testing"
	"time"

	"cargodesk-backend/internal/model"
	"cargodesk-backend/internal/repository/memory"
	"cargodesk-backend/internal/service"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedOnline int

func (n fixedOnline) OnlineCount() int { return int(n) }

func newCommands(t *testing.T) (*CommandHandler, *service.Support) {
	t.Helper()
	db := memory.New()
	support := service.NewSupport(service.Stores{
		Chats:         db.Chats(),
		Messages:      db.Messages(),
		Notifications: db.Notifications(),
		Staff:         db.Staff(),
	}, nil, nil, nil)
	h := NewCommandHandler(support, fixedOnline(3))
	h.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return h, support
}

func fieldValue(t *testing.T, fields []*discordgo.MessageEmbedField, name string) string {
	t.Helper()
	for _, f := range fields {
		if f.Name == name {
			return f.Value
		}
	}
	t.Fatalf("no field %q", name)
	return ""
}

func TestHandle_Queue(t *testing.T) {
	h, support := newCommands(t)
	ctx := context.Background()
	for _, id := range []string{"alice", "bob"} {
		_, err := support.Router.Send(ctx, service.ChannelHTTP, model.Identity{UserID: id, Role: model.RoleCustomer}, model.SendMessageRequest{Content: "hi"})
		require.NoError(t, err)
	}

	embed := h.Handle("!queue")
	require.NotNil(t, embed)
	assert.Equal(t, "2", fieldValue(t, embed.Fields, "Open"))
	assert.Equal(t, "0", fieldValue(t, embed.Fields, "Closed"))
	assert.Equal(t, "3", fieldValue(t, embed.Fields, "Connected"))
	assert.Equal(t, "2024-05-01T12:00:00Z", embed.Timestamp)
}

func TestHandle_Chat(t *testing.T) {
	h, support := newCommands(t)
	ctx := context.Background()
	alice := model.Identity{UserID: "alice", Name: "Alice", Role: model.RoleCustomer}
	chat, err := support.Directory.GetOrCreateOrderChat(ctx, alice, "ORD-5")
	require.NoError(t, err)

	embed := h.Handle("!chat " + chat.ID)
	require.NotNil(t, embed)
	assert.Equal(t, "Order ORD-5: Alice", embed.Title)
	assert.Equal(t, "open", fieldValue(t, embed.Fields, "Status"))
	assert.Equal(t, "Unassigned", fieldValue(t, embed.Fields, "Staff"))
	assert.Equal(t, "ORD-5", fieldValue(t, embed.Fields, "Order"))
	assert.Equal(t, "No messages yet", fieldValue(t, embed.Fields, "Last message"))

	missing := h.Handle("!chat nope")
	require.NotNil(t, missing)
	assert.Equal(t, colorError, missing.Color)
	assert.Contains(t, missing.Description, "not found")

	usage := h.Handle("!chat")
	assert.Contains(t, usage.Description, "Usage")
}

func TestHandle_UnknownAndHelp(t *testing.T) {
	h, _ := newCommands(t)
	assert.Nil(t, h.Handle("!dance"))
	assert.Nil(t, h.Handle("   "))
	require.NotNil(t, h.Handle("!HELP"))
	assert.Len(t, h.Handle("!help").Fields, 3)
}
