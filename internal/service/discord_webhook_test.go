package service

import (
	"testing"

	"cargodesk-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookURL(t *testing.T) {
	id, token, err := parseWebhookURL("https://discord.com/api/webhooks/123456/abc-DEF")
	require.NoError(t, err)
	assert.Equal(t, "123456", id)
	assert.Equal(t, "abc-DEF", token)

	_, _, err = parseWebhookURL("https://discord.com/api/channels/1")
	assert.Error(t, err)
}

func TestNewStaffAlertService_EmptyURLDisables(t *testing.T) {
	svc, err := NewStaffAlertService("")
	require.NoError(t, err)
	assert.Nil(t, svc)

	// A nil service is a usable no-op alerter.
	var alerter OfflineAlerter = svc
	assert.NotPanics(t, func() {
		alerter.AlertOffline(&model.Chat{ID: "c1"}, "sam", &model.Message{ID: "m1"})
	})
}

func TestStaffAlertParams(t *testing.T) {
	chat := &model.Chat{ID: "c1", Title: "Support: Alice", Status: model.ChatOpen, Priority: "normal"}
	msg := &model.Message{ID: "m1", SenderName: "Alice", Kind: model.MessageText, Body: "where is my parcel?", CreatedAt: t0}

	params := staffAlertParams(chat, "sam", msg)
	require.Len(t, params.Embeds, 1)
	embed := params.Embeds[0]
	assert.Equal(t, "New message in Support: Alice", embed.Title)
	assert.Equal(t, "where is my parcel?", embed.Description)
	assert.Equal(t, 0x3498DB, embed.Color)
	assert.Equal(t, "2024-05-01T10:00:00Z", embed.Timestamp)
	require.Len(t, embed.Fields, 4)
	assert.Equal(t, "sam", embed.Fields[1].Value)

	chat.Priority = "urgent"
	assert.Equal(t, 0xE74C3C, staffAlertParams(chat, "sam", msg).Embeds[0].Color)
}
