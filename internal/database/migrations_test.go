package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	versions, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, "001_support_chat", versions[0])
	assert.IsIncreasing(t, versions)

	sql, err := migrationFiles.ReadFile("migrations/001_support_chat.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(sql), "chats_support_customer_uq")
	assert.Contains(t, string(sql), "notifications_message_recipient_uq")
}
