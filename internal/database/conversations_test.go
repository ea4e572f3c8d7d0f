package database

import (
	"context"
	"strings"
	"testing"

	"hanapbahay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationFlow(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	conv, err := db.GetOrCreateConversation(ctx, 1, 20, 10)
	require.NoError(t, err)

	again, err := db.GetOrCreateConversation(ctx, 1, 20, 10)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	require.NoError(t, db.AddMessage(ctx, &models.Message{ConversationID: conv.ID, SenderID: 20, Body: "Is the room still available?"}))
	require.NoError(t, db.AddMessage(ctx, &models.Message{ConversationID: conv.ID, SenderID: 0, Kind: models.MessageSystem, Body: "Booking approved"}))

	conv, err = db.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Booking approved", conv.LastMessage)
	assert.Equal(t, 1, conv.TenantUnread)
	assert.Equal(t, 2, conv.OwnerUnread)

	require.NoError(t, db.MarkConversationRead(ctx, conv.ID, 10))
	conv, err = db.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.OwnerUnread)
	assert.Equal(t, 1, conv.TenantUnread)

	assert.ErrorIs(t, db.MarkConversationRead(ctx, conv.ID, 99), ErrNotFound)

	messages, err := db.ListMessages(ctx, conv.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.MessageText, messages[0].Kind)
	assert.Equal(t, models.MessageSystem, messages[1].Kind)

	older, err := db.ListMessages(ctx, conv.ID, messages[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, messages[0].ID, older[0].ID)

	list, err := db.ListConversations(ctx, 20)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = db.ListConversations(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAddMessage_UnknownConversation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	err := db.AddMessage(context.Background(), &models.Message{ConversationID: 404, SenderID: 1, Body: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	long := strings.Repeat("a", 200)
	p := preview(long)
	assert.Len(t, []rune(p), 120)
	assert.True(t, strings.HasSuffix(p, "..."))
}
