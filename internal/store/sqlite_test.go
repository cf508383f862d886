package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewSQLiteStore(db)
	require.NoError(t, err)
	return s
}

func TestEnsureConversationIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureConversation(ctx, "conv-1"))
	require.NoError(t, s.EnsureConversation(ctx, "conv-1"))

	conv, err := s.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, DefaultTitle, conv.Title)

	conversations, err := s.ListConversations(ctx)
	require.NoError(t, err)
	assert.Len(t, conversations, 1)
}

func TestUpdateTitleIfDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureConversation(ctx, "conv-1"))

	require.NoError(t, s.UpdateTitleIfDefault(ctx, "conv-1", "Refund policy"))
	conv, err := s.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Refund policy", conv.Title)

	// A non-default title is never overwritten by a later turn.
	require.NoError(t, s.UpdateTitleIfDefault(ctx, "conv-1", "Something else"))
	conv, err = s.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Refund policy", conv.Title)
}

func TestRenameConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureConversation(ctx, "conv-1"))
	require.NoError(t, s.UpdateTitleIfDefault(ctx, "conv-1", "derived"))

	updated, err := s.RenameConversation(ctx, "conv-1", "My custom name")
	require.NoError(t, err)
	assert.True(t, updated)

	conv, err := s.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "My custom name", conv.Title)

	updated, err = s.RenameConversation(ctx, "missing", "x")
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestMessagesOrderedByCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureConversation(ctx, "conv-1"))

	contents := []string{"first", "second", "third"}
	roles := []string{RoleUser, RoleAssistant, RoleUser}
	for i := range contents {
		msg := Message{ConversationID: "conv-1", Role: roles[i], Content: contents[i]}
		require.NoError(t, s.InsertMessage(ctx, &msg))
		assert.NotEmpty(t, msg.ID, "an id is assigned on insert")
	}

	messages, err := s.ListMessages(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i := range contents {
		assert.Equal(t, contents[i], messages[i].Content)
		assert.Equal(t, roles[i], messages[i].Role)
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureConversation(ctx, "conv-1"))
	msg := Message{ConversationID: "conv-1", Role: RoleUser, Content: "hello"}
	require.NoError(t, s.InsertMessage(ctx, &msg))

	deleted, err := s.DeleteConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	messages, err := s.ListMessages(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, messages)

	deleted, err = s.DeleteConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := Document{Name: "policy.pdf", Path: "data/docs/policy.pdf"}
	require.NoError(t, s.InsertDocument(ctx, &doc))
	require.NotEmpty(t, doc.ID)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "policy.pdf", got.Name)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	deleted, err := s.DeleteDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err = s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
