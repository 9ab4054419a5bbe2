package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/carpool-matching/internal/logging"
	"github.com/example/carpool-matching/internal/models"
	"github.com/example/carpool-matching/internal/storage"
)

func TestRelayPersistsMessage(t *testing.T) {
	store := storage.NewMemoryStore()
	r := NewRegistry(store, logging.NewNop())

	msg, err := r.Relay(context.Background(), "general", "u1", "salut")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "general", msg.Room)
	assert.Equal(t, "u1", msg.SenderID)

	saved, err := store.ListMessages(context.Background(), "general", 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "salut", saved[0].Content)
}

type failingMessageStore struct{}

func (failingMessageStore) SaveMessage(ctx context.Context, m *models.Message) error {
	return errors.New("store down")
}

func (failingMessageStore) ListMessages(ctx context.Context, room string, limit int) ([]models.Message, error) {
	return nil, nil
}

func TestRelayReturnsStoreError(t *testing.T) {
	r := NewRegistry(failingMessageStore{}, logging.NewNop())

	msg, err := r.Relay(context.Background(), "general", "u1", "salut")
	assert.Error(t, err)
	assert.Nil(t, msg)
}
