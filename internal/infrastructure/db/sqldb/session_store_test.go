package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmiq/farmiq-backend/internal/core/domain"
)

func TestSessionStore_Lifecycle(t *testing.T) {
	store := NewSessionStore(newTestDB(t), time.Second)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	sess := &domain.Session{
		ID:        "4b7c2f0e-0000-4000-8000-000000000001",
		UserID:    7,
		Role:      domain.RoleFarmer,
		Username:  "alice",
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Find(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(7), got.UserID)
	assert.Equal(t, domain.RoleFarmer, got.Role)
	assert.Equal(t, "alice", got.Username)
	assert.WithinDuration(t, sess.ExpiresAt, got.ExpiresAt, time.Second)

	require.NoError(t, store.Delete(ctx, sess.ID))
	got, err = store.Find(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting again is a no-op.
	require.NoError(t, store.Delete(ctx, sess.ID))
}

func TestSessionStore_DeleteExpired(t *testing.T) {
	store := NewSessionStore(newTestDB(t), time.Second)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, exp := range []time.Time{now.Add(-2 * time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		require.NoError(t, store.Create(ctx, &domain.Session{
			ID:        []string{"s-old", "s-recent", "s-live"}[i],
			UserID:    1,
			Role:      domain.RoleAdmin,
			Username:  "root",
			CreatedAt: exp.Add(-24 * time.Hour),
			ExpiresAt: exp,
		}))
	}

	n, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	live, err := store.Find(ctx, "s-live")
	require.NoError(t, err)
	assert.NotNil(t, live)
}
