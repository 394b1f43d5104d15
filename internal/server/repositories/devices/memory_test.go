package devices

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/imagesync/internal/common"
	"github.com/dmitrijs2005/imagesync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	exp := time.Now().Add(time.Hour)

	require.NoError(t, r.Create(ctx, &models.Device{ID: "d1", SecretHash: []byte("h1"), ExpiresAt: exp}))
	assert.ErrorIs(t, r.Create(ctx, &models.Device{ID: "d1"}), common.ErrConflict)

	got, err := r.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []byte("h1"), got.SecretHash)
	assert.False(t, got.CreatedAt.IsZero())

	later := exp.Add(time.Hour)
	require.NoError(t, r.RotateSecret(ctx, "d1", []byte("s2"), []byte("h2"), later))
	got, err = r.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []byte("h2"), got.SecretHash)
	assert.Equal(t, later, got.ExpiresAt)

	_, err = r.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, r.RotateSecret(ctx, "missing", nil, nil, later), common.ErrNotFound)
}
