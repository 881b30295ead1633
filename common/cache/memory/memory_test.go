package memory

import (
	"context"
	"testing"
	"time"

	"staffing/common/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetString(t *testing.T) {
	c := New(cache.DefaultOptions())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))

	var got string
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "v", got)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), cache.ErrNotFound)
}

func TestExpiry(t *testing.T) {
	c := New(cache.DefaultOptions())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	now = now.Add(2 * time.Minute)

	var got string
	assert.ErrorIs(t, c.Get(ctx, "k", &got), cache.ErrNotFound)
}

func TestInvalidInputs(t *testing.T) {
	c := New(cache.DefaultOptions())
	ctx := context.Background()

	assert.ErrorIs(t, c.Set(ctx, "", "v", 0), cache.ErrInvalidKey)
	assert.ErrorIs(t, c.Set(ctx, "k", 42, 0), cache.ErrInvalidValue)

	require.NoError(t, c.Set(ctx, "k", []byte("raw"), 0))
	var n int
	assert.ErrorIs(t, c.Get(ctx, "k", &n), cache.ErrInvalidValue)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Set(ctx, "k", "v", 0), cache.ErrClosed)
}
