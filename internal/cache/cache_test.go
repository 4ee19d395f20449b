package cache

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_OrderIndependent(t *testing.T) {
	a := Key("properties:filter", map[string]interface{}{"city": "Cali", "minPrice": int64(100)})
	b := Key("properties:filter", map[string]interface{}{"minPrice": int64(100), "city": "Cali"})
	c := Key("properties:filter", map[string]interface{}{"city": "Jamundí", "minPrice": int64(100)})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "properties:filter:"))
	assert.Len(t, strings.TrimPrefix(a, "properties:filter:"), 32)
}

func TestMemory_SetGet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []string{"a", "b"}, time.Minute))

	var got []string
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"a", "b"}, got)

	found, err = c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_Expiry(t *testing.T) {
	c := NewMemory()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	now = now.Add(2 * time.Minute)

	var got int
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, c.Len())
}

func TestMemory_InvalidatePrefix(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "properties:all:x", 1, 0))
	require.NoError(t, c.Set(ctx, "properties:filter:y", 2, 0))
	require.NoError(t, c.Set(ctx, "leads:z", 3, 0))

	require.NoError(t, c.InvalidatePrefix(ctx, "properties:"))
	assert.Equal(t, 1, c.Len())

	var got int
	found, _ := c.Get(ctx, "leads:z", &got)
	assert.True(t, found)
}

func TestMemory_SetIfGeneration(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	gen, err := c.Generation(ctx, "properties:")
	require.NoError(t, err)

	// A mutation lands between the fetch and the write.
	require.NoError(t, c.InvalidatePrefix(ctx, "properties:"))

	stored, err := c.SetIfGeneration(ctx, "properties:filter:x", "stale", 0, "properties:", gen)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Zero(t, c.Len())

	gen, err = c.Generation(ctx, "properties:")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	stored, err = c.SetIfGeneration(ctx, "properties:filter:x", "fresh", 0, "properties:", gen)
	require.NoError(t, err)
	assert.True(t, stored)

	var got string
	found, err := c.Get(ctx, "properties:filter:x", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "fresh", got)

	other, err := c.Generation(ctx, "leads:")
	require.NoError(t, err)
	assert.Zero(t, other)
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", 1, time.Minute))

	var got int
	found, err := c.Get(ctx, "k", &got)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.InvalidatePrefix(ctx, "k"))
}

func TestRedis_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping integration test: REDIS_ADDR not set")
	}

	ctx := context.Background()
	c, err := NewRedis(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	defer c.Close()

	prefix := "realtor-test:" + time.Now().Format("150405.000000") + ":"
	for i := 0; i < 150; i++ {
		require.NoError(t, c.Set(ctx, prefix+strconv.Itoa(i), i, time.Minute))
	}

	var got int
	found, err := c.Get(ctx, prefix+"42", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 42, got)

	gen, err := c.Generation(ctx, prefix)
	require.NoError(t, err)

	require.NoError(t, c.InvalidatePrefix(ctx, prefix))
	found, err = c.Get(ctx, prefix+"42", &got)
	require.NoError(t, err)
	assert.False(t, found)

	stored, err := c.SetIfGeneration(ctx, prefix+"42", 42, time.Minute, prefix, gen)
	require.NoError(t, err)
	assert.False(t, stored)

	stored, err = c.SetIfGeneration(ctx, prefix+"42", 42, time.Minute, prefix, gen+1)
	require.NoError(t, err)
	assert.True(t, stored)
}
