package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorvm/tcbridge/internal/ir"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_PutGet(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "abc123", "vm", []byte("payload")))

	got, ok, err := c.Get(ctx, "abc123", "vm")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)
}

func TestCache_Miss(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "absent", "vm")
	require.NoError(t, err)
	assert.False(t, ok)

	// Same hash under a different target is still a miss.
	require.NoError(t, c.Put(ctx, "abc123", "vm", []byte("payload")))
	_, ok, err = c.Get(ctx, "abc123", "wasm")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_DuplicatePutIsIdempotent(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "abc123", "vm", []byte("first")))
	require.NoError(t, c.Put(ctx, "abc123", "vm", []byte("second")))

	got, ok, err := c.Get(ctx, "abc123", "vm")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("first"), got)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCache_ReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "abc123", "vm", []byte("payload")))
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()

	got, ok, err := c.Get(ctx, "abc123", "vm")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)
}

func TestKey_CanonicalText(t *testing.T) {
	// Whitespace and comments do not survive printing, so modules
	// that differ only in formatting share a key.
	a, err := ir.Parse("module @m {\n  func @f(%arg0: f32) -> f32 {\n    return %arg0 : f32\n  }\n}\n")
	require.NoError(t, err)
	b, err := ir.Parse("module @m { // entry\n  func @f( %arg0 : f32 ) -> f32 { return %arg0 : f32 }\n}\n")
	require.NoError(t, err)

	assert.Equal(t, Key(a), Key(b))

	c, err := ir.Parse("module @other { func @f(%arg0: f32) -> f32 { return %arg0 : f32 } }\n")
	require.NoError(t, err)
	assert.NotEqual(t, Key(a), Key(c))
}
