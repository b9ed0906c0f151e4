package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCache(t *testing.T) {
	fc := &FileCache{Dir: filepath.Join(t.TempDir(), "blobs")}
	ctx := context.Background()

	_, err := fc.Get(ctx, "https://example.com/a.png")
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, fc.Put(ctx, "https://example.com/a.png", []byte("png")))

	data, err := fc.Get(ctx, "https://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	require.NoError(t, fc.Delete(ctx, "https://example.com/a.png"))
	require.NoError(t, fc.Delete(ctx, "https://example.com/a.png"))
	_, err = fc.Get(ctx, "https://example.com/a.png")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
