package badger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3fs-fuse/docbridge/internal/storage/types"
)

func newTestBackend(t *testing.T) *BadgerBackend {
	t.Helper()
	b, err := NewBadgerBackend(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestWriteReadAttr(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	err := b.WriteWithMetadata(ctx, "games/Save01.lsd", []byte("save"), map[string]string{
		types.MetaContentType: "application/octet-stream",
		types.MetaMtime:       "1700000000",
	})
	require.NoError(t, err)

	data, err := b.Read(ctx, "games/Save01.lsd")
	require.NoError(t, err)
	assert.Equal(t, "save", string(data))

	attr, err := b.GetAttr(ctx, "games/Save01.lsd")
	require.NoError(t, err)
	assert.Equal(t, int64(4), attr.Size)
	assert.Equal(t, "application/octet-stream", attr.ContentType)
	assert.True(t, attr.Mtime.Equal(time.Unix(1700000000, 0)))

	ok, err := b.Exists(ctx, "games/Save01.lsd")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMissing(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	_, err := b.Read(ctx, "nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = b.GetAttr(ctx, "nope")
	assert.ErrorIs(t, err, os.ErrNotExist)

	ok, err := b.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestList(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for _, key := range []string{"games/a", "games/sub/b", "other/c"} {
		require.NoError(t, b.Write(ctx, key, []byte("x")))
	}

	keys, err := b.List(ctx, "games/")
	require.NoError(t, err)
	assert.Equal(t, []string{"games/a", "games/sub/b"}, keys)

	keys, err = b.List(ctx, "games/sub/")
	require.NoError(t, err)
	assert.Equal(t, []string{"games/sub/b"}, keys)
}

func TestInMemory(t *testing.T) {
	b, err := NewBadgerBackend("")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Write(context.Background(), "k", []byte("v")))
	data, err := b.Read(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(data))
}
