package handle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3fs-fuse/docbridge/internal/docid"
	"github.com/s3fs-fuse/docbridge/internal/store"
	"github.com/s3fs-fuse/docbridge/internal/store/local"
)

func newProvider(t *testing.T, grants store.Grants) (store.Provider, string) {
	t.Helper()
	dir := t.TempDir()
	game := filepath.Join(dir, "root", "games", "TestGame")
	require.NoError(t, os.MkdirAll(filepath.Join(game, "Title"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(game, "Title", "Title.png"), []byte("png-bytes"), 0o644))

	p, err := local.New(dir, grants)
	require.NoError(t, err)
	return p, game
}

func TestTryResolveNormalizes(t *testing.T) {
	p, _ := newProvider(t, nil)

	h, err := TryResolve(context.Background(), p, "root%2Fgames%2FTestGame/Title/Title.png")
	require.NoError(t, err)
	assert.True(t, h.Valid())
	assert.Equal(t, "root%2Fgames%2FTestGame%2FTitle%2FTitle.png", h.Identifier())
	assert.Equal(t, h.Identifier(), h.Ref())
	assert.Same(t, p, h.Provider())
}

func TestTryResolveErrors(t *testing.T) {
	p, _ := newProvider(t, store.NewGrants("primary%3Aeasyrpg"))
	ctx := context.Background()

	_, err := TryResolve(ctx, p, "root/games")
	assert.ErrorIs(t, err, docid.ErrMalformedIdentifier)

	_, err = TryResolve(ctx, p, "primary%3Aother/document/primary%3Aother%2Fgames")
	assert.ErrorIs(t, err, ErrResolution)
	assert.ErrorIs(t, err, store.ErrPermission)

	_, err = TryResolve(ctx, nil, "root%2Fgames")
	assert.ErrorIs(t, err, ErrResolution)
}

func TestResolveNormalizedTopLevel(t *testing.T) {
	p, _ := newProvider(t, nil)
	ctx := context.Background()

	// "root" has no separator, so only the normalized path accepts it.
	_, err := TryResolve(ctx, p, "root")
	assert.ErrorIs(t, err, docid.ErrMalformedIdentifier)

	h, err := ResolveNormalized(ctx, p, "root")
	require.NoError(t, err)
	assert.True(t, h.IsDirectory(ctx))
	assert.Equal(t, "root", h.Identifier())

	_, err = ResolveNormalized(ctx, nil, "root")
	assert.ErrorIs(t, err, ErrResolution)
}

func TestInvalidHandle(t *testing.T) {
	ctx := context.Background()

	for _, h := range []*Handle{nil, {}, Invalid("root/games")} {
		assert.False(t, h.Valid())
		assert.False(t, h.Exists(ctx))
		assert.False(t, h.IsFile(ctx))
		assert.False(t, h.IsDirectory(ctx))
		assert.Equal(t, SizeUnknown, h.Size(ctx))
		assert.Empty(t, h.Ref())
		assert.Nil(t, h.Provider())
	}
	assert.Equal(t, "root/games", Invalid("root/games").Identifier())
}

func TestQueriesAreLive(t *testing.T) {
	p, game := newProvider(t, nil)
	ctx := context.Background()

	h := Resolve(ctx, p, "root%2Fgames%2FTestGame/Save.lsd", nil)
	require.True(t, h.Valid())
	assert.False(t, h.Exists(ctx))
	assert.Equal(t, SizeUnknown, h.Size(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(game, "Save.lsd"), []byte("abc"), 0o644))
	assert.True(t, h.Exists(ctx))
	assert.True(t, h.IsFile(ctx))
	assert.Equal(t, int64(3), h.Size(ctx))

	require.NoError(t, os.Remove(filepath.Join(game, "Save.lsd")))
	assert.False(t, h.Exists(ctx))
}

func TestDirectoryQueries(t *testing.T) {
	p, _ := newProvider(t, nil)
	ctx := context.Background()

	h := Resolve(ctx, p, "root%2Fgames%2FTestGame/Title", nil)
	assert.True(t, h.IsDirectory(ctx))
	assert.False(t, h.IsFile(ctx))
	assert.True(t, h.Exists(ctx))
}
