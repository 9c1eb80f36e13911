package s3

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3fs-fuse/docbridge/internal/s3client"
	"github.com/s3fs-fuse/docbridge/internal/storage/types"
)

func TestAdapterRoundTrip(t *testing.T) {
	a := NewAdapter(s3client.NewMockClient("bucket", "us-east-1"))
	ctx := context.Background()

	meta := map[string]string{types.MetaContentType: "image/png"}
	require.NoError(t, a.WriteWithMetadata(ctx, "games/Title.png", []byte("png"), meta))
	_, stamped := meta[types.MetaMtime]
	assert.False(t, stamped, "caller metadata must not be modified")

	data, err := a.Read(ctx, "games/Title.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	attr, err := a.GetAttr(ctx, "games/Title.png")
	require.NoError(t, err)
	assert.Equal(t, int64(3), attr.Size)
	assert.Equal(t, "image/png", attr.ContentType)
	assert.WithinDuration(t, time.Now(), attr.Mtime, time.Minute)
}

func TestAdapterMtimeMetadata(t *testing.T) {
	a := NewAdapter(s3client.NewMockClient("bucket", "us-east-1"))
	ctx := context.Background()

	require.NoError(t, a.WriteWithMetadata(ctx, "k", nil, map[string]string{types.MetaMtime: "1700000000"}))
	attr, err := a.GetAttr(ctx, "k")
	require.NoError(t, err)
	assert.True(t, attr.Mtime.Equal(time.Unix(1700000000, 0)))
}

func TestAdapterMissing(t *testing.T) {
	a := NewAdapter(s3client.NewMockClient("bucket", "us-east-1"))
	ctx := context.Background()

	ok, err := a.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = a.GetAttr(ctx, "nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = a.Read(ctx, "nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAdapterMultipartThreshold(t *testing.T) {
	a := NewAdapter(s3client.NewMockClient("bucket", "us-east-1"))
	ctx := context.Background()

	big := make([]byte, s3client.MinMultipartSize)
	require.NoError(t, a.Write(ctx, "big.bin", big))

	attr, err := a.GetAttr(ctx, "big.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(big)), attr.Size)
}
