// Package s3 adapts an S3 object client to the document backend contract.
package s3

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/s3fs-fuse/docbridge/internal/s3client"
	"github.com/s3fs-fuse/docbridge/internal/storage/types"
)

// ObjectClient is the subset of S3 operations the adapter needs. Both
// s3client.Client and s3client.MockClient satisfy it.
type ObjectClient interface {
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObjectWithMetadata(ctx context.Context, key string, data []byte, metadata map[string]string) error
	PutObjectMultipart(ctx context.Context, key string, data []byte, metadata map[string]string) error
	HeadObject(ctx context.Context, key string) (*s3client.ObjectInfo, error)
}

var (
	_ ObjectClient = (*s3client.Client)(nil)
	_ ObjectClient = (*s3client.MockClient)(nil)
)

// Adapter implements types.Backend on top of an ObjectClient
type Adapter struct {
	client ObjectClient
}

// NewAdapter creates an S3 adapter
func NewAdapter(client ObjectClient) *Adapter {
	return &Adapter{client: client}
}

// Read reads object data
func (s *Adapter) Read(ctx context.Context, key string) ([]byte, error) {
	return s.client.GetObject(ctx, key)
}

// Write writes object data
func (s *Adapter) Write(ctx context.Context, key string, data []byte) error {
	return s.WriteWithMetadata(ctx, key, data, nil)
}

// WriteWithMetadata uploads the object, switching to multipart above
// s3client.MinMultipartSize.
func (s *Adapter) WriteWithMetadata(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if _, ok := meta[types.MetaMtime]; !ok {
		meta[types.MetaMtime] = strconv.FormatInt(time.Now().Unix(), 10)
	}

	if len(data) >= s3client.MinMultipartSize {
		return s.client.PutObjectMultipart(ctx, key, data, meta)
	}
	return s.client.PutObjectWithMetadata(ctx, key, data, meta)
}

// List lists keys with the given prefix
func (s *Adapter) List(ctx context.Context, prefix string) ([]string, error) {
	return s.client.ListObjects(ctx, prefix)
}

// GetAttr gets object attributes from a HEAD request. The stored mtime
// metadata wins over LastModified.
func (s *Adapter) GetAttr(ctx context.Context, key string) (*types.Attr, error) {
	info, err := s.client.HeadObject(ctx, key)
	if err != nil {
		return nil, err
	}

	attr := &types.Attr{
		Size:        info.Size,
		ContentType: info.ContentType,
		Mtime:       info.LastModified,
	}
	if v, ok := info.Metadata[types.MetaMtime]; ok {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			attr.Mtime = time.Unix(unix, 0)
		}
	}
	return attr, nil
}

// Exists checks if an object exists
func (s *Adapter) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, key)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return true, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Adapter) Close() error {
	return nil
}
