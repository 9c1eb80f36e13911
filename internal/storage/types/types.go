// Package types holds the key/value document backend contract shared by the
// storage implementations.
package types

import (
	"context"
	"time"
)

// Metadata keys every backend round-trips.
const (
	MetaContentType = "content-type"
	MetaMtime       = "mtime"
)

// Attr represents object attributes
type Attr struct {
	Size        int64
	ContentType string
	Mtime       time.Time
}

// Backend stores opaque objects under slash-separated keys.
// Missing keys are reported with an error wrapping os.ErrNotExist.
type Backend interface {
	// Read reads object data
	Read(ctx context.Context, key string) ([]byte, error)

	// Write writes object data
	Write(ctx context.Context, key string, data []byte) error

	// WriteWithMetadata writes object data with metadata
	WriteWithMetadata(ctx context.Context, key string, data []byte, metadata map[string]string) error

	// List lists keys with the given prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// GetAttr gets object attributes
	GetAttr(ctx context.Context, key string) (*Attr, error)

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases the backend's connections
	Close() error
}
