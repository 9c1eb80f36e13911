// Package badger stores documents in an embedded BadgerDB.
//
// Key layout:
//
//	m:<path>  document attributes (JSON)
//	d:<path>  document content
//
// Listing is a prefix scan over the m: namespace.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/s3fs-fuse/docbridge/internal/storage/types"
)

const (
	prefixMeta = "m:"
	prefixData = "d:"
)

func keyMeta(path string) []byte { return []byte(prefixMeta + path) }
func keyData(path string) []byte { return []byte(prefixData + path) }

// record is the JSON value under m:<path>
type record struct {
	Size        int64             `json:"size"`
	ContentType string            `json:"content_type,omitempty"`
	Mtime       time.Time         `json:"mtime"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// BadgerBackend implements types.Backend on BadgerDB
type BadgerBackend struct {
	db *badger.DB
}

// NewBadgerBackend opens (or creates) a database at dir. An empty dir opens
// an in-memory database.
func NewBadgerBackend(dir string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %q: %w", dir, err)
	}
	return &BadgerBackend{db: db}, nil
}

func notFound(path string, err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("document not found: %s: %w", path, os.ErrNotExist)
	}
	return err
}

// Read reads document data
func (b *BadgerBackend) Read(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyData(path))
		if err != nil {
			return notFound(path, err)
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}

// Write writes document data
func (b *BadgerBackend) Write(ctx context.Context, path string, data []byte) error {
	return b.WriteWithMetadata(ctx, path, data, nil)
}

// WriteWithMetadata writes the content and attribute records in one
// transaction.
func (b *BadgerBackend) WriteWithMetadata(ctx context.Context, path string, data []byte, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := record{
		Size:        int64(len(data)),
		ContentType: metadata[types.MetaContentType],
		Mtime:       time.Now(),
		Metadata:    metadata,
	}
	if s, ok := metadata[types.MetaMtime]; ok {
		if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
			rec.Mtime = time.Unix(unix, 0)
		}
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyData(path), data); err != nil {
			return err
		}
		return txn.Set(keyMeta(path), encoded)
	})
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// List lists paths with the given prefix in key order
func (b *BadgerBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyMeta(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			paths = append(paths, string(it.Item().Key()[len(prefixMeta):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return paths, nil
}

// GetAttr gets document attributes
func (b *BadgerBackend) GetAttr(ctx context.Context, path string) (*types.Attr, error) {
	var rec record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyMeta(path))
		if err != nil {
			return notFound(path, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get attributes: %w", err)
	}
	return &types.Attr{
		Size:        rec.Size,
		ContentType: rec.ContentType,
		Mtime:       rec.Mtime,
	}, nil
}

// Exists checks if a document exists
func (b *BadgerBackend) Exists(ctx context.Context, path string) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(keyMeta(path))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close closes the database
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
