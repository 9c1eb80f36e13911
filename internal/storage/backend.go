// Package storage builds the key/value backends that hold documents for the
// object store provider.
package storage

import "github.com/s3fs-fuse/docbridge/internal/storage/types"

// Backend is re-exported so callers only import this package
type Backend = types.Backend

// Attr is re-exported alongside Backend
type Attr = types.Attr
