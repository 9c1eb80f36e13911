// Package handle resolves identifiers into document handles.
package handle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/s3fs-fuse/docbridge/internal/docid"
	"github.com/s3fs-fuse/docbridge/internal/store"
)

// SizeUnknown is returned by Size for invalid or absent documents.
const SizeUnknown int64 = -1

// ErrResolution wraps every failure to turn an identifier into a handle.
var ErrResolution = errors.New("resolution failure")

// Handle pairs a provider with a resolved reference. The zero value and a
// nil *Handle are both invalid; every query on an invalid handle reports
// absence.
type Handle struct {
	provider store.Provider
	id       string
	ref      string
	valid    bool
}

// Invalid returns a handle on which every query reports absence.
func Invalid(id string) *Handle {
	return &Handle{id: id}
}

// Resolve normalizes id and resolves it against provider. It never fails;
// on error the returned handle is invalid.
func Resolve(ctx context.Context, provider store.Provider, id string, logger *slog.Logger) *Handle {
	h, err := TryResolve(ctx, provider, id)
	if err != nil {
		if logger != nil {
			logger.Debug("resolve failed", "identifier", id, "error", err)
		}
		return Invalid(id)
	}
	return h
}

// TryResolve is Resolve with the error exposed.
func TryResolve(ctx context.Context, provider store.Provider, id string) (*Handle, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: no provider", ErrResolution)
	}
	normalized, err := docid.Normalize(id)
	if err != nil {
		return nil, err
	}
	return ResolveNormalized(ctx, provider, normalized)
}

// ResolveNormalized resolves an identifier that is already in normal form,
// such as a parent taken from docid.Split. It skips the separator check, so
// a tree root or a top-level directory without "%2F" can be addressed.
func ResolveNormalized(ctx context.Context, provider store.Provider, id string) (*Handle, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: no provider", ErrResolution)
	}
	ref, err := provider.Resolve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolution, id, err)
	}
	return &Handle{
		provider: provider,
		id:       id,
		ref:      ref,
		valid:    true,
	}, nil
}

// Valid reports whether h resolved.
func (h *Handle) Valid() bool {
	return h != nil && h.valid
}

// Identifier returns the normalized identifier, or the raw one when h is
// invalid.
func (h *Handle) Identifier() string {
	if h == nil {
		return ""
	}
	return h.id
}

// Ref returns the provider reference.
func (h *Handle) Ref() string {
	if !h.Valid() {
		return ""
	}
	return h.ref
}

// Provider returns the provider h resolved against.
func (h *Handle) Provider() store.Provider {
	if !h.Valid() {
		return nil
	}
	return h.provider
}

// Stat queries the store. Nothing is cached: the store may change between
// calls.
func (h *Handle) Stat(ctx context.Context) (*store.Document, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("%w: invalid handle", ErrResolution)
	}
	return h.provider.Stat(ctx, h.ref)
}

// Exists reports whether the document currently exists.
func (h *Handle) Exists(ctx context.Context) bool {
	_, err := h.Stat(ctx)
	return err == nil
}

// IsFile reports whether the document exists and is not a directory.
func (h *Handle) IsFile(ctx context.Context) bool {
	doc, err := h.Stat(ctx)
	return err == nil && !doc.IsDir()
}

// IsDirectory reports whether the document exists and is a directory.
func (h *Handle) IsDirectory(ctx context.Context) bool {
	doc, err := h.Stat(ctx)
	return err == nil && doc.IsDir()
}

// Size returns the document length in bytes, or SizeUnknown.
func (h *Handle) Size(ctx context.Context) int64 {
	doc, err := h.Stat(ctx)
	if err != nil {
		return SizeUnknown
	}
	return doc.Size
}
