// Package bridge hands out raw file descriptors for documents.
//
// Every entry point is synchronous. Descriptors returned to the caller are
// detached from the provider's *os.File and owned by the caller; anything
// opened along the way is closed before returning.
//
// Write acquisition checks existence and then creates, which is not atomic:
// a concurrent writer can create the same name in between, in which case the
// store renames our document.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/s3fs-fuse/docbridge/internal/docid"
	"github.com/s3fs-fuse/docbridge/internal/handle"
	"github.com/s3fs-fuse/docbridge/internal/store"
)

// Bridge serves native callers from a provider.
type Bridge struct {
	provider store.Provider
	logger   *slog.Logger
}

// New creates a bridge. A nil logger discards output.
func New(provider store.Provider, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bridge{provider: provider, logger: logger}
}

// Resolve turns an identifier into a handle, invalid on any failure.
func (b *Bridge) Resolve(ctx context.Context, id string) *handle.Handle {
	return handle.Resolve(ctx, b.provider, id, b.logger)
}

// IsFile reports whether h is an existing file.
func (b *Bridge) IsFile(ctx context.Context, h *handle.Handle) bool {
	return h.IsFile(ctx)
}

// IsDirectory reports whether h is an existing directory.
func (b *Bridge) IsDirectory(ctx context.Context, h *handle.Handle) bool {
	return h.IsDirectory(ctx)
}

// Exists reports whether h exists.
func (b *Bridge) Exists(ctx context.Context, h *handle.Handle) bool {
	return h.Exists(ctx)
}

// Size returns the size of h or -1.
func (b *Bridge) Size(ctx context.Context, h *handle.Handle) int64 {
	return h.Size(ctx)
}

// OpenForRead returns a read descriptor for h, or InvalidDescriptor.
func (b *Bridge) OpenForRead(ctx context.Context, h *handle.Handle) int {
	fd, err := b.AcquireRead(ctx, h)
	if err != nil {
		b.absorb("open-read", h, err)
		return InvalidDescriptor
	}
	return fd
}

// OpenForWrite returns a write descriptor for h, creating the document when
// it is missing, or InvalidDescriptor.
func (b *Bridge) OpenForWrite(ctx context.Context, h *handle.Handle, appendMode bool) int {
	res, err := b.AcquireWrite(ctx, h, appendMode)
	if err != nil {
		b.absorb("open-write", h, err)
		return InvalidDescriptor
	}
	if res.Identifier != h.Identifier() {
		b.logger.Debug("document created under a different name",
			"requested", h.Identifier(), "actual", res.Identifier)
	}
	return res.Descriptor
}

// ListChildren returns the children of h, or nil when h is not a directory.
func (b *Bridge) ListChildren(ctx context.Context, h *handle.Handle) []store.DirEntry {
	entries, err := b.Enumerate(ctx, h)
	if err != nil {
		b.absorb("list", h, err)
		return nil
	}
	return entries
}

// AcquireRead opens h for reading and detaches the descriptor.
func (b *Bridge) AcquireRead(ctx context.Context, h *handle.Handle) (int, error) {
	if !h.Valid() {
		return InvalidDescriptor, fmt.Errorf("%w: invalid handle", ErrResolution)
	}
	doc, err := h.Stat(ctx)
	if errors.Is(err, store.ErrNotExist) {
		return InvalidDescriptor, fmt.Errorf("%w: read of missing %s: %w", ErrUnsupported, h.Identifier(), err)
	}
	if err != nil {
		return InvalidDescriptor, fmt.Errorf("%w: %s: %w", ErrResolution, h.Identifier(), err)
	}
	if doc.IsDir() {
		return InvalidDescriptor, fmt.Errorf("%w: read of directory %s", ErrUnsupported, h.Identifier())
	}
	return b.openDetached(ctx, h.Ref(), store.ModeRead)
}

// WriteResult is the outcome of a write acquisition.
type WriteResult struct {
	Descriptor int
	// Identifier is the document actually opened. It differs from the
	// requested one when the store renamed a created document.
	Identifier string
	Trace      Trace
}

// AcquireWrite runs the write state machine for h.
func (b *Bridge) AcquireWrite(ctx context.Context, h *handle.Handle, appendMode bool) (WriteResult, error) {
	mode := store.ModeWrite
	if appendMode {
		mode = store.ModeWriteAppend
	}

	res := WriteResult{Descriptor: InvalidDescriptor, Trace: Trace{StateResolving}}
	fail := func(err error) (WriteResult, error) {
		res.Trace = append(res.Trace, StateFailed)
		return res, err
	}

	if !h.Valid() {
		return fail(fmt.Errorf("%w: invalid handle", ErrResolution))
	}

	target := h
	if doc, err := h.Stat(ctx); err == nil {
		if doc.IsDir() {
			return fail(fmt.Errorf("%w: write to directory %s", ErrUnsupported, h.Identifier()))
		}
	} else if errors.Is(err, store.ErrNotExist) {
		created, err := b.create(ctx, h, &res.Trace)
		if err != nil {
			return fail(err)
		}
		target = created
	} else {
		return fail(fmt.Errorf("%w: %s: %w", ErrResolution, h.Identifier(), err))
	}

	res.Trace = append(res.Trace, StateOpenDirect)
	fd, err := b.openDetached(ctx, target.Ref(), mode)
	if err != nil {
		return fail(err)
	}

	res.Descriptor = fd
	res.Identifier = target.Identifier()
	res.Trace = append(res.Trace, StateDone)
	return res, nil
}

// create runs ResolvingParent -> Creating -> ReResolving and returns a
// handle for the document the store actually created.
func (b *Bridge) create(ctx context.Context, h *handle.Handle, trace *Trace) (*handle.Handle, error) {
	*trace = append(*trace, StateResolvingParent)
	parentID, leaf, err := docid.Split(h.Identifier())
	if err != nil {
		return nil, err
	}
	// parentID came from a normalized identifier and may hold no separator
	// at all when it is the tree root.
	parent, err := handle.ResolveNormalized(ctx, b.provider, parentID)
	if err != nil {
		return nil, fmt.Errorf("%w: parent %s: %w", ErrCreation, parentID, err)
	}
	if !parent.IsDirectory(ctx) {
		return nil, fmt.Errorf("%w: parent %s is not an existing directory", ErrCreation, parentID)
	}

	*trace = append(*trace, StateCreating)
	ref, err := b.provider.CreateDocument(ctx, parent.Ref(), store.MimeOctetStream, leaf)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s: %w", ErrCreation, leaf, parentID, err)
	}

	// The store may not have honored leaf; use what it returned.
	*trace = append(*trace, StateReResolving)
	created, err := handle.ResolveNormalized(ctx, b.provider, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: created %s: %w", ErrCreation, ref, err)
	}
	if !created.Exists(ctx) {
		return nil, fmt.Errorf("%w: created %s does not exist", ErrCreation, ref)
	}
	return created, nil
}

// Enumerate lists the immediate children of h.
func (b *Bridge) Enumerate(ctx context.Context, h *handle.Handle) ([]store.DirEntry, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("%w: invalid handle", ErrResolution)
	}
	if !h.IsDirectory(ctx) {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUnsupported, h.Identifier())
	}
	docs, err := b.provider.ListChildren(ctx, h.Ref())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolution, h.Identifier(), err)
	}

	entries := make([]store.DirEntry, 0, len(docs))
	for i := range docs {
		entries = append(entries, store.DirEntry{
			Name:  docs[i].Name,
			IsDir: docs[i].IsDir(),
		})
	}
	return entries, nil
}

// openDetached opens ref and hands the descriptor to the caller; the
// provider's file is closed on every path.
func (b *Bridge) openDetached(ctx context.Context, ref string, mode store.Mode) (int, error) {
	f, err := b.provider.OpenFile(ctx, ref, mode)
	if err != nil {
		return InvalidDescriptor, fmt.Errorf("%w: open %s (%s): %w", ErrResolution, ref, mode, err)
	}
	scoped := acquire(f)
	defer scoped.Close()

	return scoped.Detach()
}

func (b *Bridge) absorb(op string, h *handle.Handle, err error) {
	b.logger.Debug("operation failed", "op", op, "identifier", h.Identifier(), "error", err)
}
