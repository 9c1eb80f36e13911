// Package object serves documents kept in a key/value object backend
// (S3, PostgreSQL, MongoDB, Badger).
//
// Keys are decoded document paths. A directory exists when it holds a
// ".keep" marker or any key below it. Backends have no file descriptors, so
// reads are spooled into an unlinked temp file and writes go through a pipe
// whose reader uploads the content once the writer is closed.
package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/s3fs-fuse/docbridge/internal/docid"
	"github.com/s3fs-fuse/docbridge/internal/storage"
	"github.com/s3fs-fuse/docbridge/internal/storage/types"
	"github.com/s3fs-fuse/docbridge/internal/store"
)

// keepMarker is the empty object that materializes a directory.
const keepMarker = ".keep"

// maxUniqueAttempts bounds the " (n)" suffix search.
const maxUniqueAttempts = 32

// Provider implements store.Provider over a storage.Backend.
type Provider struct {
	backend  storage.Backend
	grants   store.Grants
	spoolDir string
	logger   *slog.Logger

	mu      sync.Mutex
	uploads *errgroup.Group
}

var _ store.Provider = (*Provider)(nil)

// New creates a provider. spoolDir holds the temporary read copies; empty
// means os.TempDir.
func New(backend storage.Backend, grants store.Grants, spoolDir string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{
		backend:  backend,
		grants:   grants,
		spoolDir: spoolDir,
		logger:   logger,
		uploads:  new(errgroup.Group),
	}
}

// Resolve checks the grant of id and returns it as the reference.
func (p *Provider) Resolve(ctx context.Context, id string) (string, error) {
	if !p.grants.Allows(docid.Tree(id)) {
		return "", fmt.Errorf("tree %q not granted: %w", docid.Tree(id), store.ErrPermission)
	}
	if _, err := objectKey(id); err != nil {
		return "", err
	}
	return id, nil
}

// Stat returns the live metadata of ref.
func (p *Provider) Stat(ctx context.Context, ref string) (*store.Document, error) {
	key, err := objectKey(ref)
	if err != nil {
		return nil, err
	}
	return p.stat(ctx, ref, key)
}

func (p *Provider) stat(ctx context.Context, ref, key string) (*store.Document, error) {
	if key == "" {
		return &store.Document{Ref: ref, MimeType: store.MimeDirectory}, nil
	}

	attr, err := p.backend.GetAttr(ctx, key)
	if err == nil {
		contentType := attr.ContentType
		if contentType == "" {
			contentType = store.MimeOctetStream
		}
		return &store.Document{
			Ref:      ref,
			Name:     path.Base(key),
			MimeType: contentType,
			Size:     attr.Size,
			ModTime:  attr.Mtime,
		}, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}

	isDir, err := p.isDir(ctx, key)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return nil, fmt.Errorf("stat %s: %w", key, store.ErrNotExist)
	}
	return &store.Document{Ref: ref, Name: path.Base(key), MimeType: store.MimeDirectory}, nil
}

// isDir reports whether key has a marker or any object below it.
func (p *Provider) isDir(ctx context.Context, key string) (bool, error) {
	keys, err := p.backend.List(ctx, key+"/")
	if err != nil {
		return false, fmt.Errorf("list %s: %w", key, err)
	}
	return len(keys) > 0, nil
}

// OpenFile opens ref. Write modes never create the document.
func (p *Provider) OpenFile(ctx context.Context, ref string, mode store.Mode) (*os.File, error) {
	key, err := objectKey(ref)
	if err != nil {
		return nil, err
	}
	doc, err := p.stat(ctx, ref, key)
	if err != nil {
		return nil, err
	}
	if doc.IsDir() {
		return nil, fmt.Errorf("open %s: %w", ref, store.ErrIsDirectory)
	}

	switch mode {
	case store.ModeRead:
		return p.spool(ctx, key)
	case store.ModeWrite, store.ModeWriteAppend:
		return p.pipe(key, doc.MimeType, mode == store.ModeWriteAppend)
	}
	return nil, fmt.Errorf("unsupported mode %q", mode)
}

// spool copies the object into a temp file that is unlinked before it is
// returned, so it disappears with its last descriptor.
func (p *Provider) spool(ctx context.Context, key string) (*os.File, error) {
	data, err := p.backend.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	f, err := os.CreateTemp(p.spoolDir, "docbridge-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to unlink spool file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to fill spool file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// pipe returns the write end of a pipe. Once every copy of it is closed
// the collected bytes replace the object (or follow its current content
// when appending).
func (p *Provider) pipe(key, contentType string, appendMode bool) (*os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}

	p.mu.Lock()
	g := p.uploads
	p.mu.Unlock()

	g.Go(func() error {
		defer r.Close()
		err := p.upload(r, key, contentType, appendMode)
		if err != nil {
			p.logger.Error("upload failed", "key", key, "error", err)
		}
		return err
	})
	return w, nil
}

func (p *Provider) upload(r io.Reader, key, contentType string, appendMode bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read pipe for %s: %w", key, err)
	}

	// The writer is gone; no caller context is left to honour.
	ctx := context.Background()
	if appendMode {
		existing, err := p.backend.Read(ctx, key)
		if err != nil {
			return fmt.Errorf("read %s for append: %w", key, err)
		}
		data = append(existing, data...)
	}

	if contentType == store.MimeOctetStream && len(data) > 0 {
		contentType = mimetype.Detect(data).String()
	}

	if err := p.backend.WriteWithMetadata(ctx, key, data, map[string]string{types.MetaContentType: contentType}); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	p.logger.Debug("uploaded document", "key", key, "size", len(data), "append", appendMode)
	return nil
}

// Sync waits for every upload started so far and returns the first error.
func (p *Provider) Sync() error {
	p.mu.Lock()
	g := p.uploads
	p.uploads = new(errgroup.Group)
	p.mu.Unlock()
	return g.Wait()
}

// Close waits for pending uploads and closes the backend.
func (p *Provider) Close() error {
	return errors.Join(p.Sync(), p.backend.Close())
}

// CreateDocument creates name under parentRef, renaming on collision.
func (p *Provider) CreateDocument(ctx context.Context, parentRef, mimeType, name string) (string, error) {
	parentKey, err := objectKey(parentRef)
	if err != nil {
		return "", err
	}
	parent, err := p.stat(ctx, parentRef, parentKey)
	if err != nil {
		return "", err
	}
	if !parent.IsDir() {
		return "", fmt.Errorf("create in %s: %w", parentRef, store.ErrNotDirectory)
	}

	base, ext := splitExtension(sanitizeName(name))
	for i := 0; i < maxUniqueAttempts; i++ {
		candidate := base + ext
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
		}
		key := path.Join(parentKey, candidate)

		taken, err := p.taken(ctx, key)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}

		if mimeType == store.MimeDirectory {
			err = p.backend.Write(ctx, key+"/"+keepMarker, []byte{})
		} else {
			err = p.backend.WriteWithMetadata(ctx, key, []byte{}, map[string]string{types.MetaContentType: mimeType})
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", candidate, err)
		}
		return docid.Child(parentRef, candidate), nil
	}
	return "", fmt.Errorf("failed to create %s: no free name: %w", name, os.ErrExist)
}

func (p *Provider) taken(ctx context.Context, key string) (bool, error) {
	exists, err := p.backend.Exists(ctx, key)
	if err != nil || exists {
		return exists, err
	}
	return p.isDir(ctx, key)
}

// ListChildren lists the immediate children of ref, hiding markers.
func (p *Provider) ListChildren(ctx context.Context, ref string) ([]store.Document, error) {
	key, err := objectKey(ref)
	if err != nil {
		return nil, err
	}
	doc, err := p.stat(ctx, ref, key)
	if err != nil {
		return nil, err
	}
	if !doc.IsDir() {
		return nil, fmt.Errorf("list %s: %w", ref, store.ErrNotDirectory)
	}

	prefix := ""
	if key != "" {
		prefix = key + "/"
	}
	keys, err := p.backend.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", key, err)
	}

	seen := make(map[string]bool)
	docs := make([]store.Document, 0)
	for _, k := range keys {
		rel := strings.TrimPrefix(k, prefix)
		if rel == "" || rel == keepMarker {
			continue
		}

		name, _, isDir := strings.Cut(rel, "/")
		if seen[name] {
			continue
		}
		seen[name] = true

		childRef := docid.Child(ref, name)
		if isDir {
			docs = append(docs, store.Document{Ref: childRef, Name: name, MimeType: store.MimeDirectory})
			continue
		}
		child, err := p.stat(ctx, childRef, k)
		if err != nil {
			// removed between List and GetAttr
			continue
		}
		docs = append(docs, *child)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// objectKey maps an identifier to a backend key without leading slash.
func objectKey(ref string) (string, error) {
	rel, err := docid.DocumentPath(ref)
	if err != nil {
		return "", err
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", fmt.Errorf("path %q escapes root: %w", rel, store.ErrPermission)
		}
	}
	key := strings.TrimPrefix(path.Clean("/"+rel), "/")
	return key, nil
}

// sanitizeName replaces the characters a key component cannot carry.
func sanitizeName(name string) string {
	if name == "" || name == "." || name == ".." || name == keepMarker {
		return "(invalid)"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == 0 {
			return '_'
		}
		return r
	}, name)
}

func splitExtension(name string) (string, string) {
	ext := path.Ext(name)
	if ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}
