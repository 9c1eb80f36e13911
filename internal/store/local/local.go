// Package local serves documents from a directory tree on disk.
//
// It behaves like an on-device document provider: display names are
// sanitized to what a FAT volume accepts and collisions are resolved by
// appending " (n)" before the extension, so CreateDocument may return a
// reference whose name differs from the one requested.
package local

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/s3fs-fuse/docbridge/internal/docid"
	"github.com/s3fs-fuse/docbridge/internal/store"
)

// maxUniqueAttempts bounds the " (n)" suffix search.
const maxUniqueAttempts = 32

// Provider implements store.Provider over a local directory.
type Provider struct {
	root   string
	grants store.Grants
}

var _ store.Provider = (*Provider)(nil)

// New creates a provider rooted at root.
func New(root string, grants store.Grants) (*Provider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s: %w", abs, store.ErrNotDirectory)
	}
	return &Provider{root: abs, grants: grants}, nil
}

// Root returns the absolute root directory.
func (p *Provider) Root() string {
	return p.root
}

// Resolve checks the grant of id and that it stays below the root.
func (p *Provider) Resolve(ctx context.Context, id string) (string, error) {
	if !p.grants.Allows(docid.Tree(id)) {
		return "", fmt.Errorf("tree %q not granted: %w", docid.Tree(id), store.ErrPermission)
	}
	if _, err := p.localPath(id); err != nil {
		return "", err
	}
	return id, nil
}

// Stat returns the metadata of ref.
func (p *Provider) Stat(ctx context.Context, ref string) (*store.Document, error) {
	full, err := p.localPath(ref)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}
	return documentFromInfo(ref, info), nil
}

// OpenFile opens ref. Write modes never create the file.
func (p *Provider) OpenFile(ctx context.Context, ref string, mode store.Mode) (*os.File, error) {
	full, err := p.localPath(ref)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open %s: %w", ref, store.ErrIsDirectory)
	}

	var flag int
	switch mode {
	case store.ModeRead:
		flag = os.O_RDONLY
	case store.ModeWrite:
		flag = os.O_WRONLY | os.O_TRUNC
	case store.ModeWriteAppend:
		flag = os.O_WRONLY | os.O_APPEND
	default:
		return nil, fmt.Errorf("unsupported mode %q", mode)
	}
	return os.OpenFile(full, flag, 0)
}

// CreateDocument creates name under parentRef, renaming on collision.
func (p *Provider) CreateDocument(ctx context.Context, parentRef, mimeType, name string) (string, error) {
	dir, err := p.localPath(parentRef)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("create in %s: %w", parentRef, store.ErrNotDirectory)
	}

	base, ext := splitExtension(SanitizeName(name))
	for i := 0; i < maxUniqueAttempts; i++ {
		candidate := base + ext
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
		}
		full := filepath.Join(dir, candidate)

		if mimeType == store.MimeDirectory {
			err = os.Mkdir(full, 0o755)
		} else {
			var f *os.File
			f, err = os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
			if err == nil {
				err = f.Close()
			}
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", candidate, err)
		}
		return docid.Child(parentRef, candidate), nil
	}
	return "", fmt.Errorf("failed to create %s: no free name: %w", name, os.ErrExist)
}

// ListChildren lists the immediate children of ref.
func (p *Provider) ListChildren(ctx context.Context, ref string) ([]store.Document, error) {
	full, err := p.localPath(ref)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("list %s: %w", ref, store.ErrNotDirectory)
	}

	docs := make([]store.Document, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		docs = append(docs, *documentFromInfo(docid.Child(ref, entry.Name()), info))
	}
	return docs, nil
}

// localPath maps an identifier to a path below the root.
func (p *Provider) localPath(ref string) (string, error) {
	rel, err := docid.DocumentPath(ref)
	if err != nil {
		return "", err
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", fmt.Errorf("path %q escapes root: %w", rel, store.ErrPermission)
		}
	}
	return filepath.Join(p.root, filepath.FromSlash(path.Clean("/"+rel))), nil
}

func documentFromInfo(ref string, info os.FileInfo) *store.Document {
	doc := &store.Document{
		Ref:     ref,
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if info.IsDir() {
		doc.MimeType = store.MimeDirectory
		doc.Size = 0
	} else if t := mime.TypeByExtension(filepath.Ext(info.Name())); t != "" {
		doc.MimeType = t
	} else {
		doc.MimeType = store.MimeOctetStream
	}
	return doc
}

// SanitizeName replaces characters a FAT volume rejects with '_'.
func SanitizeName(name string) string {
	if name == "" || name == "." || name == ".." {
		return "(invalid)"
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return '_'
		}
		switch r {
		case '"', '*', '/', ':', '<', '>', '?', '\\', '|':
			return '_'
		}
		return r
	}, name)
}

func splitExtension(name string) (string, string) {
	ext := filepath.Ext(name)
	if ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}
