package fuse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/s3fs-fuse/docbridge/internal/bridge"
	"github.com/s3fs-fuse/docbridge/internal/docid"
	"github.com/s3fs-fuse/docbridge/internal/handle"
)

// Attr represents file attributes
type Attr struct {
	Mode  os.FileMode
	Size  int64
	Mtime time.Time
	Uid   uint32
	Gid   uint32
}

// DirEntry represents a directory entry
type DirEntry struct {
	Name  string
	IsDir bool
}

// Filesystem maps mount-relative paths onto document identifiers below a
// root identifier. It talks to the store only through the bridge's
// primitive calls, the same ones a native caller gets: queries, raw read
// and write descriptors, and child listings.
type Filesystem struct {
	bridge  *bridge.Bridge
	root    string
	logger  *slog.Logger
	mounted time.Time
	uid     uint32
	gid     uint32
}

// NewFilesystem creates a filesystem rooted at the directory identifier root.
func NewFilesystem(b *bridge.Bridge, root string, logger *slog.Logger) *Filesystem {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Filesystem{
		bridge:  b,
		root:    root,
		logger:  logger,
		mounted: time.Now(),
		uid:     uint32(os.Getuid()),
		gid:     uint32(os.Getgid()),
	}
}

// normalizePath removes leading and trailing slashes
func (fs *Filesystem) normalizePath(path string) string {
	return strings.Trim(path, "/")
}

// identifier returns the document identifier for path.
func (fs *Filesystem) identifier(path string) string {
	id := fs.root
	normalizedPath := fs.normalizePath(path)
	if normalizedPath == "" {
		return id
	}
	for _, name := range strings.Split(normalizedPath, "/") {
		id = docid.Child(id, name)
	}
	return id
}

func (fs *Filesystem) resolve(ctx context.Context, path string) *handle.Handle {
	return fs.bridge.Resolve(ctx, fs.identifier(path))
}

// GetAttr retrieves file attributes. The bridge reports no timestamps, so
// every node carries the mount time.
func (fs *Filesystem) GetAttr(ctx context.Context, path string) (*Attr, error) {
	h := fs.resolve(ctx, path)

	attr := &Attr{Mtime: fs.mounted, Uid: fs.uid, Gid: fs.gid}
	switch {
	case fs.bridge.IsDirectory(ctx, h):
		attr.Mode = os.ModeDir | 0o755
	case fs.bridge.IsFile(ctx, h):
		attr.Mode = 0o644
		attr.Size = fs.bridge.Size(ctx, h)
		if attr.Size < 0 {
			// removed between the two calls
			return nil, syscall.ENOENT
		}
	default:
		return nil, syscall.ENOENT
	}
	return attr, nil
}

// ReadDir lists the directory at path
func (fs *Filesystem) ReadDir(ctx context.Context, path string) ([]DirEntry, error) {
	h := fs.resolve(ctx, path)
	if !fs.bridge.IsDirectory(ctx, h) {
		return nil, syscall.ENOTDIR
	}

	children := fs.bridge.ListChildren(ctx, h)
	entries := make([]DirEntry, 0, len(children))
	for _, child := range children {
		entries = append(entries, DirEntry{Name: child.Name, IsDir: child.IsDir})
	}
	return entries, nil
}

// OpenRead returns a reader over the document at path.
func (fs *Filesystem) OpenRead(ctx context.Context, path string) (*FileHandle, error) {
	fd := fs.bridge.OpenForRead(ctx, fs.resolve(ctx, path))
	if fd == bridge.InvalidDescriptor {
		return nil, syscall.EIO
	}
	return newFileHandle(fd, path, false, 0), nil
}

// OpenWrite returns a writer for the document at path, creating it when
// missing. In append mode writes land after the current content; otherwise
// the document is replaced.
func (fs *Filesystem) OpenWrite(ctx context.Context, path string, appendMode bool) (*FileHandle, error) {
	h := fs.resolve(ctx, path)

	var offset int64
	if appendMode {
		if size := fs.bridge.Size(ctx, h); size > 0 {
			offset = size
		}
	}

	fd := fs.bridge.OpenForWrite(ctx, h, appendMode)
	if fd == bridge.InvalidDescriptor {
		return nil, syscall.EIO
	}
	return newFileHandle(fd, path, true, offset), nil
}

// Create creates (or truncates) the file at path and returns a writer.
func (fs *Filesystem) Create(ctx context.Context, path string) (*FileHandle, error) {
	fh, err := fs.OpenWrite(ctx, path, false)
	if err != nil {
		return nil, err
	}
	if !fs.bridge.Exists(ctx, fs.resolve(ctx, path)) {
		// The store picked another name; the node will not be found again.
		fs.logger.Warn("created document under a different name", "path", path)
	}
	return fh, nil
}

// FileHandle wraps a descriptor obtained from the bridge. Write descriptors
// may be pipes, so writes must be sequential.
type FileHandle struct {
	mu       sync.Mutex
	file     *os.File
	writable bool
	offset   int64
}

func newFileHandle(fd int, name string, writable bool, offset int64) *FileHandle {
	return &FileHandle{
		file:     os.NewFile(uintptr(fd), name),
		writable: writable,
		offset:   offset,
	}
}

// ReadAt reads up to size bytes at offset
func (h *FileHandle) ReadAt(offset int64, size int) ([]byte, error) {
	if h.writable {
		return nil, syscall.EBADF
	}
	buf := make([]byte, size)
	n, err := h.file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read: %w", err)
	}
	return buf[:n], nil
}

// WriteAt writes data at offset, which must be where the previous write
// ended.
func (h *FileHandle) WriteAt(data []byte, offset int64) (int, error) {
	if !h.writable {
		return 0, syscall.EBADF
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if offset != h.offset {
		return 0, syscall.ENOTSUP
	}
	n, err := h.file.Write(data)
	h.offset += int64(n)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}
	return n, nil
}

// Close releases the descriptor; for object stores this starts the upload.
func (h *FileHandle) Close() error {
	return h.file.Close()
}
