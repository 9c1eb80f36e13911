package fuse

import (
	"context"
	"log/slog"
	"path"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
)

// FuseFS implements the fuse.FS interface
type FuseFS struct {
	filesystem *Filesystem
}

var _ fs.FS = (*FuseFS)(nil)

// Root returns the root directory
func (f *FuseFS) Root() (fs.Node, error) {
	return &Dir{
		filesystem: f.filesystem,
		path:       "/",
	}, nil
}

// Dir represents a directory node
type Dir struct {
	filesystem *Filesystem
	path       string
}

var _ fs.Node = (*Dir)(nil)
var _ fs.NodeStringLookuper = (*Dir)(nil)
var _ fs.HandleReadDirAller = (*Dir)(nil)
var _ fs.NodeCreater = (*Dir)(nil)

// Attr returns directory attributes
func (d *Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	attr, err := d.filesystem.GetAttr(ctx, d.path)
	if err != nil {
		return err
	}
	fillAttr(a, attr)
	return nil
}

// Lookup looks up a child node
func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	childPath := path.Join(d.path, name)

	attr, err := d.filesystem.GetAttr(ctx, childPath)
	if err != nil {
		return nil, syscall.ENOENT
	}

	if attr.Mode.IsDir() {
		return &Dir{
			filesystem: d.filesystem,
			path:       childPath,
		}, nil
	}

	return &File{
		filesystem: d.filesystem,
		path:       childPath,
	}, nil
}

// ReadDirAll reads all directory entries
func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries, err := d.filesystem.ReadDir(ctx, d.path)
	if err != nil {
		return nil, err
	}

	dirents := make([]fuse.Dirent, 0, len(entries))
	for _, entry := range entries {
		dirent := fuse.Dirent{
			Name: entry.Name,
		}
		if entry.IsDir {
			dirent.Type = fuse.DT_Dir
		} else {
			dirent.Type = fuse.DT_File
		}
		dirents = append(dirents, dirent)
	}

	return dirents, nil
}

// Create creates a new file in the directory
func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	childPath := path.Join(d.path, req.Name)

	fh, err := d.filesystem.Create(ctx, childPath)
	if err != nil {
		return nil, nil, err
	}

	file := &File{
		filesystem: d.filesystem,
		path:       childPath,
	}
	return file, &Handle{fh: fh}, nil
}

// File represents a file node
type File struct {
	filesystem *Filesystem
	path       string
}

var _ fs.Node = (*File)(nil)
var _ fs.NodeOpener = (*File)(nil)

// Attr returns file attributes
func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	attr, err := f.filesystem.GetAttr(ctx, f.path)
	if err != nil {
		return err
	}
	fillAttr(a, attr)
	return nil
}

// Open opens a file. Read-write opens are refused: the bridge hands out
// either a read or a write descriptor.
func (f *File) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	var (
		fh  *FileHandle
		err error
	)
	switch {
	case req.Flags.IsReadOnly():
		fh, err = f.filesystem.OpenRead(ctx, f.path)
	case req.Flags.IsWriteOnly():
		fh, err = f.filesystem.OpenWrite(ctx, f.path, req.Flags&fuse.OpenAppend != 0)
	default:
		return nil, syscall.ENOTSUP
	}
	if err != nil {
		return nil, err
	}
	// Sizes change behind the kernel's back once an upload lands
	resp.Flags |= fuse.OpenDirectIO
	return &Handle{fh: fh}, nil
}

// Handle is an open file
type Handle struct {
	fh *FileHandle
}

var _ fs.HandleReader = (*Handle)(nil)
var _ fs.HandleWriter = (*Handle)(nil)
var _ fs.HandleReleaser = (*Handle)(nil)

// Read reads file data
func (h *Handle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	data, err := h.fh.ReadAt(req.Offset, req.Size)
	if err != nil {
		return err
	}
	resp.Data = data
	return nil
}

// Write writes file data
func (h *Handle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	n, err := h.fh.WriteAt(req.Data, req.Offset)
	resp.Size = n
	return err
}

// Release closes the descriptor
func (h *Handle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	return h.fh.Close()
}

func fillAttr(a *fuse.Attr, attr *Attr) {
	a.Mode = attr.Mode
	a.Size = uint64(attr.Size)
	a.Mtime = attr.Mtime
	a.Uid = attr.Uid
	a.Gid = attr.Gid
}

// Mount mounts filesystem at mountpoint and serves requests until the
// mount goes away or ctx is cancelled.
func Mount(ctx context.Context, mountpoint string, filesystem *Filesystem, logger *slog.Logger) error {
	c, err := fuse.Mount(
		mountpoint,
		fuse.FSName("docbridge"),
		fuse.Subtype("docbridge"),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	go func() {
		<-ctx.Done()
		if err := fuse.Unmount(mountpoint); err != nil {
			logger.Warn("unmount failed", "mountpoint", mountpoint, "error", err)
		}
	}()

	logger.Info("mounted filesystem", "mountpoint", mountpoint)

	return fs.Serve(c, &FuseFS{filesystem: filesystem})
}
