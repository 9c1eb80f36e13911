// Package store defines the document provider the bridge consumes.
//
// A provider maps identifiers to references, answers metadata queries and
// hands out *os.File values for the modes a document store supports. The
// bridge never holds on to those files; see package bridge.
package store

import (
	"context"
	"errors"
	"os"
	"time"
)

// MimeOctetStream is the content type used when the bridge creates a file.
const MimeOctetStream = "application/octet-stream"

// MimeDirectory marks a directory document.
const MimeDirectory = "vnd.android.document/directory"

var (
	// ErrNotExist reports a reference that no longer resolves to a document.
	ErrNotExist = os.ErrNotExist

	// ErrPermission reports an identifier outside every granted tree.
	ErrPermission = os.ErrPermission

	// ErrNotDirectory is returned when a directory operation targets a file.
	ErrNotDirectory = errors.New("not a directory")

	// ErrIsDirectory is returned when a file operation targets a directory.
	ErrIsDirectory = errors.New("is a directory")
)

// Mode is the access mode passed to OpenFile.
type Mode string

const (
	ModeRead        Mode = "r"
	ModeWrite       Mode = "w"
	ModeWriteAppend Mode = "wa"
)

// Document is one entry as reported by the store.
type Document struct {
	Ref      string
	Name     string
	MimeType string
	Size     int64
	ModTime  time.Time
}

// IsDir reports whether d is a directory.
func (d *Document) IsDir() bool {
	return d.MimeType == MimeDirectory
}

// DirEntry is one child returned by an enumeration.
type DirEntry struct {
	Name  string
	IsDir bool
}

// Provider is the document store seen by the bridge.
type Provider interface {
	// Resolve checks that id lies inside a granted tree and returns the
	// reference the other methods accept. It does not check existence.
	Resolve(ctx context.Context, id string) (string, error)

	// Stat returns the live metadata of ref, or ErrNotExist.
	Stat(ctx context.Context, ref string) (*Document, error)

	// OpenFile opens ref in the given mode. The caller closes the file.
	OpenFile(ctx context.Context, ref string, mode Mode) (*os.File, error)

	// CreateDocument creates a document named name under parentRef and
	// returns its reference. The store may pick a different name.
	CreateDocument(ctx context.Context, parentRef, mimeType, name string) (string, error)

	// ListChildren returns the immediate children of the directory ref.
	ListChildren(ctx context.Context, ref string) ([]Document, error)
}

// Grants restricts identifiers to a set of tree segments. An empty set
// grants everything.
type Grants map[string]struct{}

// NewGrants builds a grant set from tree segments.
func NewGrants(trees ...string) Grants {
	g := make(Grants, len(trees))
	for _, t := range trees {
		g[t] = struct{}{}
	}
	return g
}

// Allows reports whether tree is granted.
func (g Grants) Allows(tree string) bool {
	if len(g) == 0 {
		return true
	}
	_, ok := g[tree]
	return ok
}
