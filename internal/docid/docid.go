// Package docid reconstructs document identifiers handed in by native callers.
//
// An identifier looks like
//
//	primary%3Aeasyrpg/document/primary%3Aeasyrpg%2Fgames%2FTestGame
//
// where the part after "/document/" is a percent-encoded path. Callers that
// address a file inside such a directory append raw components
// ("/Title/Title.png") which the store would reject; Normalize encodes them.
package docid

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	// Separator is the encoded path separator that splits a document path.
	Separator = "%2F"

	// documentMarker separates the granted tree from the document id.
	documentMarker = "/document/"

	upperhex = "0123456789ABCDEF"
)

// ErrMalformedIdentifier is returned when an identifier has no encoded separator.
var ErrMalformedIdentifier = errors.New("malformed identifier")

// Normalize percent-encodes the raw trailing components of id.
//
// The last encoded separator marks the boundary: everything from the first
// raw "/" after it is encoded, the prefix is kept byte for byte. An id that
// is already normalized is returned unchanged.
//
// Only the document part is searched. A "%2F" inside the tree segment in
// front of "/document/" is ignored, so a tree root such as
// "primary%3Aeasyrpg/document/primary%3Aeasyrpg" is malformed here.
func Normalize(id string) (string, error) {
	marker := lastSeparator(id)
	if marker == -1 {
		return "", fmt.Errorf("%w: %q", ErrMalformedIdentifier, id)
	}

	slash := strings.IndexByte(id[marker:], '/')
	if slash == -1 {
		return id, nil
	}
	slash += marker

	return id[:slash] + Encode(id[slash:]), nil
}

// Split returns the parent identifier and the decoded leaf name of id.
func Split(id string) (parent, leaf string, err error) {
	marker := lastSeparator(id)
	if marker == -1 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedIdentifier, id)
	}

	leaf, err = Decode(id[marker+len(Separator):])
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformedIdentifier, err)
	}
	return id[:marker], leaf, nil
}

// Child returns the identifier of name inside parent.
func Child(parent, name string) string {
	return parent + Separator + Encode(name)
}

// Tree returns the granted tree segment of id, or "" when id carries none.
func Tree(id string) string {
	if i := strings.Index(id, documentMarker); i != -1 {
		return id[:i]
	}
	return ""
}

// DocumentPath returns the decoded slash path addressed by id, without the
// tree prefix.
func DocumentPath(id string) (string, error) {
	doc := id
	if i := strings.Index(id, documentMarker); i != -1 {
		doc = id[i+len(documentMarker):]
	}

	p, err := Decode(doc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedIdentifier, err)
	}
	return p, nil
}

// Encode percent-encodes s. Only letters, digits and _-!.~'()* pass through.
func Encode(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// Decode reverses Encode. A '+' is kept literally.
func Decode(s string) (string, error) {
	return url.PathUnescape(s)
}

// lastSeparator finds the last encoded separator inside the document part of
// id, so the tree segment and "/document/" are never touched.
func lastSeparator(id string) int {
	start := 0
	if i := strings.Index(id, documentMarker); i != -1 {
		start = i + len(documentMarker)
	}
	i := strings.LastIndex(id[start:], Separator)
	if i == -1 {
		return -1
	}
	return start + i
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '_', '-', '!', '.', '~', '\'', '(', ')', '*':
		return true
	}
	return false
}
