// (c) 2024-2026, Rift Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"errors"
	"fmt"
	"strings"
)

// PathSeparator joins path segments in the canonical text form and in
// backing-store keys. Segments may never contain it.
const PathSeparator = "/"

var (
	ErrEmptyPath      = errors.New("path has no segments")
	ErrInvalidSegment = errors.New("path segment contains invalid characters")
)

// Path addresses one node of the durable store: an ordered, non-empty
// sequence of segments. A path holds either a leaf value or a subtree,
// never both.
type Path []string

// NewPath builds a validated path from segments.
func NewPath(segments ...string) (Path, error) {
	if len(segments) == 0 {
		return nil, ErrEmptyPath
	}
	for _, seg := range segments {
		if !validSegment(seg) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSegment, seg)
		}
	}
	p := make(Path, len(segments))
	copy(p, segments)
	return p, nil
}

// ParsePath parses the canonical text form ("a/b/c").
func ParsePath(s string) (Path, error) {
	return NewPath(strings.Split(s, PathSeparator)...)
}

// MustPath is NewPath for compile-time constant paths; it panics on
// invalid segments.
func MustPath(segments ...string) Path {
	p, err := NewPath(segments...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string { return strings.Join(p, PathSeparator) }

// Key returns the backing-store key for the leaf stored at this path.
func (p Path) Key() []byte { return []byte(p.String()) }

// Append returns a new path with [segments] appended. The receiver is not
// modified.
func (p Path) Append(segments ...string) (Path, error) {
	for _, seg := range segments {
		if !validSegment(seg) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSegment, seg)
		}
	}
	child := make(Path, 0, len(p)+len(segments))
	child = append(child, p...)
	child = append(child, segments...)
	return child, nil
}

func validSegment(seg string) bool {
	if len(seg) == 0 {
		return false
	}
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '.' || c == '-':
		default:
			return false
		}
	}
	return true
}
