// Package storage defines the byte-range reader contract splits are opened
// against (C1 in SPEC_FULL.md), and the concrete local and GCS backends
// that implement it.
package storage

import (
	"context"
	"fmt"
)

// ByteRange is a half-open [Start, End) range of bytes within a split file.
type ByteRange struct {
	Start uint64
	End   uint64
}

// Len returns the number of bytes the range covers.
func (r ByteRange) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Reader is a storage backend's read side: byte-range fetches against a
// split path, addressed relative to the backend's own root (bucket, local
// directory, ...).
type Reader interface {
	// GetSlice returns the bytes in byteRange for path.
	GetSlice(ctx context.Context, path string, byteRange ByteRange) ([]byte, error)

	// GetAll returns the entirety of path; used for small files like a
	// split's hotcache footer, where issuing a ranged request isn't worth
	// it.
	GetAll(ctx context.Context, path string) ([]byte, error)

	// FileLength returns the total size of path, needed to compute the
	// footer's own byte range before it has been read.
	FileLength(ctx context.Context, path string) (uint64, error)

	// URI identifies the backend for logs and error messages, e.g.
	// "file:///var/lib/quickwit/splits" or "gs://bucket/prefix".
	URI() string
}

// ErrNotFound is returned by a Reader when path does not exist.
var ErrNotFound = fmt.Errorf("storage: object not found")
