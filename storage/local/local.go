// Package local implements storage.Reader against the local filesystem,
// the same way friggdb's local backend addresses one root directory per
// tenant/block. It is built on the standard library: a local filesystem
// backend has no third-party ecosystem counterpart in this corpus, since
// every other example repo's local backend is likewise bare os/io (see
// DESIGN.md).
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/LessThanGreaterThan/quickwit/storage"
)

// Reader reads split files rooted at a local directory.
type Reader struct {
	root string
}

// New returns a Reader rooted at root. root must already exist.
func New(root string) (*Reader, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local storage: %s is not a directory", root)
	}
	return &Reader{root: root}, nil
}

func (r *Reader) URI() string {
	return "file://" + r.root
}

func (r *Reader) resolve(path string) string {
	return filepath.Join(r.root, filepath.FromSlash(path))
}

func (r *Reader) GetSlice(ctx context.Context, path string, byteRange storage.ByteRange) ([]byte, error) {
	f, err := os.Open(r.resolve(path))
	if err != nil {
		return nil, wrapNotFound(err)
	}
	defer f.Close()

	buf := make([]byte, byteRange.Len())
	if _, err := f.ReadAt(buf, int64(byteRange.Start)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("local storage: read %s: %w", path, err)
	}
	return buf, nil
}

func (r *Reader) GetAll(ctx context.Context, path string) ([]byte, error) {
	b, err := os.ReadFile(r.resolve(path))
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return b, nil
}

func (r *Reader) FileLength(ctx context.Context, path string) (uint64, error) {
	info, err := os.Stat(r.resolve(path))
	if err != nil {
		return 0, wrapNotFound(err)
	}
	return uint64(info.Size()), nil
}

func wrapNotFound(err error) error {
	if os.IsNotExist(err) {
		return storage.ErrNotFound
	}
	return err
}

var _ storage.Reader = (*Reader)(nil)
