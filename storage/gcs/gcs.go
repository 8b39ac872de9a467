// Package gcs implements storage.Reader against a Google Cloud Storage
// bucket, adapted from friggdb's GCS backend (readRange/readAll) to the
// byte-range contract splits are opened against.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"

	gstorage "cloud.google.com/go/storage"

	"github.com/LessThanGreaterThan/quickwit/storage"
)

// Config names the bucket and path prefix splits live under.
type Config struct {
	BucketName string `yaml:"bucket_name"`
	Prefix     string `yaml:"prefix"`
}

// Reader reads split files from a GCS bucket.
type Reader struct {
	cfg    Config
	bucket *gstorage.BucketHandle
}

// New opens a Reader against cfg.BucketName, authenticating with the
// ambient environment credentials the same way the client library does by
// default.
func New(ctx context.Context, cfg Config) (*Reader, error) {
	client, err := gstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs storage: %w", err)
	}
	return &Reader{
		cfg:    cfg,
		bucket: client.Bucket(cfg.BucketName),
	}, nil
}

func (r *Reader) URI() string {
	return fmt.Sprintf("gs://%s/%s", r.cfg.BucketName, r.cfg.Prefix)
}

func (r *Reader) objectName(p string) string {
	return path.Join(r.cfg.Prefix, p)
}

func (r *Reader) GetSlice(ctx context.Context, p string, byteRange storage.ByteRange) ([]byte, error) {
	reader, err := r.bucket.Object(r.objectName(p)).NewRangeReader(ctx, int64(byteRange.Start), int64(byteRange.Len()))
	if err != nil {
		return nil, wrapNotFound(err)
	}
	defer reader.Close()

	b, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("gcs storage: read %s: %w", p, err)
	}
	return b, nil
}

func (r *Reader) GetAll(ctx context.Context, p string) ([]byte, error) {
	reader, err := r.bucket.Object(r.objectName(p)).NewReader(ctx)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	defer reader.Close()

	b, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("gcs storage: read %s: %w", p, err)
	}
	return b, nil
}

func (r *Reader) FileLength(ctx context.Context, p string) (uint64, error) {
	attrs, err := r.bucket.Object(r.objectName(p)).Attrs(ctx)
	if err != nil {
		return 0, wrapNotFound(err)
	}
	return uint64(attrs.Size), nil
}

func wrapNotFound(err error) error {
	if err == gstorage.ErrObjectNotExist {
		return storage.ErrNotFound
	}
	return err
}

var _ storage.Reader = (*Reader)(nil)
