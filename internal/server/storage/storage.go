// Package storage holds the blob stores that keep image bytes (S3, MinIO,
// local filesystem, memory) and the thumbnail renderer that caches its
// output back into a blob store.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/imagehost/internal/server/config"
)

// BlobStore keeps objects by slash-separated key.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Open returns common.ErrorNotFound for a missing key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete is a no-op for a missing key.
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// NewFromConfig builds the blob store selected by cfg.BlobDriver.
func NewFromConfig(ctx context.Context, cfg *config.Config) (BlobStore, error) {
	switch cfg.BlobDriver {
	case config.BlobDriverS3:
		return NewS3Store(ctx, S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	case config.BlobDriverMinIO:
		return NewMinIOStore(MinIOOptions{
			Endpoint:  cfg.S3BaseEndpoint,
			AccessKey: cfg.S3RootUser,
			SecretKey: cfg.S3RootPassword,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	case config.BlobDriverFS:
		return NewFSStore(cfg.MediaRoot)
	case config.BlobDriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}
