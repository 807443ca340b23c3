package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOOptions struct {
	// Endpoint may be a bare host:port or a URL; a URL's scheme decides
	// TLS and overrides UseSSL.
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinIOStore keeps objects in a MinIO bucket via minio-go.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(opts MinIOOptions) (*MinIOStore, error) {
	host, secure, err := parseEndpoint(opts.Endpoint, opts.UseSSL)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinIOStore{client: client, bucket: opts.Bucket}, nil
}

func parseEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if endpoint == "" {
		return "", false, fmt.Errorf("empty minio endpoint")
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint, useSSL, nil
	}
	switch u.Scheme {
	case "https":
		return u.Host, true, nil
	case "http":
		return u.Host, false, nil
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}

func (m *MinIOStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("minio put %s: %w", key, err)
	}
	return nil
}

// Open stats the object first, since minio GetObject defers errors to the
// first read.
func (m *MinIOStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinIOError(key, err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, mapMinIOError(key, err)
	}
	return obj, nil
}

func (m *MinIOStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio delete %s: %w", key, err)
	}
	return nil
}

func (m *MinIOStore) DeletePrefix(ctx context.Context, prefix string) error {
	objects := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	for rErr := range m.client.RemoveObjects(ctx, m.bucket, objects, minio.RemoveObjectsOptions{}) {
		if rErr.Err != nil {
			return fmt.Errorf("minio delete %s: %w", rErr.ObjectName, rErr.Err)
		}
	}
	return nil
}

func mapMinIOError(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return common.ErrorNotFound
	}
	return fmt.Errorf("minio get %s: %w", key, err)
}
