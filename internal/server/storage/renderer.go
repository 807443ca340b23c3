package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/logging"
	"github.com/dmitrijs2005/imagehost/internal/server/metrics"
	"github.com/dmitrijs2005/imagehost/internal/server/renditions"
	"github.com/gabriel-vasile/mimetype"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const thumbnailRoot = "thumbnails/"

// ThumbnailPrefix is the key prefix under which every rendition of the
// original stored at originalKey is cached.
func ThumbnailPrefix(originalKey string) string {
	return thumbnailRoot + originalKey + "/"
}

// ThumbnailKey is the blob key of one cached rendition. The extension
// follows the original so the encoder keeps its format.
func ThumbnailKey(originalKey string, spec renditions.Spec) string {
	return ThumbnailPrefix(originalKey) + spec.Key + strings.ToLower(path.Ext(originalKey))
}

// ImagingRenderer resizes originals with disintegration/imaging and caches
// the result both in the blob store and in a bounded in-process LRU.
// Concurrent requests for the same rendition share one render.
type ImagingRenderer struct {
	blobs    BlobStore
	cache    *lru.Cache[string, []byte]
	group    singleflight.Group
	logger   logging.Logger
	observer metrics.Observer
}

// NewImagingRenderer builds a renderer over blobs. cacheSize <= 0 disables
// the in-process cache.
func NewImagingRenderer(blobs BlobStore, cacheSize int, logger logging.Logger, observer metrics.Observer) (*ImagingRenderer, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	if observer == nil {
		observer = metrics.Nop{}
	}
	r := &ImagingRenderer{
		blobs:    blobs,
		logger:   logger.With("module", "renderer"),
		observer: observer,
	}
	if cacheSize > 0 {
		c, err := lru.New[string, []byte](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("rendition cache: %w", err)
		}
		r.cache = c
	}
	return r, nil
}

func (r *ImagingRenderer) Render(ctx context.Context, originalKey string, spec renditions.Spec) (io.ReadCloser, error) {
	key := ThumbnailKey(originalKey, spec)

	if b, ok := r.cached(key); ok {
		return io.NopCloser(bytes.NewReader(b)), nil
	}

	if rc, err := r.blobs.Open(ctx, key); err == nil {
		b, err := io.ReadAll(rc)
		_ = rc.Close()
		if err == nil {
			r.remember(key, b)
			return io.NopCloser(bytes.NewReader(b)), nil
		}
		r.logger.Warn(ctx, "cached rendition unreadable", "key", key, "error", err)
	} else if !errors.Is(err, common.ErrorNotFound) {
		r.logger.Warn(ctx, "cached rendition lookup failed", "key", key, "error", err)
	}

	// The shared render outlives any single caller's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(key, func() (any, error) {
		if b, ok := r.cached(key); ok {
			return b, nil
		}
		start := time.Now()
		b, err := r.render(flightCtx, originalKey, key, spec)
		r.observer.RecordRender(time.Since(start), err)
		if err != nil {
			return nil, err
		}
		r.remember(key, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(v.([]byte))), nil
}

func (r *ImagingRenderer) render(ctx context.Context, originalKey, key string, spec renditions.Spec) ([]byte, error) {
	format, err := imaging.FormatFromFilename(originalKey)
	if err != nil {
		return nil, fmt.Errorf("rendition format for %s: %w", originalKey, err)
	}

	rc, err := r.blobs.Open(ctx, originalKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	src, err := imaging.Decode(rc, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", originalKey, err)
	}

	dst := imaging.Resize(src, spec.Width, spec.Height, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, format); err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	b := buf.Bytes()

	contentType := mimetype.Detect(b).String()
	if err := r.blobs.Put(ctx, key, bytes.NewReader(b), int64(len(b)), contentType); err != nil {
		r.logger.Warn(ctx, "failed to cache rendition", "key", key, "error", err)
	} else {
		r.logger.Debug(ctx, "rendition cached", "key", key)
	}
	return b, nil
}

func (r *ImagingRenderer) cached(key string) ([]byte, bool) {
	if r.cache == nil {
		return nil, false
	}
	return r.cache.Get(key)
}

func (r *ImagingRenderer) remember(key string, b []byte) {
	if r.cache != nil {
		r.cache.Add(key, b)
	}
}

// Forget drops every cached rendition of originalKey from the in-process
// cache. Blob copies are removed separately with DeletePrefix.
func (r *ImagingRenderer) Forget(originalKey string) {
	if r.cache == nil {
		return
	}
	prefix := ThumbnailPrefix(originalKey)
	for _, k := range r.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			r.cache.Remove(k)
		}
	}
}
