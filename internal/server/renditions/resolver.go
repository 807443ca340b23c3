// Package renditions maps a requested thumbnail height onto a concrete
// rendition of an image: the original bytes when the height matches, or a
// resized copy produced by a Renderer.
package renditions

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
)

// Spec identifies one rendition. Key is "{Height}x{Width}" and is shared
// with the renderer's cache layout, so its format must not change.
type Spec struct {
	Height int
	Width  int
	Key    string
}

// ThumbnailSpec computes the rendition for requestedHeight of an image with
// the given cached dimensions. The width is truncated, not rounded.
func ThumbnailSpec(width, height *int, requestedHeight int) (Spec, error) {
	if width == nil || height == nil || *height <= 0 {
		return Spec{}, common.ErrMissingDimensions
	}
	newWidth := int(int64(requestedHeight) * int64(*width) / int64(*height))
	return Spec{
		Height: requestedHeight,
		Width:  newWidth,
		Key:    fmt.Sprintf("%dx%d", requestedHeight, newWidth),
	}, nil
}

// BlobOpener reads stored objects.
type BlobOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Renderer produces (and may cache) the rendition spec of the original
// stored under originalKey.
type Renderer interface {
	Render(ctx context.Context, originalKey string, spec Spec) (io.ReadCloser, error)
}

type Resolver struct {
	blobs    BlobOpener
	renderer Renderer
}

func NewResolver(blobs BlobOpener, renderer Renderer) *Resolver {
	return &Resolver{blobs: blobs, renderer: renderer}
}

// ResolveOriginal opens the original bytes of image.
func (r *Resolver) ResolveOriginal(ctx context.Context, image *models.Image) (io.ReadCloser, error) {
	return r.blobs.Open(ctx, image.StorageKey)
}

// ResolveThumbnail opens image at height. A height equal to the native one
// is served from the original without rendering.
func (r *Resolver) ResolveThumbnail(ctx context.Context, image *models.Image, height int) (io.ReadCloser, error) {
	spec, err := ThumbnailSpec(image.Width, image.Height, height)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", image.ID, err)
	}
	if height == *image.Height {
		return r.blobs.Open(ctx, image.StorageKey)
	}
	return r.renderer.Render(ctx, image.StorageKey, spec)
}
