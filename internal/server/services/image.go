package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/dbx"
	"github.com/dmitrijs2005/imagehost/internal/logging"
	"github.com/dmitrijs2005/imagehost/internal/server/auth"
	"github.com/dmitrijs2005/imagehost/internal/server/metrics"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
	"github.com/dmitrijs2005/imagehost/internal/server/perks"
	"github.com/dmitrijs2005/imagehost/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/imagehost/internal/server/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// allowedUploadTypes maps accepted upload MIME types to their stored
// extension.
var allowedUploadTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// Authorizer decides access to an image's original and thumbnails.
type Authorizer interface {
	AuthorizeOriginal(ctx context.Context, requester auth.Identity, image *models.Image) error
	AuthorizeThumbnail(ctx context.Context, requester auth.Identity, image *models.Image, height int) error
}

// ArtifactResolver opens the bytes of an image or one of its renditions.
type ArtifactResolver interface {
	ResolveOriginal(ctx context.Context, image *models.Image) (io.ReadCloser, error)
	ResolveThumbnail(ctx context.Context, image *models.Image, height int) (io.ReadCloser, error)
}

// LinkRedeemer maps a public link name to its image.
type LinkRedeemer interface {
	Redeem(ctx context.Context, name string) (*models.Image, error)
}

// RenditionCache forgets in-process renditions of a deleted original.
type RenditionCache interface {
	Forget(originalKey string)
}

// Artifact is an opened image payload. The caller closes Body.
type Artifact struct {
	Image       *models.Image
	ContentType string
	Body        io.ReadCloser
}

// ImageServiceDeps groups the collaborators of ImageService.
type ImageServiceDeps struct {
	Exec          dbx.Executor
	Repos         repomanager.RepositoryManager
	Blobs         storage.BlobStore
	Authorizer    Authorizer
	Resolver      ArtifactResolver
	Links         LinkRedeemer
	Catalog       *perks.Catalog
	Renditions    RenditionCache
	MaxUploadSize int64
	Clock         func() time.Time
	Logger        logging.Logger
	Observer      metrics.Observer
}

// ImageService handles uploads, listing, deletion and serving of images.
type ImageService struct {
	exec          dbx.Executor
	repomanager   repomanager.RepositoryManager
	blobs         storage.BlobStore
	authorizer    Authorizer
	resolver      ArtifactResolver
	links         LinkRedeemer
	catalog       *perks.Catalog
	renditions    RenditionCache
	maxUploadSize int64
	clock         func() time.Time
	logger        logging.Logger
	observer      metrics.Observer
}

func NewImageService(d ImageServiceDeps) *ImageService {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Logger == nil {
		d.Logger = logging.Nop{}
	}
	if d.Observer == nil {
		d.Observer = metrics.Nop{}
	}
	return &ImageService{
		exec:          d.Exec,
		repomanager:   d.Repos,
		blobs:         d.Blobs,
		authorizer:    d.Authorizer,
		resolver:      d.Resolver,
		links:         d.Links,
		catalog:       d.Catalog,
		renditions:    d.Renditions,
		maxUploadSize: d.MaxUploadSize,
		clock:         d.Clock,
		logger:        d.Logger.With("module", "images"),
		observer:      d.Observer,
	}
}

// NewStorageKey returns a fresh key for an original uploaded at t.
func NewStorageKey(t time.Time, ext string) string {
	return fmt.Sprintf("original_size/%s/%s%s", t.UTC().Format("2006/01/02"), uuid.NewString(), ext)
}

// Upload stores a JPEG or PNG original owned by owner. Other content,
// undecodable images and oversized bodies yield common.ErrorBadRequest.
func (s *ImageService) Upload(ctx context.Context, owner auth.Identity, filename string, r io.Reader) (img *models.Image, err error) {
	if owner.Anonymous() {
		return nil, common.ErrorUnauthorized
	}

	start := s.clock()
	var size int64
	defer func() {
		s.observer.RecordUpload(s.clock().Sub(start), size, err)
	}()

	data, err := s.readUpload(r)
	if err != nil {
		return nil, err
	}
	size = int64(len(data))

	mt := mimetype.Detect(data)
	ext, ok := allowedUploadTypes[mt.String()]
	if !ok {
		return nil, fmt.Errorf("unsupported content type %s: %w", mt.String(), common.ErrorBadRequest)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %v: %w", err, common.ErrorBadRequest)
	}

	key := NewStorageKey(start, ext)
	if err := s.blobs.Put(ctx, key, bytes.NewReader(data), size, mt.String()); err != nil {
		return nil, fmt.Errorf("store original: %w", err)
	}

	width, height := cfg.Width, cfg.Height
	img, err = s.repomanager.Images(s.exec.Conn()).Create(ctx, &models.Image{
		OwnerID:     owner.UserID,
		StorageKey:  key,
		ContentType: mt.String(),
		Width:       &width,
		Height:      &height,
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn(ctx, "failed to remove orphaned original", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("error creating image: %w", err)
	}

	s.logger.Info(ctx, "image uploaded", "image_id", img.ID, "filename", filename, "size", size)
	return img, nil
}

func (s *ImageService) readUpload(r io.Reader) ([]byte, error) {
	if s.maxUploadSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxUploadSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxUploadSize {
		return nil, fmt.Errorf("upload exceeds %d bytes: %w", s.maxUploadSize, common.ErrorBadRequest)
	}
	return data, nil
}

// List returns the requester's own images, oldest first.
func (s *ImageService) List(ctx context.Context, requester auth.Identity) ([]*models.Image, error) {
	if requester.Anonymous() {
		return nil, common.ErrorUnauthorized
	}
	return s.repomanager.Images(s.exec.Conn()).ListByOwner(ctx, requester.UserID)
}

// Get returns an image owned by the requester. Other users' images look
// missing unless the requester is staff.
func (s *ImageService) Get(ctx context.Context, requester auth.Identity, id string) (*models.Image, error) {
	img, err := s.repomanager.Images(s.exec.Conn()).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !requester.IsStaff && img.OwnerID != requester.UserID {
		return nil, common.ErrorNotFound
	}
	return img, nil
}

// Delete removes an image visible to the requester together with its
// links, then its original and cached renditions. Blob cleanup failures
// are logged and do not fail the call.
func (s *ImageService) Delete(ctx context.Context, requester auth.Identity, id string) error {
	img, err := s.Get(ctx, requester, id)
	if err != nil {
		return err
	}

	var removedLinks int64
	err = s.exec.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.Links(tx).DeleteByImage(ctx, img.ID)
		if err != nil {
			return err
		}
		removedLinks = n
		return s.repomanager.Images(tx).Delete(ctx, img.ID)
	})
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, img.StorageKey); err != nil {
		s.logger.Warn(ctx, "failed to delete original", "key", img.StorageKey, "error", err)
	}
	if err := s.blobs.DeletePrefix(ctx, storage.ThumbnailPrefix(img.StorageKey)); err != nil {
		s.logger.Warn(ctx, "failed to delete renditions", "key", img.StorageKey, "error", err)
	}
	if s.renditions != nil {
		s.renditions.Forget(img.StorageKey)
	}

	s.logger.Info(ctx, "image deleted", "image_id", img.ID, "links", removedLinks)
	return nil
}

// OpenOriginal serves the original bytes to a requester the engine admits.
func (s *ImageService) OpenOriginal(ctx context.Context, requester auth.Identity, id string) (*Artifact, error) {
	img, err := s.repomanager.Images(s.exec.Conn()).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.AuthorizeOriginal(ctx, requester, img); err != nil {
		return nil, err
	}
	body, err := s.resolver.ResolveOriginal(ctx, img)
	if err != nil {
		return nil, err
	}
	return &Artifact{Image: img, ContentType: img.ContentType, Body: body}, nil
}

// OpenThumbnail serves the rendition at height. Heights with no configured
// perk yield common.ErrorBadRequest for every requester.
func (s *ImageService) OpenThumbnail(ctx context.Context, requester auth.Identity, id string, height int) (*Artifact, error) {
	img, err := s.repomanager.Images(s.exec.Conn()).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := s.catalog.Thumbnail(height); !ok {
		return nil, fmt.Errorf("thumbnail height %d not offered: %w", height, common.ErrorBadRequest)
	}
	if err := s.authorizer.AuthorizeThumbnail(ctx, requester, img, height); err != nil {
		return nil, err
	}
	body, err := s.resolver.ResolveThumbnail(ctx, img, height)
	if err != nil {
		if errors.Is(err, common.ErrMissingDimensions) {
			s.logger.Error(ctx, "image has no cached dimensions", "image_id", img.ID)
		}
		return nil, err
	}
	return &Artifact{Image: img, ContentType: img.ContentType, Body: body}, nil
}

// OpenLink serves the original behind a public link name.
func (s *ImageService) OpenLink(ctx context.Context, name string) (*Artifact, error) {
	img, err := s.links.Redeem(ctx, name)
	if err != nil {
		return nil, err
	}
	body, err := s.resolver.ResolveOriginal(ctx, img)
	if err != nil {
		return nil, err
	}
	return &Artifact{Image: img, ContentType: img.ContentType, Body: body}, nil
}
