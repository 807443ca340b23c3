package memory

import (
	"context"
	"slices"

	"github.com/dmitrijs2005/imagehost/internal/common"
	"github.com/dmitrijs2005/imagehost/internal/server/models"
	"github.com/google/uuid"
)

type Images struct {
	s *Store
}

func (r *Images) Create(_ context.Context, image *models.Image) (*models.Image, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, img := range r.s.images {
		if img.StorageKey == image.StorageKey {
			return nil, common.ErrorAlreadyExists
		}
	}

	image.ID = uuid.NewString()
	image.CreatedAt = now()
	r.s.images[image.ID] = copyImage(image)
	r.s.imageOrder = append(r.s.imageOrder, image.ID)
	return image, nil
}

func (r *Images) GetByID(_ context.Context, id string) (*models.Image, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	img, ok := r.s.images[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyImage(img), nil
}

func (r *Images) ListByOwner(_ context.Context, ownerID string) ([]*models.Image, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []*models.Image
	for _, id := range r.s.imageOrder {
		if img := r.s.images[id]; img.OwnerID == ownerID {
			result = append(result, copyImage(img))
		}
	}
	return result, nil
}

// Delete removes the image and cascades to its links.
func (r *Images) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.images[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.images, id)
	r.s.imageOrder = slices.DeleteFunc(r.s.imageOrder, func(v string) bool { return v == id })

	for linkID, l := range r.s.links {
		if l.ImageID == id {
			r.s.removeLink(linkID)
		}
	}
	return nil
}

func copyImage(img *models.Image) *models.Image {
	c := *img
	if img.Width != nil {
		w := *img.Width
		c.Width = &w
	}
	if img.Height != nil {
		h := *img.Height
		c.Height = &h
	}
	return &c
}
