// Package images persists uploaded image metadata. The blob itself lives
// in the blob store under StorageKey.
package images

import (
	"context"

	"github.com/dmitrijs2005/imagehost/internal/server/models"
)

type Repository interface {
	// Create inserts image and fills in its ID and CreatedAt.
	Create(ctx context.Context, image *models.Image) (*models.Image, error)

	// GetByID returns common.ErrorNotFound for an unknown id.
	GetByID(ctx context.Context, id string) (*models.Image, error)

	// ListByOwner returns the owner's images, oldest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Image, error)

	// Delete returns common.ErrorNotFound when no row was removed.
	Delete(ctx context.Context, id string) error
}
