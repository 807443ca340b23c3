// Package links persists expiring links.
package links

import (
	"context"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/server/models"
)

type Repository interface {
	// Create inserts link and fills in its ID. A duplicate name yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, link *models.ExpiringLink) (*models.ExpiringLink, error)

	// FindByName and GetByID return common.ErrorNotFound when absent.
	FindByName(ctx context.Context, name string) (*models.ExpiringLink, error)
	GetByID(ctx context.Context, id string) (*models.ExpiringLink, error)

	// ListByOwner returns links of images owned by ownerID; ListAll
	// returns every link. Both order by creation time.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.ExpiringLink, error)
	ListAll(ctx context.Context) ([]*models.ExpiringLink, error)

	// Delete removes a link by id. Removing an absent link is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteByImage removes every link of an image.
	DeleteByImage(ctx context.Context, imageID string) (int64, error)

	// DeleteExpired removes links with expiring <= now and reports how many.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
