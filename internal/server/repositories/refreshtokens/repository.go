// Package refreshtokens declares the server-side repository contract for
// refresh tokens and its PostgreSQL implementation.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/imagehost/internal/server/models"
)

// Repository stores, looks up and revokes refresh tokens.
type Repository interface {
	// Create stores token as given; Expires must already be set.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find returns common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete is a no-op for an unknown token.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes tokens whose expiry is at or before now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
