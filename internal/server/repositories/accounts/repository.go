// Package accounts stores the account behind each user and resolves the
// perk names its tier grants.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/imagehost/internal/server/models"
)

type Repository interface {
	// Create binds a new account to userID on the tier named tierName.
	// An empty or unknown tier name leaves the account without a tier.
	Create(ctx context.Context, userID string, tierName string) (*models.Account, error)

	// GetByUserID returns common.ErrorNotFound when the user has no account.
	GetByUserID(ctx context.Context, userID string) (*models.Account, error)

	// PerkNames lists the perk names granted by the user's tier. A missing
	// account or tier yields an empty slice and no error.
	PerkNames(ctx context.Context, userID string) ([]string, error)
}
