// Package users declares the user repository and its PostgreSQL implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/imagehost/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in its ID and CreatedAt. A taken
	// username yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}
