package repositories

import (
	"context"

	"chatrelay/internal/domain/models"
)

// UserRepository persists users keyed by their hashed API credential.
type UserRepository interface {
	// FindByAPIKeyHash retrieves a user by hashed credential.
	// Returns domain.ErrNotFound if no user has registered that credential.
	FindByAPIKeyHash(ctx context.Context, hash string) (*models.User, error)

	// Create registers a new user for a hashed credential.
	Create(ctx context.Context, hash string) (*models.User, error)
}
