package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/repositories"
)

// PostgresUserRepository implements the UserRepository interface
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(config *RepositoryConfig) repositories.UserRepository {
	return &PostgresUserRepository{pool: config.Pool}
}

// FindByAPIKeyHash retrieves the user that owns the given key digest
func (r *PostgresUserRepository) FindByAPIKeyHash(ctx context.Context, hash string) (*models.User, error) {
	query := `
		SELECT id, api_key_hash, created_at
		FROM users
		WHERE api_key_hash = $1
	`

	var user models.User
	err := r.pool.QueryRow(ctx, query, hash).Scan(
		&user.ID,
		&user.APIKeyHash,
		&user.CreatedAt,
	)

	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find user by key hash: %w", err)
	}

	return &user, nil
}

// Create registers a new user for a key digest. When two requests race
// on the same digest the unique constraint collapses them to one row.
func (r *PostgresUserRepository) Create(ctx context.Context, hash string) (*models.User, error) {
	query := `
		INSERT INTO users (api_key_hash)
		VALUES ($1)
		RETURNING id, api_key_hash, created_at
	`

	var user models.User
	err := r.pool.QueryRow(ctx, query, hash).Scan(
		&user.ID,
		&user.APIKeyHash,
		&user.CreatedAt,
	)

	if err != nil {
		if isPgDuplicateError(err) {
			return r.FindByAPIKeyHash(ctx, hash)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &user, nil
}
