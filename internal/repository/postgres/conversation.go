package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/repositories"
)

// PostgresConversationRepository implements the ConversationRepository interface
type PostgresConversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(config *RepositoryConfig) repositories.ConversationRepository {
	return &PostgresConversationRepository{pool: config.Pool}
}

// Find retrieves a conversation by ID
func (r *PostgresConversationRepository) Find(ctx context.Context, id int64) (*models.Conversation, error) {
	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`

	var conv models.Conversation
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("conversation %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	return &conv, nil
}

// Create creates a new conversation owned by a user
func (r *PostgresConversationRepository) Create(ctx context.Context, userID int64, title *string) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (user_id, title)
		VALUES ($1, $2)
		RETURNING id, user_id, title, created_at, updated_at
	`

	var conv models.Conversation
	err := r.pool.QueryRow(ctx, query, userID, title).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	if err != nil {
		if isPgForeignKeyError(err) {
			return nil, fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	return &conv, nil
}

// ListByUser retrieves a page of a user's conversations, newest first,
// along with the total count for pagination metadata.
func (r *PostgresConversationRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.ConversationSummary, int64, error) {
	query := `
		SELECT c.id, c.user_id, c.title, c.created_at, c.updated_at,
		       COUNT(m.id) AS message_count
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		WHERE c.user_id = $1
		GROUP BY c.id
		ORDER BY c.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	for rows.Next() {
		var s models.ConversationSummary
		err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.Title,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.MessageCount,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan conversation: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate conversations: %w", err)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM conversations WHERE user_id = $1`
	if err := r.pool.QueryRow(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	// Return empty slice instead of nil if no conversations
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}

	return summaries, total, nil
}

// SetTitle assigns a conversation's title and bumps updated_at
func (r *PostgresConversationRepository) SetTitle(ctx context.Context, id int64, title string) error {
	query := `
		UPDATE conversations
		SET title = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, title, id)
	if err != nil {
		return fmt.Errorf("set conversation title: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("conversation %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Touch bumps a conversation's updated_at timestamp
func (r *PostgresConversationRepository) Touch(ctx context.Context, id int64) error {
	query := `
		UPDATE conversations
		SET updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	return nil
}

// Delete removes a conversation. Messages go with it via ON DELETE CASCADE.
func (r *PostgresConversationRepository) Delete(ctx context.Context, id int64) error {
	query := `
		DELETE FROM conversations
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("conversation %d: %w", id, domain.ErrNotFound)
	}

	return nil
}
