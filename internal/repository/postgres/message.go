package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/repositories"
)

// PostgresMessageRepository implements the MessageRepository interface
type PostgresMessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(config *RepositoryConfig) repositories.MessageRepository {
	return &PostgresMessageRepository{pool: config.Pool}
}

// Append stores a message at the end of a conversation
func (r *PostgresMessageRepository) Append(ctx context.Context, conversationID int64, role models.Role, content string) (*models.Message, error) {
	query := `
		INSERT INTO messages (conversation_id, role, content)
		VALUES ($1, $2, $3)
		RETURNING id, conversation_id, role, content, created_at
	`

	var msg models.Message
	err := r.pool.QueryRow(ctx, query, conversationID, string(role), content).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.Role,
		&msg.Content,
		&msg.CreatedAt,
	)

	if err != nil {
		if isPgForeignKeyError(err) {
			return nil, fmt.Errorf("conversation %d: %w", conversationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("append message: %w", err)
	}

	return &msg, nil
}

// Recent retrieves the last n messages of a conversation in
// chronological order. The query walks the tail backwards, so the
// rows come out newest first and are reversed before returning.
func (r *PostgresMessageRepository) Recent(ctx context.Context, conversationID int64, n int) ([]models.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Reverse newest-first into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// ListAsc retrieves every message of a conversation in chronological order
func (r *PostgresMessageRepository) ListAsc(ctx context.Context, conversationID int64) ([]models.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// FirstOfRole retrieves the oldest message with the given role, or nil
// when the conversation has none.
func (r *PostgresMessageRepository) FirstOfRole(ctx context.Context, conversationID int64, role models.Role) (*models.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1 AND role = $2
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`

	var msg models.Message
	err := r.pool.QueryRow(ctx, query, conversationID, string(role)).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.Role,
		&msg.Content,
		&msg.CreatedAt,
	)

	if err != nil {
		if isPgNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("first message of role %s: %w", role, err)
	}

	return &msg, nil
}

func scanMessages(rows pgx.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Content,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	if messages == nil {
		messages = []models.Message{}
	}

	return messages, nil
}
