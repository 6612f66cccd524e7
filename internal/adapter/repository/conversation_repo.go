package repository

import (
	"context"
	"errors"
	"fmt"

	"support-assistant/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type conversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(pool *pgxpool.Pool) domain.ConversationRepository {
	return &conversationRepository{pool: pool}
}

func (r *conversationRepository) getExecutor(ctx context.Context) interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
} {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	query := `
		INSERT INTO conversations (id, user_id, title, status, message_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.getExecutor(ctx).Exec(ctx, query,
		conv.ID, conv.UserID, conv.Title, conv.Status, conv.MessageCount, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT id, user_id, title, status, message_count, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`
	row := r.getExecutor(ctx).QueryRow(ctx, query, id)

	var conv domain.Conversation
	err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.Status, &conv.MessageCount, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}
	return &conv, nil
}

func (r *conversationRepository) ListByUserID(ctx context.Context, userID string, skip, limit int) ([]domain.Conversation, int, error) {
	query := `
		SELECT id, user_id, title, status, message_count, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
		OFFSET $2 LIMIT $3
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, userID, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.Status, &conv.MessageCount, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	var total int
	if err := r.getExecutor(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM conversations WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return conversations, total, nil
}

func (r *conversationRepository) Update(ctx context.Context, id uuid.UUID, title, status *string) (*domain.Conversation, error) {
	query := `
		UPDATE conversations
		SET title = COALESCE($1, title),
		    status = COALESCE($2, status),
		    updated_at = NOW()
		WHERE id = $3
		RETURNING id, user_id, title, status, message_count, created_at, updated_at
	`
	row := r.getExecutor(ctx).QueryRow(ctx, query, title, status, id)

	var conv domain.Conversation
	err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.Status, &conv.MessageCount, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	return &conv, nil
}

func (r *conversationRepository) IncrementMessageCount(ctx context.Context, id uuid.UUID, delta int) error {
	query := `
		UPDATE conversations
		SET message_count = message_count + $1, updated_at = NOW()
		WHERE id = $2
	`
	_, err := r.getExecutor(ctx).Exec(ctx, query, delta, id)
	if err != nil {
		return fmt.Errorf("failed to increment message count: %w", err)
	}
	return nil
}

func (r *conversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.getExecutor(ctx).Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}
