package repository

import (
	"context"
	"fmt"

	"support-assistant/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(pool *pgxpool.Pool) domain.MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) getExecutor(ctx context.Context) interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
} {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *messageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, role, content, sources, timestamp, token_count, cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.getExecutor(ctx).Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.Sources, msg.Timestamp, msg.TokenCount, msg.Cost)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (r *messageRepository) ListByConversationID(ctx context.Context, conversationID uuid.UUID, skip, limit int, ascending bool) ([]domain.Message, int, error) {
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}
	query := fmt.Sprintf(`
		SELECT id, conversation_id, role, content, sources, timestamp, token_count, cost
		FROM messages
		WHERE conversation_id = $1
		ORDER BY timestamp %s
		OFFSET $2 LIMIT $3
	`, direction)

	rows, err := r.getExecutor(ctx).Query(ctx, query, conversationID, skip, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Sources, &msg.Timestamp, &msg.TokenCount, &msg.Cost); err != nil {
			return nil, 0, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	var total int
	if err := r.getExecutor(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, conversationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return messages, total, nil
}

func (r *messageRepository) DeleteByConversationID(ctx context.Context, conversationID uuid.UUID) (int, error) {
	tag, err := r.getExecutor(ctx).Exec(ctx,
		`DELETE FROM messages WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
