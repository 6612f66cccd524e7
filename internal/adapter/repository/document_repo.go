package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"support-assistant/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type documentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(pool *pgxpool.Pool) domain.DocumentRepository {
	return &documentRepository{pool: pool}
}

func (r *documentRepository) getExecutor(ctx context.Context) interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
} {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *documentRepository) Create(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (id, filename, size, status, uploaded_at, processed_at, chunk_count, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.getExecutor(ctx).Exec(ctx, query,
		doc.ID, doc.Filename, doc.Size, doc.Status, doc.UploadedAt, doc.ProcessedAt, doc.ChunkCount, doc.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	query := `
		SELECT id, filename, size, status, uploaded_at, processed_at, chunk_count, error_message
		FROM documents
		WHERE id = $1
	`
	row := r.getExecutor(ctx).QueryRow(ctx, query, id)

	var doc domain.Document
	err := row.Scan(&doc.ID, &doc.Filename, &doc.Size, &doc.Status, &doc.UploadedAt, &doc.ProcessedAt, &doc.ChunkCount, &doc.ErrorMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	return &doc, nil
}

// UpdateStatus writes the new status in a single statement. The status
// guard makes terminal transitions idempotent: a document already in
// ready or error never regresses.
func (r *documentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DocumentStatus, chunkCount *int, processedAt *time.Time, errorMessage *string) error {
	query := `
		UPDATE documents
		SET status = $1,
		    chunk_count = COALESCE($2, chunk_count),
		    processed_at = COALESCE($3, processed_at),
		    error_message = COALESCE($4, error_message)
		WHERE id = $5
		  AND status NOT IN ('ready', 'error')
	`
	_, err := r.getExecutor(ctx).Exec(ctx, query, status, chunkCount, processedAt, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	return nil
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.getExecutor(ctx).Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
