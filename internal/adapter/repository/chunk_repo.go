package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"support-assistant/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type chunkRepository struct {
	pool *pgxpool.Pool
}

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(pool *pgxpool.Pool) domain.ChunkRepository {
	return &chunkRepository{pool: pool}
}

type dbExecutor interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *chunkRepository) getExecutor(ctx context.Context) dbExecutor {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *chunkRepository) BulkInsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(chunks))
	for i, chunk := range chunks {
		metadata, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
		rows[i] = []interface{}{
			chunk.ID,
			chunk.DocumentID,
			chunk.Ordinal,
			chunk.Content,
			chunk.Embedding,
			metadata,
			chunk.CreatedAt,
		}
	}

	_, err := r.getExecutor(ctx).CopyFrom(
		ctx,
		pgx.Identifier{"document_chunks"},
		[]string{"id", "document_id", "ordinal", "content", "embedding", "metadata", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert chunks: %w", err)
	}
	return nil
}

// Search performs nearest-neighbor search with cosine distance. The
// hnsw.ef_search session setting is the over-fetch knob: the index
// considers numCandidates neighbors before the limit cut, improving
// recall from the approximate graph.
func (r *chunkRepository) Search(ctx context.Context, queryVector []float32, filter domain.SearchFilter, limit, numCandidates int) ([]domain.SearchResult, error) {
	if numCandidates < limit {
		numCandidates = limit
	}

	statuses := filter.Statuses
	if len(statuses) == 0 {
		statuses = []domain.DocumentStatus{domain.DocumentStatusReady}
	}
	statusStrings := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrings[i] = string(s)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin search transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", numCandidates)); err != nil {
		return nil, fmt.Errorf("failed to set search candidates: %w", err)
	}

	query := `
		SELECT c.id, c.document_id, c.ordinal, c.content, c.metadata, c.created_at,
		       1 - (c.embedding <=> $1) AS score,
		       d.filename, d.status
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.status = ANY($2)
		ORDER BY c.embedding <=> $1
		LIMIT $3
	`
	rows, err := tx.Query(ctx, query, pgvector.NewVector(queryVector), statusStrings, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var res domain.SearchResult
		var metadata []byte
		var status string
		if err := rows.Scan(
			&res.Chunk.ID, &res.Chunk.DocumentID, &res.Chunk.Ordinal, &res.Chunk.Content,
			&metadata, &res.Chunk.CreatedAt, &res.Score, &res.Filename, &status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &res.Chunk.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
			}
		}
		res.DocumentID = res.Chunk.DocumentID
		res.DocumentStatus = domain.DocumentStatus(status)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit search transaction: %w", err)
	}
	return results, nil
}

func (r *chunkRepository) SampleByDocumentID(ctx context.Context, documentID uuid.UUID, n int) ([]domain.Chunk, error) {
	query := `
		SELECT id, document_id, ordinal, content, metadata, created_at
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY ordinal ASC
		LIMIT $2
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, documentID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to sample chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var metadata []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Content, &metadata, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
			}
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return chunks, nil
}

func (r *chunkRepository) CountByDocumentID(ctx context.Context, documentID uuid.UUID) (int, error) {
	var count int
	err := r.getExecutor(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM document_chunks WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

func (r *chunkRepository) DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error {
	_, err := r.getExecutor(ctx).Exec(ctx,
		`DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}
