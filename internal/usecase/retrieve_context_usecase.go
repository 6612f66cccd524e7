package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"support-assistant/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RetrieveContextInput defines the input parameters for RetrieveContext.
type RetrieveContextInput struct {
	// Queries holds the original question plus its expansion variants.
	Queries []string
}

// RetrieveContextOutput defines the output for RetrieveContext.
type RetrieveContextOutput struct {
	Contexts []ContextItem
}

// ContextItem represents a single retrieved chunk with metadata.
type ContextItem struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	Filename   string
	ChunkText  string
	Score      float32
}

// RetrieveContextUsecase retrieves the passages most relevant to a set
// of query variants. Search failure is a hard dependency failure, not
// a degraded path.
type RetrieveContextUsecase interface {
	Execute(ctx context.Context, input RetrieveContextInput) (*RetrieveContextOutput, error)
}

// RetrievalConfig tunes vector search.
type RetrievalConfig struct {
	// Limit is the maximum number of passages returned.
	Limit int
	// NumCandidates widens the approximate-index candidate set. Must be
	// >= Limit; typical over-fetch factor is 5-10x.
	NumCandidates int
}

type retrieveContextUsecase struct {
	chunkRepo domain.ChunkRepository
	encoder   domain.VectorEncoder
	config    RetrievalConfig
	logger    *slog.Logger
}

// NewRetrieveContextUsecase creates a new RetrieveContextUsecase.
func NewRetrieveContextUsecase(
	chunkRepo domain.ChunkRepository,
	encoder domain.VectorEncoder,
	config RetrievalConfig,
	logger *slog.Logger,
) RetrieveContextUsecase {
	if config.Limit <= 0 {
		config.Limit = 10
	}
	if config.NumCandidates < config.Limit {
		config.NumCandidates = config.Limit * 5
	}
	return &retrieveContextUsecase{
		chunkRepo: chunkRepo,
		encoder:   encoder,
		config:    config,
		logger:    logger,
	}
}

func (u *retrieveContextUsecase) Execute(ctx context.Context, input RetrieveContextInput) (*RetrieveContextOutput, error) {
	if len(input.Queries) == 0 {
		return nil, fmt.Errorf("at least one query is required")
	}

	embeddings, err := u.encoder.Encode(ctx, input.Queries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode queries: %w", err)
	}
	if len(embeddings) != len(input.Queries) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(input.Queries), len(embeddings))
	}

	// One nearest-neighbor search per variant, in parallel. Only ready
	// documents are visible to user-facing retrieval.
	filter := domain.SearchFilter{Statuses: []domain.DocumentStatus{domain.DocumentStatusReady}}
	results := make([][]domain.SearchResult, len(embeddings))
	g, gctx := errgroup.WithContext(ctx)
	for i, vec := range embeddings {
		i, vec := i, vec
		g.Go(func() error {
			found, err := u.chunkRepo.Search(gctx, vec, filter, u.config.Limit, u.config.NumCandidates)
			if err != nil {
				return fmt.Errorf("vector search failed: %w", err)
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge variant results, dedupe by chunk ID, keep best score.
	seen := make(map[uuid.UUID]int)
	var merged []domain.SearchResult
	for _, batch := range results {
		for _, res := range batch {
			if idx, ok := seen[res.Chunk.ID]; ok {
				if res.Score > merged[idx].Score {
					merged[idx] = res
				}
				continue
			}
			seen[res.Chunk.ID] = len(merged)
			merged = append(merged, res)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > u.config.Limit {
		merged = merged[:u.config.Limit]
	}

	contexts := make([]ContextItem, 0, len(merged))
	for _, res := range merged {
		contexts = append(contexts, ContextItem{
			ChunkID:    res.Chunk.ID,
			DocumentID: res.DocumentID,
			Filename:   res.Filename,
			ChunkText:  res.Chunk.Content,
			Score:      res.Score,
		})
	}

	u.logger.Info("retrieval_completed",
		slog.Int("query_count", len(input.Queries)),
		slog.Int("context_count", len(contexts)))

	return &RetrieveContextOutput{Contexts: contexts}, nil
}
