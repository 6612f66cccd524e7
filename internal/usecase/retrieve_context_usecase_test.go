package usecase_test

import (
	"context"
	"errors"
	"testing"

	"support-assistant/internal/domain"
	"support-assistant/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func searchResult(chunkID, docID uuid.UUID, content string, score float32) domain.SearchResult {
	return domain.SearchResult{
		Chunk:      domain.Chunk{ID: chunkID, DocumentID: docID, Content: content},
		Score:      score,
		DocumentID: docID,
		Filename:   "doc.pdf",
	}
}

func TestRetrieveContext_MergesAndRanksVariantResults(t *testing.T) {
	encoder := new(mockVectorEncoder)
	chunkRepo := new(mockChunkRepo)

	vecA := []float32{1, 0}
	vecB := []float32{0, 1}
	encoder.On("Encode", mock.Anything, []string{"q1", "q2"}).Return([][]float32{vecA, vecB}, nil)

	docID := uuid.New()
	shared := uuid.New()
	only1 := uuid.New()
	only2 := uuid.New()

	readyFilter := domain.SearchFilter{Statuses: []domain.DocumentStatus{domain.DocumentStatusReady}}
	chunkRepo.On("Search", mock.Anything, vecA, readyFilter, 10, 50).Return([]domain.SearchResult{
		searchResult(shared, docID, "shared chunk", 0.7),
		searchResult(only1, docID, "first-only chunk", 0.5),
	}, nil)
	chunkRepo.On("Search", mock.Anything, vecB, readyFilter, 10, 50).Return([]domain.SearchResult{
		searchResult(shared, docID, "shared chunk", 0.9),
		searchResult(only2, docID, "second-only chunk", 0.6),
	}, nil)

	uc := usecase.NewRetrieveContextUsecase(chunkRepo, encoder, usecase.RetrievalConfig{Limit: 10, NumCandidates: 50}, discardLogger())
	output, err := uc.Execute(context.Background(), usecase.RetrieveContextInput{Queries: []string{"q1", "q2"}})
	require.NoError(t, err)

	// Duplicate chunk collapsed, best score kept, sorted descending.
	require.Len(t, output.Contexts, 3)
	assert.Equal(t, shared, output.Contexts[0].ChunkID)
	assert.InDelta(t, 0.9, output.Contexts[0].Score, 1e-6)
	assert.Equal(t, only2, output.Contexts[1].ChunkID)
	assert.Equal(t, only1, output.Contexts[2].ChunkID)
}

func TestRetrieveContext_TruncatesToLimit(t *testing.T) {
	encoder := new(mockVectorEncoder)
	chunkRepo := new(mockChunkRepo)

	vec := []float32{1}
	encoder.On("Encode", mock.Anything, []string{"q"}).Return([][]float32{vec}, nil)

	docID := uuid.New()
	results := make([]domain.SearchResult, 5)
	for i := range results {
		results[i] = searchResult(uuid.New(), docID, "chunk", float32(5-i)/10)
	}
	chunkRepo.On("Search", mock.Anything, vec, mock.Anything, 2, 10).Return(results, nil)

	uc := usecase.NewRetrieveContextUsecase(chunkRepo, encoder, usecase.RetrievalConfig{Limit: 2, NumCandidates: 10}, discardLogger())
	output, err := uc.Execute(context.Background(), usecase.RetrieveContextInput{Queries: []string{"q"}})
	require.NoError(t, err)
	assert.Len(t, output.Contexts, 2)
}

func TestRetrieveContext_RequiresQueries(t *testing.T) {
	uc := usecase.NewRetrieveContextUsecase(new(mockChunkRepo), new(mockVectorEncoder), usecase.RetrievalConfig{}, discardLogger())
	_, err := uc.Execute(context.Background(), usecase.RetrieveContextInput{})
	assert.Error(t, err)
}

func TestRetrieveContext_PropagatesEncoderFailure(t *testing.T) {
	encoder := new(mockVectorEncoder)
	encoder.On("Encode", mock.Anything, mock.Anything).Return(nil, errors.New("embedding service down"))

	uc := usecase.NewRetrieveContextUsecase(new(mockChunkRepo), encoder, usecase.RetrievalConfig{}, discardLogger())
	_, err := uc.Execute(context.Background(), usecase.RetrieveContextInput{Queries: []string{"q"}})
	assert.ErrorContains(t, err, "failed to encode queries")
}

func TestRetrieveContext_PropagatesSearchFailure(t *testing.T) {
	encoder := new(mockVectorEncoder)
	chunkRepo := new(mockChunkRepo)
	encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{1}}, nil)
	chunkRepo.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))

	uc := usecase.NewRetrieveContextUsecase(chunkRepo, encoder, usecase.RetrievalConfig{}, discardLogger())
	_, err := uc.Execute(context.Background(), usecase.RetrieveContextInput{Queries: []string{"q"}})
	assert.ErrorContains(t, err, "vector search failed")
}

func TestRetrieveContext_DefaultsNumCandidates(t *testing.T) {
	encoder := new(mockVectorEncoder)
	chunkRepo := new(mockChunkRepo)
	vec := []float32{1}
	encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{vec}, nil)
	// Limit 10 with no explicit candidate budget over-fetches 5x.
	chunkRepo.On("Search", mock.Anything, vec, mock.Anything, 10, 50).Return([]domain.SearchResult{}, nil)

	uc := usecase.NewRetrieveContextUsecase(chunkRepo, encoder, usecase.RetrievalConfig{}, discardLogger())
	output, err := uc.Execute(context.Background(), usecase.RetrieveContextInput{Queries: []string{"q"}})
	require.NoError(t, err)
	assert.Empty(t, output.Contexts)
	chunkRepo.AssertExpectations(t)
}
