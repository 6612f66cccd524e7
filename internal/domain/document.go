package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// DocumentStatus tracks a document through the ingestion lifecycle.
// Transitions: processing -> processing_index -> ready | error.
// ready and error are terminal; error requires re-upload.
type DocumentStatus string

const (
	DocumentStatusProcessing      DocumentStatus = "processing"
	DocumentStatusProcessingIndex DocumentStatus = "processing_index"
	DocumentStatusReady           DocumentStatus = "ready"
	DocumentStatusError           DocumentStatus = "error"
)

// Terminal reports whether no further transitions are allowed from s.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentStatusReady || s == DocumentStatusError
}

// Document represents an uploaded file moving through the readiness
// state machine. Owned by the ingestion pipeline until processing_index,
// then by the readiness verifier until a terminal state.
type Document struct {
	ID           uuid.UUID
	Filename     string
	Size         int64
	Status       DocumentStatus
	UploadedAt   time.Time
	ProcessedAt  *time.Time
	ChunkCount   *int
	ErrorMessage *string
}

// Chunk is a bounded span of a document's text, the unit of embedding
// and retrieval. Immutable after creation; removed only by cascading
// document deletion.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Ordinal    int
	Content    string
	Embedding  pgvector.Vector
	Metadata   map[string]interface{}
	CreatedAt  time.Time
}

// SearchResult is a chunk found via nearest-neighbor search with its
// similarity score and the owning document's identity.
type SearchResult struct {
	Chunk          Chunk
	Score          float32
	DocumentID     uuid.UUID
	Filename       string
	DocumentStatus DocumentStatus
}

// SearchFilter narrows a vector search.
type SearchFilter struct {
	// Statuses restricts results to documents in the given states.
	// Empty means ready-only, the user-facing default.
	Statuses []DocumentStatus
}

var (
	ErrDocumentNotFound     = errors.New("document not found")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
)

// DocumentRepository manages document records and their status machine.
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error
	// GetByID returns ErrDocumentNotFound when the document is absent.
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	// UpdateStatus writes the status and optional metadata in a single
	// statement. Terminal transitions must be idempotent: updating a
	// document already in a terminal state is a no-op.
	UpdateStatus(ctx context.Context, id uuid.UUID, status DocumentStatus, chunkCount *int, processedAt *time.Time, errorMessage *string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ChunkRepository manages chunk persistence and vector search.
type ChunkRepository interface {
	BulkInsert(ctx context.Context, chunks []Chunk) error
	// Search performs nearest-neighbor search ordered by similarity.
	// numCandidates >= limit widens the approximate-index candidate set
	// to improve recall; implementations may ignore it when the index
	// is exact.
	Search(ctx context.Context, queryVector []float32, filter SearchFilter, limit, numCandidates int) ([]SearchResult, error)
	// SampleByDocumentID returns up to n chunks of the document.
	SampleByDocumentID(ctx context.Context, documentID uuid.UUID, n int) ([]Chunk, error)
	CountByDocumentID(ctx context.Context, documentID uuid.UUID) (int, error)
	DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error
}
