package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"support-assistant/internal/domain"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// IngestInput carries one uploaded file.
type IngestInput struct {
	Filename string
	Data     []byte
}

// IngestOutput is the provisional result returned while verification
// continues in the background.
type IngestOutput struct {
	DocumentID    uuid.UUID
	ChunksCreated int
	Status        domain.DocumentStatus
}

// IngestDocumentUsecase splits an uploaded document into chunks,
// embeds them, stores them, and hands the document to the readiness
// verifier. The synchronous part ends at processing_index; the caller
// polls the status endpoint for the terminal state.
type IngestDocumentUsecase interface {
	Execute(ctx context.Context, input IngestInput) (*IngestOutput, error)
	Delete(ctx context.Context, documentID uuid.UUID) error
}

// VerifierScheduler detaches readiness verification from the upload
// request lifecycle.
type VerifierScheduler interface {
	Schedule(documentID uuid.UUID)
}

type ingestDocumentUsecase struct {
	docRepo    domain.DocumentRepository
	chunkRepo  domain.ChunkRepository
	txManager  domain.TransactionManager
	loader     domain.DocumentLoader
	encoder    domain.VectorEncoder
	scheduler  VerifierScheduler
	extensions map[string]struct{}
	logger     *slog.Logger
}

// NewIngestDocumentUsecase creates the ingestion pipeline.
// allowedExtensions holds lowercase extensions without the leading dot.
func NewIngestDocumentUsecase(
	docRepo domain.DocumentRepository,
	chunkRepo domain.ChunkRepository,
	txManager domain.TransactionManager,
	loader domain.DocumentLoader,
	encoder domain.VectorEncoder,
	scheduler VerifierScheduler,
	allowedExtensions []string,
	logger *slog.Logger,
) IngestDocumentUsecase {
	extensions := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &ingestDocumentUsecase{
		docRepo:    docRepo,
		chunkRepo:  chunkRepo,
		txManager:  txManager,
		loader:     loader,
		encoder:    encoder,
		scheduler:  scheduler,
		extensions: extensions,
		logger:     logger,
	}
}

func (u *ingestDocumentUsecase) Execute(ctx context.Context, input IngestInput) (*IngestOutput, error) {
	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		return nil, fmt.Errorf("filename is required")
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if _, ok := u.extensions[ext]; !ok {
		return nil, fmt.Errorf("%w: .%s", domain.ErrUnsupportedExtension, ext)
	}

	doc := &domain.Document{
		ID:         uuid.New(),
		Filename:   filename,
		Size:       int64(len(input.Data)),
		Status:     domain.DocumentStatusProcessing,
		UploadedAt: time.Now().UTC(),
	}
	if err := u.docRepo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	chunkCount, err := u.process(ctx, doc, input.Data)
	if err != nil {
		// Partial chunk sets from a failed run are not rolled back;
		// cleanup happens on document deletion.
		u.markError(ctx, doc.ID, err)
		return nil, err
	}

	count := chunkCount
	if err := u.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessingIndex, &count, nil, nil); err != nil {
		u.markError(ctx, doc.ID, err)
		return nil, fmt.Errorf("failed to update document status: %w", err)
	}

	u.scheduler.Schedule(doc.ID)

	u.logger.Info("document_ingested",
		slog.String("document_id", doc.ID.String()),
		slog.String("filename", filename),
		slog.Int("chunk_count", chunkCount))

	return &IngestOutput{
		DocumentID:    doc.ID,
		ChunksCreated: chunkCount,
		Status:        domain.DocumentStatusProcessingIndex,
	}, nil
}

func (u *ingestDocumentUsecase) process(ctx context.Context, doc *domain.Document, data []byte) (int, error) {
	spans, err := u.loader.Load(ctx, doc.Filename, data)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", doc.Filename, err)
	}
	if len(spans) == 0 {
		return 0, fmt.Errorf("no extractable text in %s", doc.Filename)
	}

	embeddings, err := u.encoder.Encode(ctx, spans)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(spans) {
		return 0, fmt.Errorf("expected %d embeddings, got %d", len(spans), len(embeddings))
	}

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, len(spans))
	for i, span := range spans {
		chunks[i] = domain.Chunk{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Ordinal:    i,
			Content:    span,
			Embedding:  pgvector.NewVector(embeddings[i]),
			Metadata: map[string]interface{}{
				"filename": doc.Filename,
				"ordinal":  i,
			},
			CreatedAt: now,
		}
	}

	if err := u.chunkRepo.BulkInsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to persist chunks: %w", err)
	}
	return len(chunks), nil
}

// Delete removes the document and all of its chunks in one
// transaction, so no orphaned chunks can outlive the record.
func (u *ingestDocumentUsecase) Delete(ctx context.Context, documentID uuid.UUID) error {
	if _, err := u.docRepo.GetByID(ctx, documentID); err != nil {
		return err
	}
	return u.txManager.RunInTx(ctx, func(ctx context.Context) error {
		if err := u.chunkRepo.DeleteByDocumentID(ctx, documentID); err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}
		if err := u.docRepo.Delete(ctx, documentID); err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		return nil
	})
}

func (u *ingestDocumentUsecase) markError(ctx context.Context, docID uuid.UUID, cause error) {
	msg := cause.Error()
	if err := u.docRepo.UpdateStatus(ctx, docID, domain.DocumentStatusError, nil, nil, &msg); err != nil {
		u.logger.Error("failed to mark document error",
			slog.String("document_id", docID.String()),
			slog.String("error", err.Error()))
	}
}
