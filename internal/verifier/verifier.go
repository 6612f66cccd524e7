// Package verifier confirms that newly indexed documents are actually
// retrievable before exposing them to users. The vector index is
// eventually consistent: a chunk written successfully may stay
// unsearchable for a bounded interval, so verification polls with
// backoff instead of assuming immediate consistency.
package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"support-assistant/internal/domain"

	"github.com/google/uuid"
)

// Config holds the knobs of the verification protocol.
type Config struct {
	// SettleDelay is the initial wait amortizing index build latency.
	SettleDelay time.Duration
	// SampleSize is how many of the document's chunks are probed.
	SampleSize int
	// MaxAttempts bounds the retry loop.
	MaxAttempts int
	// BaseDelay and DelayIncrement drive the linear backoff between
	// attempts: base + attempt*increment.
	BaseDelay      time.Duration
	DelayIncrement time.Duration
	// ProbeLimit is the search depth of the per-chunk probes.
	ProbeLimit int
	// FinalLimit is the stricter search depth of the final check.
	FinalLimit int
	// ExcerptLength bounds the self-query excerpt in bytes.
	ExcerptLength int
}

// DefaultConfig mirrors production settings.
func DefaultConfig() Config {
	return Config{
		SettleDelay:    2 * time.Second,
		SampleSize:     3,
		MaxAttempts:    5,
		BaseDelay:      1 * time.Second,
		DelayIncrement: 2 * time.Second,
		ProbeLimit:     20,
		FinalLimit:     5,
		ExcerptLength:  200,
	}
}

// ReadinessVerifier drives documents from processing_index to a
// terminal ready or error state. Multiple verifiers may run
// concurrently for different documents; each owns its document record
// exclusively for the duration of its run.
type ReadinessVerifier struct {
	docRepo   domain.DocumentRepository
	chunkRepo domain.ChunkRepository
	encoder   domain.VectorEncoder
	clock     domain.Clock
	config    Config
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// New creates a verifier.
func New(
	docRepo domain.DocumentRepository,
	chunkRepo domain.ChunkRepository,
	encoder domain.VectorEncoder,
	clock domain.Clock,
	config Config,
	logger *slog.Logger,
) *ReadinessVerifier {
	if config.SampleSize <= 0 {
		config.SampleSize = 3
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.ProbeLimit <= 0 {
		config.ProbeLimit = 20
	}
	if config.FinalLimit <= 0 {
		config.FinalLimit = 5
	}
	if config.ExcerptLength <= 0 {
		config.ExcerptLength = 200
	}
	return &ReadinessVerifier{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		encoder:   encoder,
		clock:     clock,
		config:    config,
		logger:    logger,
	}
}

// Schedule starts verification as a detached background task,
// decoupled from the request that triggered it. There is no
// cancellation: once started, a run reaches one of its terminal
// outcomes or the process exits.
func (v *ReadinessVerifier) Schedule(documentID uuid.UUID) {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		if err := v.Run(context.Background(), documentID); err != nil {
			v.logger.Error("verification run failed",
				slog.String("document_id", documentID.String()),
				slog.String("error", err.Error()))
		}
	}()
}

// Wait blocks until all scheduled runs have finished. Used by tests
// and graceful shutdown.
func (v *ReadinessVerifier) Wait() {
	v.wg.Wait()
}

// Run executes the state machine for one document synchronously.
func (v *ReadinessVerifier) Run(ctx context.Context, documentID uuid.UUID) error {
	doc, err := v.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	if doc.Status != domain.DocumentStatusProcessingIndex {
		// Already terminal or not yet submitted; nothing to verify.
		return nil
	}

	if err := v.verify(ctx, doc); err != nil {
		// Any exception during verification is itself a terminal error
		// transition, not a crash.
		v.markError(ctx, documentID, err.Error())
	}
	return nil
}

func (v *ReadinessVerifier) verify(ctx context.Context, doc *domain.Document) error {
	if err := v.clock.Sleep(ctx, v.config.SettleDelay); err != nil {
		return err
	}

	samples, err := v.chunkRepo.SampleByDocumentID(ctx, doc.ID, v.config.SampleSize)
	if err != nil {
		return fmt.Errorf("failed to sample chunks: %w", err)
	}
	if len(samples) == 0 {
		return fmt.Errorf("document has no chunks to verify")
	}

	excerpts := make([]string, len(samples))
	for i, chunk := range samples {
		excerpts[i] = excerpt(chunk.Content, v.config.ExcerptLength)
	}
	embeddings, err := v.encoder.Encode(ctx, excerpts)
	if err != nil {
		return fmt.Errorf("failed to embed excerpts: %w", err)
	}
	if len(embeddings) != len(excerpts) {
		return fmt.Errorf("expected %d embeddings, got %d", len(excerpts), len(embeddings))
	}

	threshold := len(samples)
	if threshold > 2 {
		threshold = 2
	}

	passed := false
	for attempt := 0; attempt < v.config.MaxAttempts; attempt++ {
		found, err := v.countSearchable(ctx, doc.ID, embeddings, v.config.ProbeLimit)
		if err != nil {
			return err
		}

		v.logger.Info("verification attempt",
			slog.String("document_id", doc.ID.String()),
			slog.Int("attempt", attempt+1),
			slog.Int("found", found),
			slog.Int("threshold", threshold))

		if found >= threshold {
			passed = true
			break
		}

		if attempt < v.config.MaxAttempts-1 {
			delay := v.config.BaseDelay + time.Duration(attempt)*v.config.DelayIncrement
			if err := v.clock.Sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	if !passed {
		return fmt.Errorf("document indexed but not searchable after %d attempts", v.config.MaxAttempts)
	}

	// Final stricter check: the representative excerpt must rank the
	// document inside the top results, not just the wider probe window.
	found, err := v.countSearchable(ctx, doc.ID, embeddings[:1], v.config.FinalLimit)
	if err != nil {
		return err
	}
	if found == 0 {
		return fmt.Errorf("failed final verification: document not in top %d results", v.config.FinalLimit)
	}

	now := v.clock.Now().UTC()
	if err := v.docRepo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusReady, nil, &now, nil); err != nil {
		return fmt.Errorf("failed to mark document ready: %w", err)
	}

	v.logger.Info("document verified",
		slog.String("document_id", doc.ID.String()),
		slog.String("filename", doc.Filename))
	return nil
}

// countSearchable runs one nearest-neighbor search per embedding and
// counts how many place the document among the top results.
func (v *ReadinessVerifier) countSearchable(ctx context.Context, documentID uuid.UUID, embeddings [][]float32, limit int) (int, error) {
	// Verification must see documents that are not yet ready.
	filter := domain.SearchFilter{
		Statuses: []domain.DocumentStatus{
			domain.DocumentStatusReady,
			domain.DocumentStatusProcessingIndex,
		},
	}

	found := 0
	for _, vec := range embeddings {
		results, err := v.chunkRepo.Search(ctx, vec, filter, limit, limit*5)
		if err != nil {
			return 0, fmt.Errorf("verification search failed: %w", err)
		}
		for _, res := range results {
			if res.DocumentID == documentID {
				found++
				break
			}
		}
	}
	return found, nil
}

func (v *ReadinessVerifier) markError(ctx context.Context, documentID uuid.UUID, message string) {
	if err := v.docRepo.UpdateStatus(ctx, documentID, domain.DocumentStatusError, nil, nil, &message); err != nil {
		v.logger.Error("failed to mark document error",
			slog.String("document_id", documentID.String()),
			slog.String("error", err.Error()))
		return
	}
	v.logger.Warn("document failed verification",
		slog.String("document_id", documentID.String()),
		slog.String("reason", message))
}

// excerpt truncates to at most maxLen bytes without splitting a rune.
func excerpt(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
