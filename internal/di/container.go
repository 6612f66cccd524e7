// Package di wires the application graph from config and the database
// pool.
package di

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"support-assistant/internal/adapter/chat_http"
	"support-assistant/internal/adapter/loader"
	"support-assistant/internal/adapter/openaiapi"
	"support-assistant/internal/adapter/repository"
	"support-assistant/internal/domain"
	"support-assistant/internal/infra/config"
	"support-assistant/internal/infra/httpclient"
	"support-assistant/internal/usecase"
	"support-assistant/internal/verifier"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Repositories
	DocRepo   domain.DocumentRepository
	ChunkRepo domain.ChunkRepository
	ConvRepo  domain.ConversationRepository
	MsgRepo   domain.MessageRepository

	// Usecases
	ChatUsecase   usecase.ChatUsecase
	ConvUsecase   usecase.ConversationUsecase
	IngestUsecase usecase.IngestDocumentUsecase

	// Background verification
	Verifier *verifier.ReadinessVerifier

	// HTTP surface
	Handler *chat_http.Handler
}

// NewApplicationComponents wires all dependencies.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) *ApplicationComponents {
	// Repositories
	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	msgRepo := repository.NewMessageRepository(pool)
	txManager := repository.NewPostgresTransactionManager(pool)

	// Shared HTTP clients with connection pooling
	embedderHTTP := httpclient.NewPooledClient(60 * time.Second)
	generatorHTTP := httpclient.NewPooledClient(120 * time.Second)

	// Model clients
	embedder := openaiapi.NewEmbedder(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel, embedderHTTP, cfg.EmbeddingRPS)
	generator := openaiapi.NewGenerator(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.ChatModel, generatorHTTP, 0)

	// Ingestion pipeline
	splitter := domain.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	fileLoader := loader.NewFileLoader(splitter)

	verifierConfig := verifier.DefaultConfig()
	verifierConfig.SettleDelay = cfg.VerifierSettleDelay
	verifierConfig.MaxAttempts = cfg.VerifierMaxAttempts
	verifierConfig.BaseDelay = cfg.VerifierBaseDelay
	verifierConfig.DelayIncrement = cfg.VerifierDelayIncrement
	readinessVerifier := verifier.New(docRepo, chunkRepo, embedder, domain.NewClock(), verifierConfig, log)

	ingestUsecase := usecase.NewIngestDocumentUsecase(
		docRepo, chunkRepo, txManager, fileLoader, embedder,
		readinessVerifier, cfg.AllowedExtensions, log,
	)

	// Chat pipeline
	expandUsecase := usecase.NewExpandQueryUsecase(generator, log)
	extractUsecase := usecase.NewExtractContextUsecase(generator, cfg.ExtractMaxTokens, log)
	retrieveUsecase := usecase.NewRetrieveContextUsecase(chunkRepo, embedder, usecase.RetrievalConfig{
		Limit:         cfg.SearchLimit,
		NumCandidates: cfg.SearchNumCandidates,
	}, log)
	promptBuilder := usecase.NewGroundedPromptBuilder()

	chatUsecase := usecase.NewChatUsecase(
		convRepo, msgRepo,
		expandUsecase, extractUsecase, retrieveUsecase, promptBuilder,
		generator, cfg.AnswerMaxTokens, cfg.ChatModel, log,
		usecase.WithAnswerCache(cfg.AnswerCacheSize, cfg.AnswerCacheTTL),
	)
	convUsecase := usecase.NewConversationUsecase(convRepo, msgRepo, txManager)

	handler := chat_http.NewHandler(chatUsecase, convUsecase, ingestUsecase, docRepo, pool)

	return &ApplicationComponents{
		DocRepo:       docRepo,
		ChunkRepo:     chunkRepo,
		ConvRepo:      convRepo,
		MsgRepo:       msgRepo,
		ChatUsecase:   chatUsecase,
		ConvUsecase:   convUsecase,
		IngestUsecase: ingestUsecase,
		Verifier:      readinessVerifier,
		Handler:       handler,
	}
}
