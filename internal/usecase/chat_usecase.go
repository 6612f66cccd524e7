package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"support-assistant/internal/domain"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// historyWindow is how many recent messages feed context extraction.
const historyWindow = 100

var (
	// ErrSearchUnavailable marks a vector search dependency failure,
	// surfaced as 503 by the HTTP layer.
	ErrSearchUnavailable = errors.New("vector search unavailable")
	// ErrGenerationFailed marks an answer-generation failure, surfaced
	// as 500 by the HTTP layer.
	ErrGenerationFailed = errors.New("answer generation failed")
)

// ChatInput drives one chat turn.
type ChatInput struct {
	ConversationID uuid.UUID
	Question       string
}

// ChatOutput is the completed turn returned to the caller.
type ChatOutput struct {
	Answer         string
	Chunks         []string
	ConversationID uuid.UUID
	MessageCount   int
}

// ChatUsecase runs the retrieval-augmented answer pipeline for one
// conversation turn and persists both sides of the exchange.
type ChatUsecase interface {
	Execute(ctx context.Context, input ChatInput) (*ChatOutput, error)
}

type chatUsecase struct {
	convRepo  domain.ConversationRepository
	msgRepo   domain.MessageRepository
	expand    ExpandQueryUsecase
	extract   ExtractContextUsecase
	retrieve  RetrieveContextUsecase
	builder   PromptBuilder
	llmClient domain.LLMClient
	answerMax int
	model     string
	cache     *expirable.LRU[string, ChatOutput]
	logger    *slog.Logger
}

// ChatOption configures optional chat behavior.
type ChatOption func(*chatUsecase)

// WithAnswerCache enables an in-memory TTL cache of completed answers
// keyed by conversation and question.
func WithAnswerCache(size int, ttl time.Duration) ChatOption {
	return func(u *chatUsecase) {
		if size > 0 {
			u.cache = expirable.NewLRU[string, ChatOutput](size, nil, ttl)
		}
	}
}

// NewChatUsecase wires together the components of a chat turn.
func NewChatUsecase(
	convRepo domain.ConversationRepository,
	msgRepo domain.MessageRepository,
	expand ExpandQueryUsecase,
	extract ExtractContextUsecase,
	retrieve RetrieveContextUsecase,
	builder PromptBuilder,
	llmClient domain.LLMClient,
	answerMaxTokens int,
	model string,
	logger *slog.Logger,
	opts ...ChatOption,
) ChatUsecase {
	u := &chatUsecase{
		convRepo:  convRepo,
		msgRepo:   msgRepo,
		expand:    expand,
		extract:   extract,
		retrieve:  retrieve,
		builder:   builder,
		llmClient: llmClient,
		answerMax: answerMaxTokens,
		model:     model,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *chatUsecase) Execute(ctx context.Context, input ChatInput) (*ChatOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	conv, err := u.convRepo.GetByID(ctx, input.ConversationID)
	if err != nil {
		return nil, err
	}

	if u.cache != nil {
		if cached, ok := u.cache.Get(cacheKey(conv.ID, question)); ok {
			u.logger.Info("answer_cache_hit", slog.String("conversation_id", conv.ID.String()))
			return u.replayCachedTurn(ctx, conv, question, cached)
		}
	}

	userMsg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        question,
		Timestamp:      time.Now().UTC(),
		TokenCount:     domain.EstimateTokens(question),
		Cost:           domain.EstimateCost(question, u.model),
	}
	if err := u.msgRepo.Insert(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	// Most recent window, chronological order, excluding the message
	// just written.
	history, _, err := u.msgRepo.ListByConversationID(ctx, conv.ID, 0, historyWindow, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	history = reverseMessages(history)
	if n := len(history); n > 0 && history[n-1].ID == userMsg.ID {
		history = history[:n-1]
	}

	contextResult := u.extract.Execute(ctx, history)
	if contextResult.Degraded {
		u.logger.Warn("chat_context_degraded",
			slog.String("conversation_id", conv.ID.String()),
			slog.String("reason", contextResult.Reason))
	}

	expansion := u.expand.Execute(ctx, question)

	retrieved, err := u.retrieve.Execute(ctx, RetrieveContextInput{Queries: expansion.Queries})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	messages, err := u.builder.Build(PromptInput{
		Query:           question,
		Contexts:        retrieved.Contexts,
		Summary:         contextResult.Summary,
		RawHistory:      contextResult.RawHistory,
		SummaryDegraded: contextResult.Degraded,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	resp, err := u.llmClient.Generate(ctx, messages, u.answerMax)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return nil, fmt.Errorf("%w: empty model response", ErrGenerationFailed)
	}
	answer := strings.TrimSpace(resp.Text)

	chunks := make([]string, 0, len(retrieved.Contexts))
	for _, c := range retrieved.Contexts {
		chunks = append(chunks, c.ChunkText)
	}

	assistantMsg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        answer,
		Sources:        chunks,
		Timestamp:      time.Now().UTC(),
		TokenCount:     domain.EstimateTokens(answer),
		Cost:           domain.EstimateCost(answer, u.model),
	}
	if err := u.msgRepo.Insert(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to store assistant message: %w", err)
	}

	// Two messages persisted this turn: user + assistant.
	if err := u.convRepo.IncrementMessageCount(ctx, conv.ID, 2); err != nil {
		u.logger.Warn("failed to update conversation metadata",
			slog.String("conversation_id", conv.ID.String()),
			slog.String("error", err.Error()))
	}

	output := ChatOutput{
		Answer:         answer,
		Chunks:         chunks,
		ConversationID: conv.ID,
		MessageCount:   conv.MessageCount + 2,
	}
	if u.cache != nil {
		u.cache.Add(cacheKey(conv.ID, question), output)
	}

	u.logger.Info("chat_turn_completed",
		slog.String("conversation_id", conv.ID.String()),
		slog.Int("context_count", len(chunks)),
		slog.Bool("expansion_degraded", expansion.Degraded))

	return &output, nil
}

// replayCachedTurn completes a turn from a cached answer. The pipeline
// stages are skipped, but the exchange is still appended to the message
// log so a repeated question stays visible in history and the message
// count keeps advancing by two per turn.
func (u *chatUsecase) replayCachedTurn(ctx context.Context, conv *domain.Conversation, question string, cached ChatOutput) (*ChatOutput, error) {
	now := time.Now().UTC()
	userMsg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        question,
		Timestamp:      now,
		TokenCount:     domain.EstimateTokens(question),
		Cost:           domain.EstimateCost(question, u.model),
	}
	if err := u.msgRepo.Insert(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	assistantMsg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        cached.Answer,
		Sources:        cached.Chunks,
		Timestamp:      now,
		TokenCount:     domain.EstimateTokens(cached.Answer),
		Cost:           domain.EstimateCost(cached.Answer, u.model),
	}
	if err := u.msgRepo.Insert(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("failed to store assistant message: %w", err)
	}

	if err := u.convRepo.IncrementMessageCount(ctx, conv.ID, 2); err != nil {
		u.logger.Warn("failed to update conversation metadata",
			slog.String("conversation_id", conv.ID.String()),
			slog.String("error", err.Error()))
	}

	output := cached
	output.MessageCount = conv.MessageCount + 2
	return &output, nil
}

func cacheKey(conversationID uuid.UUID, question string) string {
	return conversationID.String() + "|" + question
}

func reverseMessages(msgs []domain.Message) []domain.Message {
	out := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}
