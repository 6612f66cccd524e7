package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"support-assistant/internal/domain"
)

// ContextResult is the outcome of history compaction. When Degraded is
// set the summary is nil and RawHistory carries the uncompacted turns
// so the pipeline can still proceed with a larger prompt.
type ContextResult struct {
	Summary    *domain.ContextSummary
	RawHistory string
	Degraded   bool
	Reason     string
}

// ExtractContextUsecase compresses prior dialogue turns into a compact
// structured summary under a token budget. Raw history grows without
// bound, so without compaction prompt size and cost grow linearly with
// conversation length.
type ExtractContextUsecase interface {
	Execute(ctx context.Context, history []domain.Message) ContextResult
}

type extractContextUsecase struct {
	llmClient     domain.LLMClient
	summaryBudget int
	logger        *slog.Logger
}

// NewExtractContextUsecase creates the extractor. summaryBudget is the
// max token allowance for the generated summary.
func NewExtractContextUsecase(llmClient domain.LLMClient, summaryBudget int, logger *slog.Logger) ExtractContextUsecase {
	if summaryBudget <= 0 {
		summaryBudget = 512
	}
	return &extractContextUsecase{
		llmClient:     llmClient,
		summaryBudget: summaryBudget,
		logger:        logger,
	}
}

func (u *extractContextUsecase) Execute(ctx context.Context, history []domain.Message) ContextResult {
	if len(history) == 0 {
		return ContextResult{}
	}

	rendered := renderHistory(history)

	prompt := fmt.Sprintf(`Summarize the conversation below into a JSON object with exactly these fields:
{
  "intent": {"value": "...", "confidence": 0.0},
  "topics": [{"value": "...", "confidence": 0.0}],
  "entities": [{"value": "...", "confidence": 0.0}],
  "preferences": [{"value": "...", "confidence": 0.0}],
  "constraints": [{"value": "...", "confidence": 0.0}],
  "open_questions": [{"value": "...", "confidence": 0.0}],
  "language": "two-letter language tag of the conversation"
}

Rules:
- Use only what is present in the conversation. Never invent facts.
- When turns conflict, the most recent turn wins.
- Every field must be present; use empty arrays or empty strings when nothing applies.
- Confidence scores are between 0 and 1.
- Output only the JSON object, nothing else.

Conversation:
%s`, rendered)

	resp, err := u.llmClient.Generate(ctx, []domain.ChatMessage{
		{Role: "user", Content: prompt},
	}, u.summaryBudget)
	if err != nil {
		return u.degrade(rendered, fmt.Sprintf("summary generation failed: %v", err))
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return u.degrade(rendered, "summary generation returned empty output")
	}

	summary, err := domain.ParseContextSummary(resp.Text)
	if err != nil {
		return u.degrade(rendered, err.Error())
	}

	u.logger.Info("context_extraction_completed",
		slog.Int("history_turns", len(history)),
		slog.String("language", summary.Language))
	return ContextResult{Summary: summary, RawHistory: rendered}
}

func (u *extractContextUsecase) degrade(rendered, reason string) ContextResult {
	u.logger.Warn("context_extraction_degraded", slog.String("reason", reason))
	return ContextResult{RawHistory: rendered, Degraded: true, Reason: reason}
}

func renderHistory(history []domain.Message) string {
	var sb strings.Builder
	for _, msg := range history {
		role := "Human"
		if msg.Role == domain.RoleAssistant {
			role = "Assistant"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
