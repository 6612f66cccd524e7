package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"support-assistant/internal/domain"
)

// maxExpandedQueries caps expansion output including the original query.
const maxExpandedQueries = 6

// Expansion is the result of query expansion. Degraded marks the
// best-effort fallback path: Queries then holds exactly the original
// query and Reason records why expansion was skipped.
type Expansion struct {
	Queries  []string
	Degraded bool
	Reason   string
}

// ExpandQueryUsecase widens retrieval recall by asking a language model
// for related single-topic questions. Expansion is enrichment, not a
// correctness-critical step: it never returns an error.
type ExpandQueryUsecase interface {
	Execute(ctx context.Context, query string) Expansion
}

type expandQueryUsecase struct {
	llmClient domain.LLMClient
	logger    *slog.Logger
}

// NewExpandQueryUsecase creates the default expander.
func NewExpandQueryUsecase(llmClient domain.LLMClient, logger *slog.Logger) ExpandQueryUsecase {
	return &expandQueryUsecase{llmClient: llmClient, logger: logger}
}

func (u *expandQueryUsecase) Execute(ctx context.Context, query string) Expansion {
	prompt := fmt.Sprintf(`You are a knowledgeable assistant.
For the given question, propose up to five related questions to assist in finding the information the user needs.

Original question: %s

Provide concise, single-topic questions (without compounding sentences) that cover various aspects of the topic.
Ensure each question is complete and directly related to the original inquiry.
List each question on a separate line without numbering.
Generate the questions in the language of the original question.`, query)

	resp, err := u.llmClient.Generate(ctx, []domain.ChatMessage{
		{Role: "system", Content: "You are a helpful assistant."},
		{Role: "user", Content: prompt},
	}, 256)
	if err != nil {
		return u.degrade(query, fmt.Sprintf("expansion generation failed: %v", err))
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return u.degrade(query, "expansion returned empty output")
	}

	queries := []string{query}
	for _, line := range strings.Split(resp.Text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == query {
			continue
		}
		queries = append(queries, trimmed)
		if len(queries) == maxExpandedQueries {
			break
		}
	}

	u.logger.Info("query_expansion_completed",
		slog.Int("variant_count", len(queries)))
	return Expansion{Queries: queries}
}

func (u *expandQueryUsecase) degrade(query, reason string) Expansion {
	u.logger.Warn("query_expansion_degraded", slog.String("reason", reason))
	return Expansion{Queries: []string{query}, Degraded: true, Reason: reason}
}
