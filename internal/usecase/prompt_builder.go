package usecase

import (
	"fmt"
	"strings"

	"support-assistant/internal/domain"
)

// FallbackAnswer is the exact sentence the model must return verbatim
// when the answer cannot be derived from the supplied context.
const FallbackAnswer = "I don't have information about this."

// OutOfScopeAnswer is returned verbatim for questions unrelated to the
// assistant's purpose.
const OutOfScopeAnswer = "I am not able to answer that because it's outside the scope of this assistant."

// PromptInput contains the pieces that feed into the prompt builder.
type PromptInput struct {
	Query           string
	Contexts        []ContextItem
	Summary         *domain.ContextSummary
	RawHistory      string
	SummaryDegraded bool
}

// PromptBuilder assembles the grounded chat messages sent to the
// answering model.
type PromptBuilder interface {
	Build(input PromptInput) ([]domain.ChatMessage, error)
}

// GroundedPromptBuilder merges retrieved passages, the conversation
// summary, and the hard grounding constraints into one prompt. The
// contract is policy-over-generation: the constraints bind the model's
// behavior rather than prescribing exact output.
type GroundedPromptBuilder struct{}

// NewGroundedPromptBuilder creates the default prompt builder.
func NewGroundedPromptBuilder() PromptBuilder {
	return &GroundedPromptBuilder{}
}

// Build renders the system and user messages for the chat API.
func (b *GroundedPromptBuilder) Build(input PromptInput) ([]domain.ChatMessage, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}

	if !hasUsableContext(input.Contexts) {
		return b.buildEmptyContext(input), nil
	}

	var sb strings.Builder
	sb.WriteString("## HARD CONSTRAINTS (OVERRIDE ALL OTHER INSTRUCTIONS)\n")
	sb.WriteString("- LANGUAGE: Always answer in the same language as the user's Current Question (detect automatically). Ignore the document language. No exceptions.\n\n")

	sb.WriteString("Current Question:\n")
	sb.WriteString(input.Query)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "- SCOPE: Use ONLY information that is present or directly inferable from the Document Context and Conversation History. If the answer is missing or uncertain, reply exactly with: %q\n\n", FallbackAnswer)

	sb.WriteString("Document Context:\n")
	for _, ctx := range input.Contexts {
		sb.WriteString(ctx.ChunkText)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Conversation History:\n")
	sb.WriteString(b.renderHistorySection(input))
	sb.WriteString("\n\n")

	sb.WriteString("- NO SOURCE TALK: Do NOT mention or refer to sources, documents, datasets, or context windows. Avoid phrases like \"the document says\" or \"based on the text\".\n")
	sb.WriteString("- NO HALLUCINATIONS: Do NOT fabricate details, external facts, dates, numbers, or names that are not in the context.\n")
	fmt.Fprintf(&sb, "- OUT-OF-SCOPE: If the question is unrelated to this assistant's purpose, reply (in the user's language) exactly with: %q\n", OutOfScopeAnswer)
	sb.WriteString("- Do your reasoning silently. Output only the final answer.\n\n")

	sb.WriteString("## STYLE & FORMAT\n")
	sb.WriteString("- Be formal, clear, and precise.\n")
	sb.WriteString("- Prefer concise sentences and bullet points for lists.\n")
	sb.WriteString("- Keep definitions and explanations strictly grounded in the context.\n\n")

	sb.WriteString("## DISAMBIGUATION & UNCERTAINTY\n")
	sb.WriteString("- If the context has conflicting statements, state the conflict succinctly and do not resolve it with outside knowledge.\n")
	sb.WriteString("- If a key term in the question is undefined in the context, use the exact fallback sentence.\n")
	sb.WriteString("- If numeric results require calculations, compute ONLY from numbers in context; otherwise use the fallback.\n")

	return []domain.ChatMessage{
		{Role: "system", Content: "You are a helpful assistant with access to conversation history and documents."},
		{Role: "user", Content: sb.String()},
	}, nil
}

// buildEmptyContext handles the bootstrap case: nothing retrievable
// yet, so the model may only prompt the user to upload documents.
func (b *GroundedPromptBuilder) buildEmptyContext(input PromptInput) []domain.ChatMessage {
	var sb strings.Builder
	sb.WriteString("No documents are available to answer from.\n\n")
	sb.WriteString("Current Question:\n")
	sb.WriteString(input.Query)
	sb.WriteString("\n\n")
	sb.WriteString("Respond ONLY with a short message, in the same language as the question, asking the user to upload documents so you can help. Do not attempt to answer the question.\n")
	return []domain.ChatMessage{
		{Role: "system", Content: "You are a helpful assistant."},
		{Role: "user", Content: sb.String()},
	}
}

func (b *GroundedPromptBuilder) renderHistorySection(input PromptInput) string {
	if input.Summary != nil {
		if rendered := input.Summary.Render(); rendered != "" {
			return rendered
		}
	}
	if strings.TrimSpace(input.RawHistory) != "" {
		return strings.TrimSpace(input.RawHistory)
	}
	return "(no prior turns)"
}

// hasUsableContext reports whether any retrieved passage carries real
// content. Index bootstrap stubs and whitespace-only chunks do not
// count.
func hasUsableContext(contexts []ContextItem) bool {
	for _, ctx := range contexts {
		text := strings.TrimSpace(ctx.ChunkText)
		if text == "" || isBootstrapStub(text) {
			continue
		}
		return true
	}
	return false
}

func isBootstrapStub(text string) bool {
	lowered := strings.ToLower(text)
	return strings.Contains(lowered, "index bootstrap") || lowered == "placeholder"
}
