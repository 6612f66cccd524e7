package domain

import "context"

// ChatMessage is one entry in a chat-completion request.
type ChatMessage struct {
	Role    string
	Content string
}

// LLMClient defines the capability to send prompts to a language model
// and receive textual responses.
type LLMClient interface {
	Generate(ctx context.Context, messages []ChatMessage, maxTokens int) (*LLMResponse, error)
	Version() string
}

// LLMResponse carries the model output and whether generation finished.
type LLMResponse struct {
	Text string
	Done bool
}
