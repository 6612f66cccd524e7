package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation groups messages for one user. MessageCount is
// monotonically non-decreasing and advances by exactly the number of
// messages persisted per turn (two for a completed chat turn).
type Conversation struct {
	ID           uuid.UUID
	UserID       string
	Title        string
	Status       string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is one turn entry. Append-only, ordered by timestamp, never
// mutated after creation.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           string
	Content        string
	Sources        []string
	Timestamp      time.Time
	TokenCount     int
	Cost           float64
}

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository manages conversation metadata.
type ConversationRepository interface {
	Create(ctx context.Context, conv *Conversation) error
	// GetByID returns ErrConversationNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error)
	ListByUserID(ctx context.Context, userID string, skip, limit int) ([]Conversation, int, error)
	// Update applies non-nil fields and bumps updated_at. Returns
	// ErrConversationNotFound when absent.
	Update(ctx context.Context, id uuid.UUID, title, status *string) (*Conversation, error)
	// IncrementMessageCount adds delta and bumps updated_at.
	// Last-write-wins on metadata is acceptable per the concurrency model.
	IncrementMessageCount(ctx context.Context, id uuid.UUID, delta int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MessageRepository manages the append-only message log.
type MessageRepository interface {
	Insert(ctx context.Context, msg *Message) error
	// ListByConversationID pages messages ordered by timestamp.
	// ascending=false returns most recent first.
	ListByConversationID(ctx context.Context, conversationID uuid.UUID, skip, limit int, ascending bool) ([]Message, int, error)
	DeleteByConversationID(ctx context.Context, conversationID uuid.UUID) (int, error)
}

// TransactionManager runs a function inside one database transaction.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
