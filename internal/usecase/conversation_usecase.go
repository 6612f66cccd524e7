package usecase

import (
	"context"
	"fmt"
	"time"

	"support-assistant/internal/domain"

	"github.com/google/uuid"
)

// ConversationUsecase covers conversation and message CRUD. These are
// thin collaborator operations; the only nontrivial piece is cascading
// deletion, which removes messages and the conversation in one
// transaction.
type ConversationUsecase interface {
	Create(ctx context.Context, userID, title string) (*domain.Conversation, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	List(ctx context.Context, userID string, skip, limit int) ([]domain.Conversation, int, error)
	Update(ctx context.Context, id uuid.UUID, title, status *string) (*domain.Conversation, error)
	// Delete cascades to messages and returns how many were removed.
	Delete(ctx context.Context, id uuid.UUID) (int, error)
	Messages(ctx context.Context, id uuid.UUID, skip, limit int, ascending bool) ([]domain.Message, int, error)
}

type conversationUsecase struct {
	convRepo  domain.ConversationRepository
	msgRepo   domain.MessageRepository
	txManager domain.TransactionManager
}

// NewConversationUsecase creates the CRUD usecase.
func NewConversationUsecase(
	convRepo domain.ConversationRepository,
	msgRepo domain.MessageRepository,
	txManager domain.TransactionManager,
) ConversationUsecase {
	return &conversationUsecase{convRepo: convRepo, msgRepo: msgRepo, txManager: txManager}
}

func (u *conversationUsecase) Create(ctx context.Context, userID, title string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.convRepo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (u *conversationUsecase) Get(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	return u.convRepo.GetByID(ctx, id)
}

func (u *conversationUsecase) List(ctx context.Context, userID string, skip, limit int) ([]domain.Conversation, int, error) {
	return u.convRepo.ListByUserID(ctx, userID, skip, limit)
}

func (u *conversationUsecase) Update(ctx context.Context, id uuid.UUID, title, status *string) (*domain.Conversation, error) {
	return u.convRepo.Update(ctx, id, title, status)
}

func (u *conversationUsecase) Delete(ctx context.Context, id uuid.UUID) (int, error) {
	if _, err := u.convRepo.GetByID(ctx, id); err != nil {
		return 0, err
	}
	var deleted int
	err := u.txManager.RunInTx(ctx, func(ctx context.Context) error {
		n, err := u.msgRepo.DeleteByConversationID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		deleted = n
		return u.convRepo.Delete(ctx, id)
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (u *conversationUsecase) Messages(ctx context.Context, id uuid.UUID, skip, limit int, ascending bool) ([]domain.Message, int, error) {
	if _, err := u.convRepo.GetByID(ctx, id); err != nil {
		return nil, 0, err
	}
	return u.msgRepo.ListByConversationID(ctx, id, skip, limit, ascending)
}
