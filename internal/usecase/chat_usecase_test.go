package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"support-assistant/internal/domain"
	"support-assistant/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	convRepo *mockConversationRepo
	msgRepo  *mockMessageRepo
	expand   *mockExpandUsecase
	extract  *mockExtractUsecase
	retrieve *mockRetrieveUsecase
	llm      *mockLLMClient
}

func newChatFixture() *chatFixture {
	return &chatFixture{
		convRepo: new(mockConversationRepo),
		msgRepo:  new(mockMessageRepo),
		expand:   new(mockExpandUsecase),
		extract:  new(mockExtractUsecase),
		retrieve: new(mockRetrieveUsecase),
		llm:      new(mockLLMClient),
	}
}

func (f *chatFixture) build(opts ...usecase.ChatOption) usecase.ChatUsecase {
	return usecase.NewChatUsecase(
		f.convRepo, f.msgRepo,
		f.expand, f.extract, f.retrieve,
		usecase.NewGroundedPromptBuilder(),
		f.llm, 768, "gpt-4o-mini", discardLogger(),
		opts...,
	)
}

func (f *chatFixture) stubHappyPath(conv *domain.Conversation, answer string) {
	f.convRepo.On("GetByID", mock.Anything, conv.ID).Return(conv, nil)
	f.msgRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.msgRepo.On("ListByConversationID", mock.Anything, conv.ID, 0, 100, false).
		Return([]domain.Message{}, 0, nil)
	f.extract.On("Execute", mock.Anything, mock.Anything).Return(usecase.ContextResult{})
	f.expand.On("Execute", mock.Anything, mock.Anything).
		Return(usecase.Expansion{Queries: []string{"question"}})
	f.retrieve.On("Execute", mock.Anything, mock.Anything).Return(&usecase.RetrieveContextOutput{
		Contexts: []usecase.ContextItem{{ChunkID: uuid.New(), ChunkText: "relevant passage"}},
	}, nil)
	f.llm.On("Generate", mock.Anything, mock.Anything, 768).
		Return(&domain.LLMResponse{Text: answer, Done: true}, nil)
	f.convRepo.On("IncrementMessageCount", mock.Anything, conv.ID, 2).Return(nil)
}

func TestChat_Success(t *testing.T) {
	f := newChatFixture()
	conv := &domain.Conversation{ID: uuid.New(), UserID: "u1", MessageCount: 4}
	f.stubHappyPath(conv, "Here is the answer.")

	uc := f.build()
	output, err := uc.Execute(context.Background(), usecase.ChatInput{
		ConversationID: conv.ID,
		Question:       "What does the manual say?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Here is the answer.", output.Answer)
	assert.Equal(t, conv.ID, output.ConversationID)
	assert.Equal(t, []string{"relevant passage"}, output.Chunks)
	// Both sides of the turn advance the count.
	assert.Equal(t, 6, output.MessageCount)
	f.msgRepo.AssertNumberOfCalls(t, "Insert", 2)
	f.convRepo.AssertCalled(t, "IncrementMessageCount", mock.Anything, conv.ID, 2)
}

func TestChat_PersistsBothSidesOfTheTurn(t *testing.T) {
	f := newChatFixture()
	conv := &domain.Conversation{ID: uuid.New()}
	f.stubHappyPath(conv, "answer text")

	var inserted []*domain.Message
	f.msgRepo.ExpectedCalls = nil
	f.msgRepo.On("Insert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		inserted = append(inserted, args.Get(1).(*domain.Message))
	}).Return(nil)
	f.msgRepo.On("ListByConversationID", mock.Anything, conv.ID, 0, 100, false).
		Return([]domain.Message{}, 0, nil)

	uc := f.build()
	_, err := uc.Execute(context.Background(), usecase.ChatInput{ConversationID: conv.ID, Question: "question?"})
	require.NoError(t, err)

	require.Len(t, inserted, 2)
	assert.Equal(t, domain.RoleUser, inserted[0].Role)
	assert.Equal(t, "question?", inserted[0].Content)
	assert.Equal(t, domain.RoleAssistant, inserted[1].Role)
	assert.Equal(t, "answer text", inserted[1].Content)
	assert.Equal(t, []string{"relevant passage"}, inserted[1].Sources)
	assert.Positive(t, inserted[1].TokenCount)
}

func TestChat_ConversationNotFound(t *testing.T) {
	f := newChatFixture()
	id := uuid.New()
	f.convRepo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrConversationNotFound)

	uc := f.build()
	_, err := uc.Execute(context.Background(), usecase.ChatInput{ConversationID: id, Question: "hi"})
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	f.msgRepo.AssertNotCalled(t, "Insert")
}

func TestChat_SearchFailureIsTyped(t *testing.T) {
	f := newChatFixture()
	conv := &domain.Conversation{ID: uuid.New()}
	f.convRepo.On("GetByID", mock.Anything, conv.ID).Return(conv, nil)
	f.msgRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.msgRepo.On("ListByConversationID", mock.Anything, conv.ID, 0, 100, false).
		Return([]domain.Message{}, 0, nil)
	f.extract.On("Execute", mock.Anything, mock.Anything).Return(usecase.ContextResult{})
	f.expand.On("Execute", mock.Anything, mock.Anything).Return(usecase.Expansion{Queries: []string{"hi"}})
	f.retrieve.On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("pgvector down"))

	uc := f.build()
	_, err := uc.Execute(context.Background(), usecase.ChatInput{ConversationID: conv.ID, Question: "hi"})
	assert.ErrorIs(t, err, usecase.ErrSearchUnavailable)
}

func TestChat_GenerationFailureIsTyped(t *testing.T) {
	f := newChatFixture()
	conv := &domain.Conversation{ID: uuid.New()}
	f.convRepo.On("GetByID", mock.Anything, conv.ID).Return(conv, nil)
	f.msgRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.msgRepo.On("ListByConversationID", mock.Anything, conv.ID, 0, 100, false).
		Return([]domain.Message{}, 0, nil)
	f.extract.On("Execute", mock.Anything, mock.Anything).Return(usecase.ContextResult{})
	f.expand.On("Execute", mock.Anything, mock.Anything).Return(usecase.Expansion{Queries: []string{"hi"}})
	f.retrieve.On("Execute", mock.Anything, mock.Anything).Return(&usecase.RetrieveContextOutput{
		Contexts: []usecase.ContextItem{{ChunkText: "passage"}},
	}, nil)
	f.llm.On("Generate", mock.Anything, mock.Anything, 768).Return(nil, errors.New("model overloaded"))

	uc := f.build()
	_, err := uc.Execute(context.Background(), usecase.ChatInput{ConversationID: conv.ID, Question: "hi"})
	assert.ErrorIs(t, err, usecase.ErrGenerationFailed)
}

func TestChat_MetadataFailureDoesNotFailTheTurn(t *testing.T) {
	f := newChatFixture()
	conv := &domain.Conversation{ID: uuid.New()}
	f.stubHappyPath(conv, "answer")

	f.convRepo.ExpectedCalls = nil
	f.convRepo.On("GetByID", mock.Anything, conv.ID).Return(conv, nil)
	f.convRepo.On("IncrementMessageCount", mock.Anything, conv.ID, 2).
		Return(errors.New("deadlock"))

	uc := f.build()
	output, err := uc.Execute(context.Background(), usecase.ChatInput{ConversationID: conv.ID, Question: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "answer", output.Answer)
}

func TestChat_AnswerCacheShortCircuitsRepeatedQuestions(t *testing.T) {
	f := newChatFixture()
	conv := &domain.Conversation{ID: uuid.New()}
	f.stubHappyPath(conv, "cached answer")

	uc := f.build(usecase.WithAnswerCache(16, time.Minute))
	input := usecase.ChatInput{ConversationID: conv.ID, Question: "same question"}

	first, err := uc.Execute(context.Background(), input)
	require.NoError(t, err)
	second, err := uc.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.Answer, second.Answer)
	// Expansion, retrieval and generation ran once; the second answer
	// came from cache.
	f.llm.AssertNumberOfCalls(t, "Generate", 1)
	f.retrieve.AssertNumberOfCalls(t, "Execute", 1)
}

func TestChat_CachedTurnStillAppendsToHistory(t *testing.T) {
	f := newChatFixture()
	conv := &domain.Conversation{ID: uuid.New()}
	f.stubHappyPath(conv, "cached answer")

	var inserted []*domain.Message
	f.msgRepo.ExpectedCalls = nil
	f.msgRepo.On("Insert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		inserted = append(inserted, args.Get(1).(*domain.Message))
	}).Return(nil)
	f.msgRepo.On("ListByConversationID", mock.Anything, conv.ID, 0, 100, false).
		Return([]domain.Message{}, 0, nil)

	uc := f.build(usecase.WithAnswerCache(16, time.Minute))
	input := usecase.ChatInput{ConversationID: conv.ID, Question: "same question"}

	_, err := uc.Execute(context.Background(), input)
	require.NoError(t, err)
	_, err = uc.Execute(context.Background(), input)
	require.NoError(t, err)

	// Both turns persist a user and an assistant message even though the
	// second answer was served from cache.
	require.Len(t, inserted, 4)
	assert.Equal(t, domain.RoleUser, inserted[2].Role)
	assert.Equal(t, "same question", inserted[2].Content)
	assert.Equal(t, domain.RoleAssistant, inserted[3].Role)
	assert.Equal(t, "cached answer", inserted[3].Content)
	assert.Equal(t, []string{"relevant passage"}, inserted[3].Sources)
	f.convRepo.AssertNumberOfCalls(t, "IncrementMessageCount", 2)
}

func TestChat_RequiresQuestion(t *testing.T) {
	f := newChatFixture()
	uc := f.build()
	_, err := uc.Execute(context.Background(), usecase.ChatInput{ConversationID: uuid.New(), Question: "  "})
	assert.Error(t, err)
}
