package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"support-assistant/internal/domain"
	"support-assistant/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockLLMClient struct {
	mock.Mock
}

func (m *mockLLMClient) Generate(ctx context.Context, messages []domain.ChatMessage, maxTokens int) (*domain.LLMResponse, error) {
	args := m.Called(ctx, messages, maxTokens)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LLMResponse), args.Error(1)
}

func (m *mockLLMClient) Version() string {
	return "mock"
}

type mockVectorEncoder struct {
	mock.Mock
}

func (m *mockVectorEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *mockVectorEncoder) Version() string {
	return "mock"
}

type mockChunkRepo struct {
	mock.Mock
}

func (m *mockChunkRepo) BulkInsert(ctx context.Context, chunks []domain.Chunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *mockChunkRepo) Search(ctx context.Context, vec []float32, filter domain.SearchFilter, limit, numCandidates int) ([]domain.SearchResult, error) {
	args := m.Called(ctx, vec, filter, limit, numCandidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

func (m *mockChunkRepo) SampleByDocumentID(ctx context.Context, documentID uuid.UUID, limit int) ([]domain.Chunk, error) {
	args := m.Called(ctx, documentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

func (m *mockChunkRepo) CountByDocumentID(ctx context.Context, documentID uuid.UUID) (int, error) {
	args := m.Called(ctx, documentID)
	return args.Int(0), args.Error(1)
}

func (m *mockChunkRepo) DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

type mockDocumentRepo struct {
	mock.Mock
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *mockDocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *mockDocumentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DocumentStatus, chunkCount *int, processedAt *time.Time, errorMessage *string) error {
	args := m.Called(ctx, id, status, chunkCount, processedAt, errorMessage)
	return args.Error(0)
}

func (m *mockDocumentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockConversationRepo struct {
	mock.Mock
}

func (m *mockConversationRepo) Create(ctx context.Context, conv *domain.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

func (m *mockConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *mockConversationRepo) ListByUserID(ctx context.Context, userID string, skip, limit int) ([]domain.Conversation, int, error) {
	args := m.Called(ctx, userID, skip, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Conversation), args.Int(1), args.Error(2)
}

func (m *mockConversationRepo) Update(ctx context.Context, id uuid.UUID, title, status *string) (*domain.Conversation, error) {
	args := m.Called(ctx, id, title, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *mockConversationRepo) IncrementMessageCount(ctx context.Context, id uuid.UUID, delta int) error {
	args := m.Called(ctx, id, delta)
	return args.Error(0)
}

func (m *mockConversationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) Insert(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockMessageRepo) ListByConversationID(ctx context.Context, conversationID uuid.UUID, skip, limit int, ascending bool) ([]domain.Message, int, error) {
	args := m.Called(ctx, conversationID, skip, limit, ascending)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Message), args.Int(1), args.Error(2)
}

func (m *mockMessageRepo) DeleteByConversationID(ctx context.Context, conversationID uuid.UUID) (int, error) {
	args := m.Called(ctx, conversationID)
	return args.Int(0), args.Error(1)
}

// mockTxManager runs the callback directly; transaction semantics are
// the repository's concern, not the usecase's.
type mockTxManager struct {
	mock.Mock
}

func (m *mockTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

type mockDocumentLoader struct {
	mock.Mock
}

func (m *mockDocumentLoader) Load(ctx context.Context, filename string, data []byte) ([]string, error) {
	args := m.Called(ctx, filename, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) Schedule(documentID uuid.UUID) {
	m.Called(documentID)
}

type mockExpandUsecase struct {
	mock.Mock
}

func (m *mockExpandUsecase) Execute(ctx context.Context, query string) usecase.Expansion {
	args := m.Called(ctx, query)
	return args.Get(0).(usecase.Expansion)
}

type mockExtractUsecase struct {
	mock.Mock
}

func (m *mockExtractUsecase) Execute(ctx context.Context, history []domain.Message) usecase.ContextResult {
	args := m.Called(ctx, history)
	return args.Get(0).(usecase.ContextResult)
}

type mockRetrieveUsecase struct {
	mock.Mock
}

func (m *mockRetrieveUsecase) Execute(ctx context.Context, input usecase.RetrieveContextInput) (*usecase.RetrieveContextOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.RetrieveContextOutput), args.Error(1)
}
