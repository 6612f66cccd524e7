// Package chat_http exposes the REST surface of the assistant.
package chat_http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"support-assistant/internal/domain"
	"support-assistant/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxUploadBytes   = 50 << 20
)

type Handler struct {
	chatUsecase   usecase.ChatUsecase
	convUsecase   usecase.ConversationUsecase
	ingestUsecase usecase.IngestDocumentUsecase
	docRepo       domain.DocumentRepository
	pinger        Pinger
}

// Pinger reports storage liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewHandler(
	chatUsecase usecase.ChatUsecase,
	convUsecase usecase.ConversationUsecase,
	ingestUsecase usecase.IngestDocumentUsecase,
	docRepo domain.DocumentRepository,
	pinger Pinger,
) *Handler {
	return &Handler{
		chatUsecase:   chatUsecase,
		convUsecase:   convUsecase,
		ingestUsecase: ingestUsecase,
		docRepo:       docRepo,
		pinger:        pinger,
	}
}

// Register attaches all routes to the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/readyz", h.Ready)

	e.POST("/chat", h.ChatNew)
	e.POST("/chat/:conversation_id", h.Chat)

	e.POST("/conversations", h.CreateConversation)
	e.GET("/conversations", h.ListConversations)
	e.GET("/conversations/:conversation_id", h.GetConversation)
	e.PUT("/conversations/:conversation_id", h.UpdateConversation)
	e.DELETE("/conversations/:conversation_id", h.DeleteConversation)
	e.GET("/conversations/:conversation_id/messages", h.ListMessages)

	e.POST("/upload-document", h.UploadDocument)
	e.GET("/documents/:document_id/status", h.DocumentStatus)
	e.DELETE("/documents/:document_id", h.DeleteDocument)
}

func (h *Handler) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Ready(ctx echo.Context) error {
	if h.pinger != nil {
		if err := h.pinger.Ping(ctx.Request().Context()); err != nil {
			return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

type chatRequest struct {
	Question string `json:"question"`
	UserID   string `json:"user_id"`
}

type chatResponse struct {
	Answer         string   `json:"answer"`
	Chunks         []string `json:"chunks"`
	ConversationID string   `json:"conversation_id"`
	MessageCount   int      `json:"message_count"`
}

// Chat runs one turn against an existing conversation.
// (POST /chat/:conversation_id)
func (h *Handler) Chat(ctx echo.Context) error {
	conversationID, err := uuid.Parse(ctx.Param("conversation_id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
	}

	var req chatRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if strings.TrimSpace(req.Question) == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "question is required"})
	}

	return h.runChat(ctx, conversationID, req.Question)
}

// ChatNew creates a conversation and runs the first turn in one call.
// (POST /chat)
func (h *Handler) ChatNew(ctx echo.Context) error {
	var req chatRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if strings.TrimSpace(req.Question) == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "question is required"})
	}

	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}
	conv, err := h.convUsecase.Create(ctx.Request().Context(), userID, titleFromQuestion(req.Question))
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create conversation"})
	}

	return h.runChat(ctx, conv.ID, req.Question)
}

func (h *Handler) runChat(ctx echo.Context, conversationID uuid.UUID, question string) error {
	output, err := h.chatUsecase.Execute(ctx.Request().Context(), usecase.ChatInput{
		ConversationID: conversationID,
		Question:       question,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConversationNotFound):
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
		case errors.Is(err, usecase.ErrSearchUnavailable):
			return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"error": "search is temporarily unavailable"})
		default:
			return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to generate answer"})
		}
	}

	chunks := output.Chunks
	if chunks == nil {
		chunks = []string{}
	}
	return ctx.JSON(http.StatusOK, chatResponse{
		Answer:         output.Answer,
		Chunks:         chunks,
		ConversationID: output.ConversationID.String(),
		MessageCount:   output.MessageCount,
	})
}

type conversationResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toConversationResponse(conv *domain.Conversation) conversationResponse {
	return conversationResponse{
		ID:           conv.ID.String(),
		UserID:       conv.UserID,
		Title:        conv.Title,
		Status:       conv.Status,
		MessageCount: conv.MessageCount,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
	}
}

type createConversationRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

// (POST /conversations)
func (h *Handler) CreateConversation(ctx echo.Context) error {
	var req createConversationRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if strings.TrimSpace(req.UserID) == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}
	if req.Title == "" {
		req.Title = "New conversation"
	}

	conv, err := h.convUsecase.Create(ctx.Request().Context(), req.UserID, req.Title)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create conversation"})
	}
	return ctx.JSON(http.StatusCreated, toConversationResponse(conv))
}

// (GET /conversations?user_id=&skip=&limit=)
func (h *Handler) ListConversations(ctx echo.Context) error {
	userID := ctx.QueryParam("user_id")
	if userID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}
	skip, limit := pagination(ctx)

	convs, total, err := h.convUsecase.List(ctx.Request().Context(), userID, skip, limit)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list conversations"})
	}

	items := make([]conversationResponse, 0, len(convs))
	for i := range convs {
		items = append(items, toConversationResponse(&convs[i]))
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"conversations": items,
		"total":         total,
		"skip":          skip,
		"limit":         limit,
	})
}

// (GET /conversations/:conversation_id)
func (h *Handler) GetConversation(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("conversation_id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
	}
	conv, err := h.convUsecase.Get(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load conversation"})
	}
	return ctx.JSON(http.StatusOK, toConversationResponse(conv))
}

type updateConversationRequest struct {
	Title  *string `json:"title"`
	Status *string `json:"status"`
}

// (PUT /conversations/:conversation_id)
func (h *Handler) UpdateConversation(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("conversation_id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
	}
	var req updateConversationRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Title == nil && req.Status == nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "nothing to update"})
	}

	conv, err := h.convUsecase.Update(ctx.Request().Context(), id, req.Title, req.Status)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update conversation"})
	}
	return ctx.JSON(http.StatusOK, toConversationResponse(conv))
}

// (DELETE /conversations/:conversation_id)
func (h *Handler) DeleteConversation(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("conversation_id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
	}
	deleted, err := h.convUsecase.Delete(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete conversation"})
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"deleted":          true,
		"messages_deleted": deleted,
	})
}

type messageResponse struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Sources    []string  `json:"sources"`
	Timestamp  time.Time `json:"timestamp"`
	TokenCount int       `json:"token_count"`
	Cost       float64   `json:"cost"`
}

// (GET /conversations/:conversation_id/messages?skip=&limit=&order=)
func (h *Handler) ListMessages(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("conversation_id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
	}
	skip, limit := pagination(ctx)
	ascending := ctx.QueryParam("order") != "desc"

	msgs, total, err := h.convUsecase.Messages(ctx.Request().Context(), id, skip, limit, ascending)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list messages"})
	}

	items := make([]messageResponse, 0, len(msgs))
	for _, msg := range msgs {
		sources := msg.Sources
		if sources == nil {
			sources = []string{}
		}
		items = append(items, messageResponse{
			ID:         msg.ID.String(),
			Role:       msg.Role,
			Content:    msg.Content,
			Sources:    sources,
			Timestamp:  msg.Timestamp,
			TokenCount: msg.TokenCount,
			Cost:       msg.Cost,
		})
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"messages": items,
		"total":    total,
		"skip":     skip,
		"limit":    limit,
	})
}

type uploadResponse struct {
	DocumentID    string `json:"document_id"`
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
	Status        string `json:"status"`
}

// UploadDocument accepts one multipart file and kicks off ingestion.
// The response status is provisional; readiness is confirmed
// asynchronously and observed via the status endpoint.
// (POST /upload-document)
func (h *Handler) UploadDocument(ctx echo.Context) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "file is required"})
	}
	if fileHeader.Filename == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "filename is required"})
	}
	if fileHeader.Size > maxUploadBytes {
		return ctx.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "failed to open uploaded file"})
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read uploaded file"})
	}
	if len(data) > maxUploadBytes {
		return ctx.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
	}

	output, err := h.ingestUsecase.Execute(ctx.Request().Context(), usecase.IngestInput{
		Filename: fileHeader.Filename,
		Data:     data,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedExtension) {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to process document"})
	}

	return ctx.JSON(http.StatusOK, uploadResponse{
		DocumentID:    output.DocumentID.String(),
		Filename:      fileHeader.Filename,
		ChunksCreated: output.ChunksCreated,
		Status:        string(output.Status),
	})
}

type documentStatusResponse struct {
	DocumentID   string     `json:"document_id"`
	Filename     string     `json:"filename"`
	Status       string     `json:"status"`
	ChunkCount   *int       `json:"chunk_count,omitempty"`
	UploadedAt   time.Time  `json:"uploaded_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// (GET /documents/:document_id/status)
func (h *Handler) DocumentStatus(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("document_id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid document id"})
	}
	doc, err := h.docRepo.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "document not found"})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load document"})
	}
	return ctx.JSON(http.StatusOK, documentStatusResponse{
		DocumentID:   doc.ID.String(),
		Filename:     doc.Filename,
		Status:       string(doc.Status),
		ChunkCount:   doc.ChunkCount,
		UploadedAt:   doc.UploadedAt,
		ProcessedAt:  doc.ProcessedAt,
		ErrorMessage: doc.ErrorMessage,
	})
}

// (DELETE /documents/:document_id)
func (h *Handler) DeleteDocument(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("document_id"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid document id"})
	}
	if err := h.ingestUsecase.Delete(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "document not found"})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete document"})
	}
	return ctx.JSON(http.StatusOK, map[string]bool{"deleted": true})
}

func pagination(ctx echo.Context) (skip, limit int) {
	limit = defaultPageLimit
	if raw := ctx.QueryParam("skip"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			skip = v
		}
	}
	if raw := ctx.QueryParam("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return skip, limit
}

func titleFromQuestion(question string) string {
	title := strings.TrimSpace(question)
	if len(title) <= 60 {
		return title
	}
	// Cut on a rune boundary so multibyte questions keep a clean title.
	cut := 60
	for cut > 0 && !utf8.RuneStart(title[cut]) {
		cut--
	}
	return title[:cut]
}
