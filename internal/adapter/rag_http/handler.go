package rag_http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// answerer is the subset of AnswerWithRAGUsecase the HTTP layer needs,
// narrowed to an interface so handlers can be tested against fakes
// instead of the full pipeline.
type answerer interface {
	Answer(ctx context.Context, rawQuery string, userFilters domain.Filters, history []domain.Message, rc domain.RuntimeContext) (*usecase.AnswerResult, error)
	Stream(ctx context.Context, rawQuery string, userFilters domain.Filters, history []domain.Message, rc domain.RuntimeContext) <-chan usecase.StreamEvent
}

// indexer is the subset of IndexArticleUsecase the HTTP layer needs.
type indexer interface {
	Upsert(ctx context.Context, articleID, title, url, body string) error
	Delete(ctx context.Context, articleID string) error
}

// Handler wires the HTTP surface to the three entry points a caller has
// into the pipeline: ask a question, upsert/retire a document from the
// index, and enqueue a document for asynchronous (re)indexing.
type Handler struct {
	answerUsecase answerer
	indexUsecase  indexer
	jobRepo       domain.RagJobRepository
}

func NewHandler(
	answerUsecase answerer,
	indexUsecase indexer,
	jobRepo domain.RagJobRepository,
) *Handler {
	return &Handler{
		answerUsecase: answerUsecase,
		indexUsecase:  indexUsecase,
		jobRepo:       jobRepo,
	}
}

var (
	_ answerer = (*usecase.AnswerWithRAGUsecase)(nil)
	_ indexer  = (*usecase.IndexArticleUsecase)(nil)
)

// Register mounts every route on e, behind validator's request
// validation middleware.
func (h *Handler) Register(e *echo.Echo, validator *RequestValidator) {
	g := e.Group("", validator.Middleware)
	g.POST("/v1/rag/answer", h.Answer)
	g.POST("/v1/rag/answer/stream", h.AnswerStream)
	g.POST("/v1/rag/index", h.UpsertIndex)
	g.DELETE("/v1/rag/index/:articleId", h.DeleteIndex)
	g.POST("/v1/rag/backfill", h.EnqueueBackfill)
}

type filtersDTO struct {
	Language      string `json:"language,omitempty"`
	FileType      string `json:"file_type,omitempty"`
	SectionHeader string `json:"section_header,omitempty"`
}

type messageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type answerRequest struct {
	Query              string       `json:"query"`
	LanguagePreference string       `json:"language_preference"`
	ExpertiseLevel     string       `json:"expertise_level"`
	ResponseStyle      string       `json:"response_style"`
	EnableCitations    bool         `json:"enable_citations"`
	MaxResponseLength  int          `json:"max_response_length"`
	Filters            filtersDTO   `json:"filters"`
	History            []messageDTO `json:"history"`
}

func (r answerRequest) toFilters() domain.Filters {
	return domain.Filters{
		Language:      r.Filters.Language,
		FileType:      r.Filters.FileType,
		SectionHeader: r.Filters.SectionHeader,
	}
}

func (r answerRequest) toHistory() []domain.Message {
	history := make([]domain.Message, 0, len(r.History))
	for _, m := range r.History {
		history = append(history, domain.Message{Role: m.Role, Content: m.Content})
	}
	return history
}

func (r answerRequest) toRuntimeContext() domain.RuntimeContext {
	return domain.RuntimeContext{
		LanguagePreference: r.LanguagePreference,
		ExpertiseLevel:     r.ExpertiseLevel,
		ResponseStyle:      r.ResponseStyle,
		EnableCitations:    r.EnableCitations,
		MaxResponseLength:  r.MaxResponseLength,
	}
}

type citationDTO struct {
	ChunkID string `json:"chunk_id"`
	Reason  string `json:"reason"`
}

type contextItemDTO struct {
	ChunkID         string  `json:"chunk_id"`
	ChunkText       string  `json:"chunk_text"`
	URL             string  `json:"url"`
	Title           string  `json:"title"`
	PublishedAt     string  `json:"published_at,omitempty"`
	Score           float64 `json:"score"`
	DocumentVersion int     `json:"document_version"`
}

type answerResponse struct {
	Answer    string           `json:"answer"`
	Citations []citationDTO    `json:"citations"`
	Contexts  []contextItemDTO `json:"contexts"`
	Warnings  []string         `json:"warnings,omitempty"`
}

func toAnswerResponse(result *usecase.AnswerResult) answerResponse {
	resp := answerResponse{
		Answer:   result.Answer,
		Warnings: result.Warnings,
	}
	for _, c := range result.Citations {
		resp.Citations = append(resp.Citations, citationDTO{ChunkID: c.ChunkID, Reason: c.Reason})
	}
	for _, ctx := range result.Contexts {
		resp.Contexts = append(resp.Contexts, contextItemDTO{
			ChunkID:         ctx.ChunkID.String(),
			ChunkText:       ctx.ChunkText,
			URL:             ctx.URL,
			Title:           ctx.Title,
			PublishedAt:     ctx.PublishedAt,
			Score:           ctx.Score,
			DocumentVersion: ctx.DocumentVersion,
		})
	}
	return resp
}

// Answer runs the pipeline synchronously and returns the final answer.
// (POST /v1/rag/answer)
func (h *Handler) Answer(c echo.Context) error {
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	result, err := h.answerUsecase.Answer(c.Request().Context(), req.Query, req.toFilters(), req.toHistory(), req.toRuntimeContext())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, toAnswerResponse(result))
}

// AnswerStream runs the pipeline and streams progress as Server-Sent
// Events, so a caller sees the model is working before the first token
// of the final answer arrives.
// (POST /v1/rag/answer/stream)
func (h *Handler) AnswerStream(c echo.Context) error {
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	events := h.answerUsecase.Stream(c.Request().Context(), req.Query, req.toFilters(), req.toHistory(), req.toRuntimeContext())

	res := c.Response()
	res.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	res.Header().Set("Cache-Control", "no-cache, no-transform")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming not supported by response writer")
	}
	flusher.Flush()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeSSE(res.Writer, event); err != nil {
				return err
			}
			flusher.Flush()
			if event.Kind == usecase.StreamEventKindDone || event.Kind == usecase.StreamEventKindError {
				return nil
			}
		}
	}
}

func writeSSE(w io.Writer, event usecase.StreamEvent) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Kind); err != nil {
		return err
	}

	var payload any
	switch event.Kind {
	case usecase.StreamEventKindToken:
		payload = map[string]string{"token": event.Token}
	case usecase.StreamEventKindDone:
		payload = toAnswerResponse(event.Result)
	case usecase.StreamEventKindError:
		payload = map[string]string{"error": event.Err.Error()}
	default:
		payload = struct{}{}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

type upsertIndexRequest struct {
	ArticleID string `json:"article_id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Body      string `json:"body"`
}

// UpsertIndex indexes (or re-indexes) one document, synchronously.
// (POST /v1/rag/index)
func (h *Handler) UpsertIndex(c echo.Context) error {
	var req upsertIndexRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	if err := h.indexUsecase.Upsert(c.Request().Context(), req.ArticleID, req.Title, req.URL, req.Body); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "indexed"})
}

// DeleteIndex retires a document from retrieval without erasing its
// version history.
// (DELETE /v1/rag/index/:articleId)
func (h *Handler) DeleteIndex(c echo.Context) error {
	articleID := c.Param("articleId")
	if err := h.indexUsecase.Delete(c.Request().Context(), articleID); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deactivated"})
}

type enqueueBackfillRequest struct {
	ArticleID string `json:"article_id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Body      string `json:"body"`
}

// EnqueueBackfill queues a document for asynchronous indexing by the
// worker pool, for callers that don't want to wait on UpsertIndex's
// synchronous chunk/embed/diff work.
// (POST /v1/rag/backfill)
func (h *Handler) EnqueueBackfill(c echo.Context) error {
	var req enqueueBackfillRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	job := &domain.RagJob{
		ID:      uuid.New(),
		JobType: "backfill_article",
		Payload: map[string]any{
			"article_id": req.ArticleID,
			"title":      req.Title,
			"url":        req.URL,
			"body":       req.Body,
		},
		Status:    "pending",
		CreatedAt: time.Now(),
	}

	if err := h.jobRepo.Enqueue(c.Request().Context(), job); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, map[string]string{"job_id": job.ID.String(), "status": "queued"})
}
