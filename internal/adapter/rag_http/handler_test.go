package rag_http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"agentic-rag/internal/adapter/rag_http"
	"agentic-rag/internal/domain"
	"agentic-rag/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockAnswerer struct {
	mock.Mock
}

func (m *mockAnswerer) Answer(ctx context.Context, rawQuery string, userFilters domain.Filters, history []domain.Message, rc domain.RuntimeContext) (*usecase.AnswerResult, error) {
	args := m.Called(ctx, rawQuery, userFilters, history, rc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.AnswerResult), args.Error(1)
}

func (m *mockAnswerer) Stream(ctx context.Context, rawQuery string, userFilters domain.Filters, history []domain.Message, rc domain.RuntimeContext) <-chan usecase.StreamEvent {
	args := m.Called(ctx, rawQuery, userFilters, history, rc)
	return args.Get(0).(<-chan usecase.StreamEvent)
}

type mockIndexer struct {
	mock.Mock
}

func (m *mockIndexer) Upsert(ctx context.Context, articleID, title, url, body string) error {
	args := m.Called(ctx, articleID, title, url, body)
	return args.Error(0)
}

func (m *mockIndexer) Delete(ctx context.Context, articleID string) error {
	args := m.Called(ctx, articleID)
	return args.Error(0)
}

type mockJobRepository struct {
	mock.Mock
}

func (m *mockJobRepository) Enqueue(ctx context.Context, job *domain.RagJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *mockJobRepository) AcquireNextJob(ctx context.Context) (*domain.RagJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RagJob), args.Error(1)
}

func (m *mockJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	args := m.Called(ctx, id, status, errorMessage)
	return args.Error(0)
}

func TestHandler_Answer(t *testing.T) {
	e := echo.New()
	chunkID := uuid.New()

	result := &usecase.AnswerResult{
		Answer: "leave requests go through the HR portal.",
		Citations: []usecase.Citation{
			{ChunkID: chunkID.String(), Reason: "directly answers the question"},
		},
		Contexts: []usecase.ContextItem{
			{ChunkID: chunkID, ChunkText: "...", URL: "https://example.com/hr", Title: "Leave policy", Score: 0.9, DocumentVersion: 1},
		},
	}

	answerUC := &mockAnswerer{}
	answerUC.On("Answer", mock.Anything, "how do I request leave?", mock.Anything, mock.Anything, mock.Anything).
		Return(result, nil)

	handler := rag_http.NewHandler(answerUC, &mockIndexer{}, &mockJobRepository{})

	body := bytes.NewBufferString(`{"query":"how do I request leave?"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/rag/answer", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, handler.Answer(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, result.Answer, resp["answer"])
		citations := resp["citations"].([]any)
		assert.Len(t, citations, 1)
	}
	answerUC.AssertExpectations(t)
}

func TestHandler_Answer_UsecaseError(t *testing.T) {
	e := echo.New()

	answerUC := &mockAnswerer{}
	answerUC.On("Answer", mock.Anything, "bad query", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("pipeline failed"))

	handler := rag_http.NewHandler(answerUC, &mockIndexer{}, &mockJobRepository{})

	body := bytes.NewBufferString(`{"query":"bad query"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/rag/answer", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, handler.Answer(c)) {
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	}
}

func TestHandler_AnswerStream(t *testing.T) {
	e := echo.New()

	events := make(chan usecase.StreamEvent, 3)
	events <- usecase.StreamEvent{Kind: usecase.StreamEventKindThinking}
	events <- usecase.StreamEvent{Kind: usecase.StreamEventKindToken, Token: "hel"}
	events <- usecase.StreamEvent{Kind: usecase.StreamEventKindDone, Result: &usecase.AnswerResult{Answer: "hello there"}}
	close(events)

	answerUC := &mockAnswerer{}
	answerUC.On("Stream", mock.Anything, "hi", mock.Anything, mock.Anything, mock.Anything).
		Return((<-chan usecase.StreamEvent)(events))

	handler := rag_http.NewHandler(answerUC, &mockIndexer{}, &mockJobRepository{})

	body := bytes.NewBufferString(`{"query":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/rag/answer/stream", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, handler.AnswerStream(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		response := rec.Body.String()
		assert.Contains(t, response, "event: thinking")
		assert.Contains(t, response, "event: token")
		assert.Contains(t, response, "event: done")
		assert.Contains(t, response, `"hello there"`)
	}
}

func TestHandler_UpsertIndex(t *testing.T) {
	e := echo.New()

	indexUC := &mockIndexer{}
	indexUC.On("Upsert", mock.Anything, "art-1", "Leave policy", "https://example.com/leave", "body text").
		Return(nil)

	handler := rag_http.NewHandler(&mockAnswerer{}, indexUC, &mockJobRepository{})

	reqBody := `{"article_id":"art-1","title":"Leave policy","url":"https://example.com/leave","body":"body text"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/rag/index", bytes.NewBufferString(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, handler.UpsertIndex(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	indexUC.AssertExpectations(t)
}

func TestHandler_UpsertIndex_UsecaseError(t *testing.T) {
	e := echo.New()

	indexUC := &mockIndexer{}
	indexUC.On("Upsert", mock.Anything, "art-1", "Leave policy", "", "body text").
		Return(errors.New("indexing failed"))

	handler := rag_http.NewHandler(&mockAnswerer{}, indexUC, &mockJobRepository{})

	reqBody := `{"article_id":"art-1","title":"Leave policy","body":"body text"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/rag/index", bytes.NewBufferString(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, handler.UpsertIndex(c)) {
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	}
}

func TestHandler_DeleteIndex(t *testing.T) {
	e := echo.New()

	indexUC := &mockIndexer{}
	indexUC.On("Delete", mock.Anything, "art-1").Return(nil)

	handler := rag_http.NewHandler(&mockAnswerer{}, indexUC, &mockJobRepository{})

	req := httptest.NewRequest(http.MethodDelete, "/v1/rag/index/art-1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("articleId")
	c.SetParamValues("art-1")

	if assert.NoError(t, handler.DeleteIndex(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	indexUC.AssertExpectations(t)
}

func TestHandler_EnqueueBackfill(t *testing.T) {
	e := echo.New()

	jobRepo := &mockJobRepository{}
	jobRepo.On("Enqueue", mock.Anything, mock.MatchedBy(func(job *domain.RagJob) bool {
		return job.JobType == "backfill_article" && job.Payload["article_id"] == "art-2"
	})).Return(nil)

	handler := rag_http.NewHandler(&mockAnswerer{}, &mockIndexer{}, jobRepo)

	reqBody := `{"article_id":"art-2","title":"New doc","body":"content"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/rag/backfill", bytes.NewBufferString(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if assert.NoError(t, handler.EnqueueBackfill(c)) {
		assert.Equal(t, http.StatusAccepted, rec.Code)

		var resp map[string]string
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "queued", resp["status"])
		assert.NotEmpty(t, resp["job_id"])
	}
	jobRepo.AssertExpectations(t)
}
