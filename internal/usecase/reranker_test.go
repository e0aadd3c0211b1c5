package usecase_test

import (
	"context"
	"errors"
	"testing"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockReranker struct {
	mock.Mock
}

func (m *MockReranker) Rerank(ctx context.Context, query string, candidates []domain.RerankCandidate) ([]domain.RerankResult, error) {
	args := m.Called(ctx, query, candidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RerankResult), args.Error(1)
}

func (m *MockReranker) ModelName() string {
	return "mock-reranker"
}

func TestRerankerStage_Rerank_EmptyInput(t *testing.T) {
	model := new(MockReranker)
	stage := usecase.NewRerankerStage(model)

	out, err := stage.Rerank(context.Background(), "query", nil)

	assert.NoError(t, err)
	assert.Nil(t, out)
	model.AssertNotCalled(t, "Rerank")
}

func TestRerankerStage_Rerank_CombinesScores(t *testing.T) {
	model := new(MockReranker)
	docs := []domain.CandidateDocument{
		{ID: "a", Text: "alpha", RetrievalScore: 0.2},
		{ID: "b", Text: "beta", RetrievalScore: 0.8},
	}

	model.On("Rerank", mock.Anything, "query", mock.Anything).Return([]domain.RerankResult{
		{ID: "a", Score: 0.8},
		{ID: "b", Score: 0.2},
	}, nil)

	stage := usecase.NewRerankerStage(model)
	out, err := stage.Rerank(context.Background(), "query", docs)

	assert.NoError(t, err)
	assert.Len(t, out, 2)
	// a: (0.2+0.8)/2 = 0.5, b: (0.8+0.2)/2 = 0.5 -> combined scores tie; a sorts first on its higher rerank Score (0.8 vs 0.2)
	assert.InDelta(t, 0.5, out[0].CombinedScore, 0.0001)
	assert.InDelta(t, 0.5, out[1].CombinedScore, 0.0001)
	// Score and RerankScore carry the reranker's own calibrated score,
	// not the combined average.
	assert.InDelta(t, 0.8, out[0].Score, 0.0001)
	assert.InDelta(t, 0.8, out[0].RerankScore, 0.0001)
	assert.InDelta(t, 0.2, out[1].Score, 0.0001)
	assert.InDelta(t, 0.2, out[1].RerankScore, 0.0001)
	model.AssertExpectations(t)
}

func TestRerankerStage_Rerank_MissingScoreFallsBackToRetrieval(t *testing.T) {
	model := new(MockReranker)
	docs := []domain.CandidateDocument{
		{ID: "a", Text: "alpha", RetrievalScore: 0.4},
	}

	model.On("Rerank", mock.Anything, "query", mock.Anything).Return([]domain.RerankResult{}, nil)

	stage := usecase.NewRerankerStage(model)
	out, err := stage.Rerank(context.Background(), "query", docs)

	assert.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 0.4, out[0].CombinedScore)
}

func TestRerankerStage_Rerank_PropagatesError(t *testing.T) {
	model := new(MockReranker)
	docs := []domain.CandidateDocument{{ID: "a", Text: "alpha"}}

	model.On("Rerank", mock.Anything, "query", mock.Anything).Return(nil, errors.New("reranker down"))

	stage := usecase.NewRerankerStage(model)
	out, err := stage.Rerank(context.Background(), "query", docs)

	assert.Error(t, err)
	assert.Nil(t, out)
}

func TestRerankerStage_Rerank_SortsByRerankScoreDescending(t *testing.T) {
	model := new(MockReranker)
	docs := []domain.CandidateDocument{
		{ID: "a", Text: "alpha", RetrievalScore: 0.1},
		{ID: "b", Text: "beta", RetrievalScore: 0.9},
	}

	model.On("Rerank", mock.Anything, "query", mock.Anything).Return([]domain.RerankResult{
		{ID: "a", Score: 0.1},
		{ID: "b", Score: 0.9},
	}, nil)

	stage := usecase.NewRerankerStage(model)
	out, err := stage.Rerank(context.Background(), "query", docs)

	assert.NoError(t, err)
	assert.Equal(t, "b", out[0].ID)
	assert.Equal(t, "a", out[1].ID)
}
