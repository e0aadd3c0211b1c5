package usecase_test

import (
	"testing"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/usecase"

	"github.com/stretchr/testify/assert"
)

func TestGrader_Grade_AboveThreshold(t *testing.T) {
	g := usecase.NewGrader(0.5, 3)

	docs := []domain.CandidateDocument{
		{ID: "a", Score:0.9},
		{ID: "b", Score:0.3},
		{ID: "c", Score:0.6},
	}

	graded := g.Grade(docs)

	assert.Len(t, graded, 2)
	assert.Equal(t, "a", graded[0].ID)
	assert.Equal(t, "c", graded[1].ID)
	for _, d := range graded {
		assert.Equal(t, "above_threshold", d.GradingReason)
	}
}

func TestGrader_Grade_FallbackWhenNoneQualify(t *testing.T) {
	g := usecase.NewGrader(0.8, 2)

	docs := []domain.CandidateDocument{
		{ID: "a", Score:0.1},
		{ID: "b", Score:0.5},
		{ID: "c", Score:0.3},
	}

	graded := g.Grade(docs)

	assert.Len(t, graded, 2)
	assert.Equal(t, "b", graded[0].ID)
	assert.Equal(t, "c", graded[1].ID)
	for _, d := range graded {
		assert.Equal(t, "fallback_top_n", d.GradingReason)
	}
}

func TestGrader_Grade_FallbackFewerThanTop(t *testing.T) {
	g := usecase.NewGrader(0.8, 5)

	docs := []domain.CandidateDocument{{ID: "a", Score:0.1}}

	graded := g.Grade(docs)

	assert.Len(t, graded, 1)
	assert.Equal(t, "fallback_top_n", graded[0].GradingReason)
}

func TestGrader_Grade_EmptyInput(t *testing.T) {
	g := usecase.NewGrader(0.5, 3)
	assert.Nil(t, g.Grade(nil))
}

func TestGrader_Grade_ThresholdsOnRerankScoreNotCombined(t *testing.T) {
	g := usecase.NewGrader(0.15, 3)

	// Retrieval scores [0.9,0.8,0.7,0.6,0.5], reranked to
	// [0.82,0.74,0.41,0.22,0.10] — the lowest combines to (0.5+0.10)/2 =
	// 0.30, which would pass a CombinedScore threshold of 0.15, but its
	// own rerank score of 0.10 must fail it.
	docs := []domain.CandidateDocument{
		{ID: "e", Score: 0.10, CombinedScore: 0.30},
		{ID: "a", Score: 0.82, CombinedScore: 0.86},
		{ID: "b", Score: 0.74, CombinedScore: 0.77},
		{ID: "d", Score: 0.22, CombinedScore: 0.41},
		{ID: "c", Score: 0.41, CombinedScore: 0.555},
	}

	graded := g.Grade(docs)

	assert.Len(t, graded, 4)
	for _, d := range graded {
		assert.NotEqual(t, "e", d.ID)
	}
}

func TestNewGrader_DefaultsFallbackTop(t *testing.T) {
	g := usecase.NewGrader(0.5, 0)

	docs := []domain.CandidateDocument{
		{ID: "a", Score:0.1},
		{ID: "b", Score:0.2},
		{ID: "c", Score:0.3},
		{ID: "d", Score:0.4},
	}

	graded := g.Grade(docs)
	assert.Len(t, graded, 3)
}
