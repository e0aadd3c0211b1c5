package usecase

import (
	"context"
	"sort"

	"agentic-rag/internal/domain"
)

// RerankerStage scores candidates against the query with a
// cross-encoder. The reranker's own calibrated score becomes each
// document's primary Score (the Grader thresholds on it, per spec.md
// 4.7); CombinedScore is kept alongside as the average of retrieval and
// rerank score for diagnostics only.
type RerankerStage struct {
	model domain.Reranker
}

func NewRerankerStage(model domain.Reranker) *RerankerStage {
	return &RerankerStage{model: model}
}

func (s *RerankerStage) Rerank(ctx context.Context, query string, documents []domain.CandidateDocument) ([]domain.CandidateDocument, error) {
	if len(documents) == 0 {
		return documents, nil
	}

	candidates := make([]domain.RerankCandidate, len(documents))
	for i, d := range documents {
		candidates[i] = domain.RerankCandidate{ID: d.ID, Content: d.Text, Score: d.RetrievalScore}
	}

	results, err := s.model.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	rerankScore := make(map[string]float64, len(results))
	for _, r := range results {
		rerankScore[r.ID] = float64(r.Score)
	}

	out := append([]domain.CandidateDocument(nil), documents...)
	for i, d := range out {
		if rs, ok := rerankScore[d.ID]; ok {
			out[i].RerankScore = rs
			out[i].CombinedScore = (d.RetrievalScore + rs) / 2
			out[i].Score = rs
		} else {
			out[i].RerankScore = d.RetrievalScore
			out[i].CombinedScore = d.RetrievalScore
			out[i].Score = d.RetrievalScore
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
