package retrieval

import (
	"context"
	"sort"

	"agentic-rag/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Retriever runs the dense and lexical halves of hybrid search
// concurrently and fuses them with Reciprocal Rank Fusion.
type Retriever struct {
	chunks   domain.RagChunkRepository
	embedder domain.VectorEncoder
	topK     int
}

func NewRetriever(chunks domain.RagChunkRepository, embedder domain.VectorEncoder, topK int) *Retriever {
	if topK <= 0 {
		topK = 15
	}
	return &Retriever{chunks: chunks, embedder: embedder, topK: topK}
}

// languageMatchBoost is the score multiplier applied to documents whose
// metadata language matches the detected query language, per spec.md
// 4.4 step 4. Non-matching documents are kept, not dropped.
const languageMatchBoost = 1.10

// maxSearchQueries is the cap spec.md 4.4 places on the family of
// search queries fanned out to hybrid search: the Query Preparer may
// emit more (primary + up to 3 alternates + step-back), but only the
// first 3 are ever searched.
const maxSearchQueries = 3

// Retrieve embeds every query in searchQueries with a single batched
// call, then for each query runs dense vector search and lexical
// full-text search concurrently and fuses that query's own dense+
// lexical pair via RRF (spec.md 4.5's hybrid_search). The per-query
// ranked lists are then merged by point id, keeping the higher score on
// a collision (spec.md 4.4 step 3), boosted for language match, and
// returned sorted by score descending.
func (r *Retriever) Retrieve(ctx context.Context, searchQueries []string, filters domain.Filters) ([]domain.CandidateDocument, error) {
	if len(searchQueries) == 0 {
		return nil, nil
	}
	if len(searchQueries) > maxSearchQueries {
		searchQueries = searchQueries[:maxSearchQueries]
	}

	vectors, err := r.embedder.Encode(ctx, searchQueries)
	if err != nil {
		return nil, err
	}

	type queryResult struct {
		scores  map[string]float64
		results map[string]domain.SearchResult
	}

	g, gctx := errgroup.WithContext(ctx)
	perQuery := make([]queryResult, len(searchQueries))

	for i, q := range searchQueries {
		i, q := i, q
		g.Go(func() error {
			var denseList RankedList
			var lexHits []domain.LexicalSearchResult
			results := make(map[string]domain.SearchResult)
			pair, pctx := errgroup.WithContext(gctx)
			if i < len(vectors) && len(vectors[i]) > 0 {
				pair.Go(func() error {
					hits, err := r.chunks.Search(pctx, vectors[i], r.topK)
					if err != nil {
						return err
					}
					denseList = make(RankedList, 0, len(hits))
					for _, h := range hits {
						id := h.Chunk.ID.String()
						denseList = append(denseList, id)
						results[id] = h
					}
					return nil
				})
			}
			pair.Go(func() error {
				var err error
				lexHits, err = r.chunks.SearchLexical(pctx, q, r.topK)
				return err
			})
			if err := pair.Wait(); err != nil {
				return err
			}
			sort.Slice(lexHits, func(a, b int) bool { return lexHits[a].Rank < lexHits[b].Rank })
			lexList := make(RankedList, 0, len(lexHits))
			for _, h := range lexHits {
				lexList = append(lexList, h.ChunkID.String())
			}

			perQuery[i] = queryResult{
				scores:  FuseRRF([]RankedList{denseList, lexList}),
				results: results,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]domain.SearchResult)
	merged := make(map[string]float64)
	for _, qr := range perQuery {
		for id, hit := range qr.results {
			byID[id] = hit
		}
		for id, score := range qr.scores {
			if cur, ok := merged[id]; !ok || score > cur {
				merged[id] = score
			}
		}
	}

	candidates := make([]domain.CandidateDocument, 0, len(merged))
	for id, score := range merged {
		hit, ok := byID[id]
		var cand domain.CandidateDocument
		if ok {
			cand = toCandidateDocument(hit)
		} else {
			cand = domain.CandidateDocument{ID: id}
		}
		cand.Score = score
		cand.RetrievalScore = score
		if filters.Language != "" && cand.Metadata.Language == filters.Language {
			cand.LanguageMatch = true
			cand.Score *= languageMatchBoost
		}
		candidates = append(candidates, cand)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	return candidates, nil
}

func toCandidateDocument(hit domain.SearchResult) domain.CandidateDocument {
	return domain.CandidateDocument{
		ID:   hit.Chunk.ID.String(),
		Text: hit.Chunk.Content,
		Metadata: domain.DocumentMetadata{
			Source:           hit.Title,
			Language:         hit.Language,
			FileType:         hit.Chunk.FileType,
			PageNumber:       hit.Chunk.PageNumber,
			PageStart:        hit.Chunk.PageStart,
			PageEnd:          hit.Chunk.PageEnd,
			ParentChunkIndex: hit.Chunk.ParentChunkIndex,
			ParentText:       hit.Chunk.ParentText,
			SectionHeader:    hit.Chunk.SectionHeader,
			DocumentID:       hit.ArticleID,
			ChunkIndex:       hit.Chunk.Ordinal,
		},
	}
}
