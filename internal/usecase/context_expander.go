package usecase

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"agentic-rag/internal/domain"

	"golang.org/x/sync/errgroup"
)

// contextExpanderWindow is the neighbor window w in spec.md 4.8's
// "[idx-w, idx+w]": for a legacy chunk lacking a recorded parent, the
// expander pulls up to one chunk on either side of it from the same
// document and stitches them together in index order.
const contextExpanderWindow = 1

// contextExpanderFetchLimit bounds how many of a document's chunks the
// neighbor lookup pulls back before it's filtered down to the window;
// generous enough to cover the window for any document the chunker
// produces.
const contextExpanderFetchLimit = 50

// embeddingDimension is the vector width BulkInsertChunks stores
// embeddings at (nomic-embed-text's output size). The neighbor lookup
// doesn't care about vector relevance — it filters the returned hits
// down to an ordinal window itself — so a zero vector is enough to
// satisfy SearchWithinArticles's dense-search contract without a second
// embedder round trip.
const embeddingDimension = 768

// ContextExpander widens each kept document's text so the Generator
// sees enough surrounding passage to answer from a single matching
// chunk. Documents carrying a recorded parent_text have it substituted
// in directly; legacy documents lacking one have their neighboring
// chunks fetched concurrently from the same document and concatenated
// in index order. Documents sharing the same (document_id,
// parent_chunk_index) are deduplicated to a single emitted parent.
// Preserves input order for documents that don't need expansion.
type ContextExpander struct {
	chunks domain.RagChunkRepository
}

func NewContextExpander(chunks domain.RagChunkRepository) *ContextExpander {
	return &ContextExpander{chunks: chunks}
}

func (e *ContextExpander) Expand(ctx context.Context, documents []domain.CandidateDocument) ([]domain.CandidateDocument, error) {
	out := make([]domain.CandidateDocument, len(documents))
	copy(out, documents)

	neighborText := make([]string, len(out))
	g, gctx := errgroup.WithContext(ctx)

	for i := range out {
		i := i
		d := out[i]
		if d.Metadata.ParentText != "" {
			continue
		}
		g.Go(func() error {
			text, err := e.fetchNeighborWindow(gctx, d)
			if err != nil {
				return err
			}
			neighborText[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, d := range out {
		switch {
		case d.Metadata.ParentText != "":
			if len(d.Metadata.ParentText) > len(d.Text) {
				out[i].Text = d.Metadata.ParentText
			}
		case neighborText[i] != "" && len(neighborText[i]) > len(d.Text):
			out[i].Text = neighborText[i]
		}
	}

	return dedupeByParent(out), nil
}

// fetchNeighborWindow restricts SearchWithinArticles to d's own
// document, then keeps only the hits whose Ordinal falls within
// [idx-w, idx+w] of d's own chunk index and concatenates their content
// in index order.
func (e *ContextExpander) fetchNeighborWindow(ctx context.Context, d domain.CandidateDocument) (string, error) {
	if d.Metadata.DocumentID == "" {
		return "", nil
	}

	hits, err := e.chunks.SearchWithinArticles(ctx, make([]float32, embeddingDimension), []string{d.Metadata.DocumentID}, contextExpanderFetchLimit)
	if err != nil {
		return "", err
	}

	lo := d.Metadata.ChunkIndex - contextExpanderWindow
	hi := d.Metadata.ChunkIndex + contextExpanderWindow

	neighbors := make([]domain.Chunk, 0, len(hits))
	for _, h := range hits {
		if h.Chunk.Ordinal >= lo && h.Chunk.Ordinal <= hi {
			neighbors = append(neighbors, h.Chunk)
		}
	}
	if len(neighbors) == 0 {
		return "", nil
	}

	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Ordinal < neighbors[j].Ordinal })

	parts := make([]string, len(neighbors))
	for i, n := range neighbors {
		parts[i] = n.Content
	}
	return strings.Join(parts, "\n\n"), nil
}

// dedupeByParent keeps only the first document for each distinct
// (document_id, parent_chunk_index) pair, per spec.md 4.8's "emit the
// parent once". Documents without a recorded parent text (empty
// ParentText) are never deduplicated against each other.
func dedupeByParent(documents []domain.CandidateDocument) []domain.CandidateDocument {
	seen := make(map[string]struct{})
	out := documents[:0]
	for _, d := range documents {
		if d.Metadata.ParentText == "" {
			out = append(out, d)
			continue
		}
		key := d.Metadata.DocumentID + "|" + strconv.Itoa(d.Metadata.ParentChunkIndex)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}
