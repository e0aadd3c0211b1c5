package pgrepo

import (
	"context"
	"fmt"
	"log/slog"

	"agentic-rag/internal/domain"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository persists Chunks and serves both halves of hybrid
// search: cosine-nearest dense search over pgvector embeddings, and
// tsvector-backed lexical search.
type ChunkRepository struct {
	pool   pgxPool
	logger *slog.Logger
}

func NewChunkRepository(pool pgxPool, logger *slog.Logger) *ChunkRepository {
	return &ChunkRepository{pool: pool, logger: logger}
}

func (r *ChunkRepository) BulkInsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	q := queryerFrom(ctx, r.pool)

	batch := make([][]any, 0, len(chunks))
	for _, c := range chunks {
		batch = append(batch, []any{
			c.ID, c.VersionID, c.Ordinal, c.Content, c.Hash,
			pgvector.NewVector(c.Embedding),
			c.ParentText, c.ParentChunkIndex, c.PageNumber, c.PageStart, c.PageEnd,
			c.SectionHeader, c.Language, c.FileType,
		})
	}

	for _, row := range batch {
		_, err := q.Exec(ctx, `
			INSERT INTO chunks (
				id, version_id, ordinal, content, hash, embedding,
				parent_text, parent_chunk_index, page_number, page_start, page_end,
				section_header, language, file_type
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		`, row...)
		if err != nil {
			return fmt.Errorf("bulk insert chunks: %w", err)
		}
	}

	r.logger.Info("chunks inserted", slog.Int("count", len(chunks)))
	return nil
}

func (r *ChunkRepository) GetChunksByVersionID(ctx context.Context, versionID uuid.UUID) ([]domain.Chunk, error) {
	q := queryerFrom(ctx, r.pool)

	rows, err := q.Query(ctx, `
		SELECT id, version_id, ordinal, content, hash, created_at
		FROM chunks WHERE version_id = $1
		ORDER BY ordinal ASC
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("get chunks by version id: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.VersionID, &c.Ordinal, &c.Content, &c.Hash, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepository) InsertEvents(ctx context.Context, events []domain.ChunkEvent) error {
	if len(events) == 0 {
		return nil
	}
	q := queryerFrom(ctx, r.pool)

	for _, e := range events {
		_, err := q.Exec(ctx, `
			INSERT INTO chunk_events (ordinal, event_type, old_hash, new_hash, new_content)
			VALUES ($1, $2, $3, $4, $5)
		`, e.Ordinal, string(e.Type), e.OldChunk.Hash, e.NewChunk.Hash, e.NewChunk.Content)
		if err != nil {
			return fmt.Errorf("insert chunk event: %w", err)
		}
	}
	return nil
}

const searchResultColumns = `
	c.id, c.version_id, c.ordinal, c.content, c.hash, c.created_at,
	c.parent_text, c.parent_chunk_index, c.page_number, c.page_start, c.page_end,
	c.section_header, c.language, c.file_type,
	d.title, d.url, d.article_id, dv.version_number
`

// Search is the dense half of hybrid search: cosine distance against
// every active document's current-version chunks, ordered nearest
// first. Distance is converted to a similarity score (1 - distance) so
// callers work with "higher is better" scores throughout the pipeline.
func (r *ChunkRepository) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.SearchResult, error) {
	q := queryerFrom(ctx, r.pool)

	rows, err := q.Query(ctx, `
		SELECT `+searchResultColumns+`, 1 - (c.embedding <=> $1) AS score
		FROM chunks c
		JOIN document_versions dv ON dv.id = c.version_id
		JOIN documents d ON d.current_version_id = dv.id
		ORDER BY c.embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	defer rows.Close()

	return collectSearchResults(rows)
}

// SearchWithinArticles restricts dense search to a caller-supplied set
// of article IDs, used by the context expander's legacy-neighbor
// lookup so it never pulls chunks from unrelated documents.
func (r *ChunkRepository) SearchWithinArticles(ctx context.Context, queryVector []float32, articleIDs []string, limit int) ([]domain.SearchResult, error) {
	if len(articleIDs) == 0 {
		return nil, nil
	}
	q := queryerFrom(ctx, r.pool)

	rows, err := q.Query(ctx, `
		SELECT `+searchResultColumns+`, 1 - (c.embedding <=> $1) AS score
		FROM chunks c
		JOIN document_versions dv ON dv.id = c.version_id
		JOIN documents d ON d.current_version_id = dv.id
		WHERE d.article_id = ANY($3)
		ORDER BY c.embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(queryVector), limit, articleIDs)
	if err != nil {
		return nil, fmt.Errorf("dense search within articles: %w", err)
	}
	defer rows.Close()

	return collectSearchResults(rows)
}

func collectSearchResults(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]domain.SearchResult, error) {
	var results []domain.SearchResult
	for rows.Next() {
		var score float64
		var sr domain.SearchResult
		err := rows.Scan(
			&sr.Chunk.ID, &sr.Chunk.VersionID, &sr.Chunk.Ordinal, &sr.Chunk.Content, &sr.Chunk.Hash, &sr.Chunk.CreatedAt,
			&sr.Chunk.ParentText, &sr.Chunk.ParentChunkIndex, &sr.Chunk.PageNumber, &sr.Chunk.PageStart, &sr.Chunk.PageEnd,
			&sr.Chunk.SectionHeader, &sr.Chunk.Language, &sr.Chunk.FileType,
			&sr.Title, &sr.URL, &sr.ArticleID, &sr.DocumentVersion,
			&score,
		)
		if err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		sr.Score = score
		results = append(results, sr)
	}
	return results, rows.Err()
}

// SearchLexical is the full-text half of hybrid search. It uses
// Postgres's "simple" text search configuration rather than a
// language-specific one (english, russian, ...) because the corpus mixes
// English, Russian and Uzbek in the same chunks table and "simple"
// tokenizes and lowercases without stemming any one language
// preferentially.
func (r *ChunkRepository) SearchLexical(ctx context.Context, queryText string, limit int) ([]domain.LexicalSearchResult, error) {
	q := queryerFrom(ctx, r.pool)

	rows, err := q.Query(ctx, `
		SELECT c.id, ts_rank(to_tsvector('simple', c.content), websearch_to_tsquery('simple', $1)) AS score
		FROM chunks c
		JOIN document_versions dv ON dv.id = c.version_id
		JOIN documents d ON d.current_version_id = dv.id
		WHERE to_tsvector('simple', c.content) @@ websearch_to_tsquery('simple', $1)
		ORDER BY score DESC
		LIMIT $2
	`, queryText, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var results []domain.LexicalSearchResult
	rank := 0
	for rows.Next() {
		var res domain.LexicalSearchResult
		if err := rows.Scan(&res.ChunkID, &res.Score); err != nil {
			return nil, fmt.Errorf("scan lexical result: %w", err)
		}
		res.Rank = rank
		rank++
		results = append(results, res)
	}
	return results, rows.Err()
}

var _ domain.RagChunkRepository = (*ChunkRepository)(nil)
