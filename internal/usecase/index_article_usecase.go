package usecase

import (
	"context"
	"fmt"

	"agentic-rag/internal/domain"

	"github.com/google/uuid"
)

// SourceHasher computes a stable content hash for idempotent upserts.
type SourceHasher interface {
	Compute(title, body string) string
}

// DocumentChunker splits a document body into ordered, hashed chunks.
type DocumentChunker interface {
	Chunk(body string) ([]domain.ChunkDraft, error)
}

// IndexArticleUsecase upserts one source document: it hashes the
// incoming title+body, skips re-chunking when the hash matches the
// current version, and otherwise chunks the new body, diffs it against
// the previous version's chunks, and persists a new version plus the
// chunk events needed to reconstruct what changed.
type IndexArticleUsecase struct {
	docs    domain.RagDocumentRepository
	chunks  domain.RagChunkRepository
	tx      domain.TransactionManager
	hasher  SourceHasher
	chunker DocumentChunker
	encoder domain.VectorEncoder // optional: nil skips embedding at index time
}

func NewIndexArticleUsecase(
	docs domain.RagDocumentRepository,
	chunks domain.RagChunkRepository,
	tx domain.TransactionManager,
	hasher SourceHasher,
	chunker DocumentChunker,
	encoder domain.VectorEncoder,
) *IndexArticleUsecase {
	return &IndexArticleUsecase{
		docs:    docs,
		chunks:  chunks,
		tx:      tx,
		hasher:  hasher,
		chunker: chunker,
		encoder: encoder,
	}
}

// Delete removes an article from retrieval. It does not erase its
// stored versions or chunks, only the document's current-version
// pointer, so history remains available for audit.
func (u *IndexArticleUsecase) Delete(ctx context.Context, articleID string) error {
	return u.docs.DeactivateDocument(ctx, articleID)
}

// Upsert indexes (or re-indexes) one article. url is currently
// informational only; it is accepted so callers can pass through a
// source document's canonical link without the usecase needing to know
// how it gets persisted.
func (u *IndexArticleUsecase) Upsert(ctx context.Context, articleID, title, url, body string) error {
	sourceHash := u.hasher.Compute(title, body)

	return u.tx.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := u.docs.GetByArticleID(ctx, articleID)
		if err != nil {
			return fmt.Errorf("get document: %w", err)
		}

		if doc == nil {
			return u.insertNewDocument(ctx, articleID, title, url, body, sourceHash)
		}

		if doc.CurrentVersionID == nil {
			return u.insertNewVersion(ctx, doc, nil, title, body, sourceHash, 1)
		}

		latest, err := u.docs.GetLatestVersion(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("get latest version: %w", err)
		}
		if latest != nil && latest.SourceHash == sourceHash {
			return nil
		}

		nextVersion := 1
		if latest != nil {
			nextVersion = latest.VersionNumber + 1
		}

		var oldChunks []domain.Chunk
		if latest != nil {
			oldChunks, err = u.chunks.GetChunksByVersionID(ctx, latest.ID)
			if err != nil {
				return fmt.Errorf("get chunks for diff: %w", err)
			}
		}

		return u.insertNewVersion(ctx, doc, oldChunks, title, body, sourceHash, nextVersion)
	})
}

func (u *IndexArticleUsecase) insertNewDocument(ctx context.Context, articleID, title, url, body, sourceHash string) error {
	doc := &domain.Document{
		ID:        uuid.New(),
		ArticleID: articleID,
		Title:     title,
		URL:       url,
	}
	if err := u.docs.CreateDocument(ctx, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return u.insertNewVersion(ctx, doc, nil, title, body, sourceHash, 1)
}

func (u *IndexArticleUsecase) insertNewVersion(
	ctx context.Context,
	doc *domain.Document,
	oldChunks []domain.Chunk,
	title, body, sourceHash string,
	versionNumber int,
) error {
	drafts, err := u.chunker.Chunk(body)
	if err != nil {
		return fmt.Errorf("chunk body: %w", err)
	}

	version := &domain.DocumentVersion{
		ID:            uuid.New(),
		DocumentID:    doc.ID,
		VersionNumber: versionNumber,
		SourceHash:    sourceHash,
		Title:         title,
	}
	if err := u.docs.CreateVersion(ctx, version); err != nil {
		return fmt.Errorf("create version: %w", err)
	}

	newChunks := make([]domain.Chunk, len(drafts))
	newDrafts := make([]domain.ChunkDraft, len(drafts))
	for i, d := range drafts {
		id := uuid.New()
		newChunks[i] = domain.Chunk{
			ID:        id,
			VersionID: version.ID,
			Ordinal:   d.Ordinal,
			Content:   d.Content,
			Hash:      d.Hash,
		}
		newDrafts[i] = d
	}

	if u.encoder != nil && len(newChunks) > 0 {
		texts := make([]string, len(newChunks))
		for i, c := range newChunks {
			texts[i] = c.Content
		}
		vectors, err := u.encoder.Encode(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(newChunks) {
			return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(newChunks))
		}
		for i := range newChunks {
			newChunks[i].Embedding = vectors[i]
		}
	}

	if len(newChunks) > 0 {
		if err := u.chunks.BulkInsertChunks(ctx, newChunks); err != nil {
			return fmt.Errorf("bulk insert chunks: %w", err)
		}
	}

	oldDrafts := make([]domain.ChunkDraft, len(oldChunks))
	for i, c := range oldChunks {
		oldDrafts[i] = domain.ChunkDraft{Ordinal: c.Ordinal, Content: c.Content, Hash: c.Hash}
	}

	events := domain.DiffChunks(oldDrafts, newDrafts)
	if len(events) > 0 {
		if err := u.chunks.InsertEvents(ctx, events); err != nil {
			return fmt.Errorf("insert chunk events: %w", err)
		}
	}

	if err := u.docs.UpdateCurrentVersion(ctx, doc.ID, version.ID); err != nil {
		return fmt.Errorf("update current version: %w", err)
	}

	return nil
}
