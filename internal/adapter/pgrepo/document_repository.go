package pgrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agentic-rag/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DocumentRepository persists Document and DocumentVersion rows.
type DocumentRepository struct {
	pool   pgxPool
	logger *slog.Logger
}

func NewDocumentRepository(pool pgxPool, logger *slog.Logger) *DocumentRepository {
	return &DocumentRepository{pool: pool, logger: logger}
}

func (r *DocumentRepository) GetByArticleID(ctx context.Context, articleID string) (*domain.Document, error) {
	q := queryerFrom(ctx, r.pool)

	var doc domain.Document
	var currentVersionID *uuid.UUID
	err := q.QueryRow(ctx, `
		SELECT id, article_id, title, url, current_version_id
		FROM documents WHERE article_id = $1
	`, articleID).Scan(&doc.ID, &doc.ArticleID, &doc.Title, &doc.URL, &currentVersionID)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document by article id: %w", err)
	}
	doc.CurrentVersionID = currentVersionID
	return &doc, nil
}

func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *domain.Document) error {
	q := queryerFrom(ctx, r.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO documents (id, article_id, title, url, current_version_id)
		VALUES ($1, $2, $3, $4, $5)
	`, doc.ID, doc.ArticleID, doc.Title, doc.URL, doc.CurrentVersionID)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	r.logger.Info("document created", slog.String("article_id", doc.ArticleID))
	return nil
}

func (r *DocumentRepository) UpdateCurrentVersion(ctx context.Context, docID uuid.UUID, versionID uuid.UUID) error {
	q := queryerFrom(ctx, r.pool)

	tag, err := q.Exec(ctx, `
		UPDATE documents SET current_version_id = $2 WHERE id = $1
	`, docID, versionID)
	if err != nil {
		return fmt.Errorf("update current version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update current version: no document %s", docID)
	}
	return nil
}

func (r *DocumentRepository) GetLatestVersion(ctx context.Context, docID uuid.UUID) (*domain.DocumentVersion, error) {
	q := queryerFrom(ctx, r.pool)

	var v domain.DocumentVersion
	err := q.QueryRow(ctx, `
		SELECT id, document_id, version_number, source_hash, title, created_at
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version_number DESC
		LIMIT 1
	`, docID).Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &v.SourceHash, &v.Title, &v.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest version: %w", err)
	}
	return &v, nil
}

func (r *DocumentRepository) CreateVersion(ctx context.Context, version *domain.DocumentVersion) error {
	q := queryerFrom(ctx, r.pool)

	_, err := q.Exec(ctx, `
		INSERT INTO document_versions (id, document_id, version_number, source_hash, title, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, version.ID, version.DocumentID, version.VersionNumber, version.SourceHash, version.Title, version.CreatedAt)
	if err != nil {
		return fmt.Errorf("create document version: %w", err)
	}
	return nil
}

// DeactivateDocument clears a document's current-version pointer so
// RagChunkRepository.Search stops surfacing its chunks, without
// deleting the document or its version history.
func (r *DocumentRepository) DeactivateDocument(ctx context.Context, articleID string) error {
	q := queryerFrom(ctx, r.pool)

	tag, err := q.Exec(ctx, `
		UPDATE documents SET current_version_id = NULL WHERE article_id = $1
	`, articleID)
	if err != nil {
		return fmt.Errorf("deactivate document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deactivate document: no document with article id %s", articleID)
	}
	r.logger.Info("document deactivated", slog.String("article_id", articleID))
	return nil
}

var _ domain.RagDocumentRepository = (*DocumentRepository)(nil)
