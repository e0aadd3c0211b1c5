package pgrepo

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"agentic-rag/internal/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDocumentRepository_GetByArticleID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDocumentRepository(mock, testLogger())

	mock.ExpectQuery("SELECT id, article_id, title, url, current_version_id").
		WithArgs("doc-404").
		WillReturnRows(pgxmock.NewRows([]string{"id", "article_id", "title", "url", "current_version_id"}))

	doc, err := repo.GetByArticleID(context.Background(), "doc-404")
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepository_GetByArticleID_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDocumentRepository(mock, testLogger())

	docID := uuid.New()
	versionID := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "article_id", "title", "url", "current_version_id"}).
		AddRow(docID, "doc-1", "HR Policy", "https://example.com/hr-policy", &versionID)

	mock.ExpectQuery("SELECT id, article_id, title, url, current_version_id").
		WithArgs("doc-1").
		WillReturnRows(rows)

	doc, err := repo.GetByArticleID(context.Background(), "doc-1")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, docID, doc.ID)
	assert.Equal(t, "doc-1", doc.ArticleID)
	require.NotNil(t, doc.CurrentVersionID)
	assert.Equal(t, versionID, *doc.CurrentVersionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepository_CreateDocument(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDocumentRepository(mock, testLogger())

	doc := &domain.Document{ID: uuid.New(), ArticleID: "doc-2", Title: "Leave Policy", URL: "https://example.com/leave"}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(doc.ID, doc.ArticleID, doc.Title, doc.URL, doc.CurrentVersionID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.CreateDocument(context.Background(), doc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepository_DeactivateDocument_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDocumentRepository(mock, testLogger())

	mock.ExpectExec("UPDATE documents SET current_version_id = NULL").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.DeactivateDocument(context.Background(), "missing")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
