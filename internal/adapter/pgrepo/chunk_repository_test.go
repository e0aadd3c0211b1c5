package pgrepo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var searchResultColumnNames = []string{
	"id", "version_id", "ordinal", "content", "hash", "created_at",
	"parent_text", "parent_chunk_index", "page_number", "page_start", "page_end",
	"section_header", "language", "file_type",
	"title", "url", "article_id", "version_number", "score",
}

func TestChunkRepository_Search(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewChunkRepository(mock, testLogger())
	chunkID := uuid.New()
	versionID := uuid.New()

	rows := pgxmock.NewRows(searchResultColumnNames).
		AddRow(chunkID, versionID, 0, "Employees accrue 20 days of annual leave.", "hash-1", time.Now(),
			"", 0, 0, 0, 0, "Leave Policy", "en", "md",
			"Leave Policy", "https://example.com/leave", "doc-1", 1, 0.87)

	mock.ExpectQuery("SELECT").
		WillReturnRows(rows)

	results, err := repo.Search(context.Background(), make([]float32, 768), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunkID, results[0].Chunk.ID)
	assert.Equal(t, "doc-1", results[0].ArticleID)
	assert.InDelta(t, 0.87, results[0].Score, 0.0001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkRepository_SearchWithinArticles_EmptyInput(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewChunkRepository(mock, testLogger())

	results, err := repo.SearchWithinArticles(context.Background(), make([]float32, 768), nil, 10)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkRepository_SearchLexical(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewChunkRepository(mock, testLogger())
	chunkID := uuid.New()

	rows := pgxmock.NewRows([]string{"id", "score"}).AddRow(chunkID, 0.42)
	mock.ExpectQuery("SELECT c.id, ts_rank").
		WithArgs("annual leave days", 10).
		WillReturnRows(rows)

	results, err := repo.SearchLexical(context.Background(), "annual leave days", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunkID, results[0].ChunkID)
	assert.Equal(t, 0, results[0].Rank)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkRepository_InsertEvents_EmptyIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewChunkRepository(mock, testLogger())
	require.NoError(t, repo.InsertEvents(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
