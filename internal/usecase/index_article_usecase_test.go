package usecase_test

import (
	"context"
	"testing"

	"agentic-rag/internal/domain"
	"agentic-rag/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

type MockRagDocumentRepository struct {
	mock.Mock
}

func (m *MockRagDocumentRepository) GetByArticleID(ctx context.Context, articleID string) (*domain.Document, error) {
	args := m.Called(ctx, articleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockRagDocumentRepository) CreateDocument(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockRagDocumentRepository) UpdateCurrentVersion(ctx context.Context, docID uuid.UUID, versionID uuid.UUID) error {
	args := m.Called(ctx, docID, versionID)
	return args.Error(0)
}

func (m *MockRagDocumentRepository) GetLatestVersion(ctx context.Context, docID uuid.UUID) (*domain.DocumentVersion, error) {
	args := m.Called(ctx, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentVersion), args.Error(1)
}

func (m *MockRagDocumentRepository) CreateVersion(ctx context.Context, version *domain.DocumentVersion) error {
	args := m.Called(ctx, version)
	return args.Error(0)
}

func (m *MockRagDocumentRepository) DeactivateDocument(ctx context.Context, articleID string) error {
	args := m.Called(ctx, articleID)
	return args.Error(0)
}

type MockRagChunkRepository struct {
	mock.Mock
}

func (m *MockRagChunkRepository) BulkInsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockRagChunkRepository) GetChunksByVersionID(ctx context.Context, versionID uuid.UUID) ([]domain.Chunk, error) {
	args := m.Called(ctx, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

func (m *MockRagChunkRepository) InsertEvents(ctx context.Context, events []domain.ChunkEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockRagChunkRepository) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.SearchResult, error) {
	args := m.Called(ctx, queryVector, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

func (m *MockRagChunkRepository) SearchWithinArticles(ctx context.Context, queryVector []float32, articleIDs []string, limit int) ([]domain.SearchResult, error) {
	args := m.Called(ctx, queryVector, articleIDs, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

func (m *MockRagChunkRepository) SearchLexical(ctx context.Context, queryText string, limit int) ([]domain.LexicalSearchResult, error) {
	args := m.Called(ctx, queryText, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LexicalSearchResult), args.Error(1)
}

type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- Tests ---

func TestIndexArticle_Upsert_Idempotency(t *testing.T) {
	mockDocRepo := new(MockRagDocumentRepository)
	mockChunkRepo := new(MockRagChunkRepository)
	mockTxManager := new(MockTransactionManager)

	hasher := domain.NewSourceHashPolicy()
	chunker := domain.NewChunker()

	uc := usecase.NewIndexArticleUsecase(
		mockDocRepo, mockChunkRepo, mockTxManager, hasher, chunker, nil,
	)

	ctx := context.Background()
	articleID := "article-123"
	title := "Test Title"
	body := "Test Body"

	sourceHash := hasher.Compute(title, body)
	docID := uuid.New()
	verID := uuid.New()

	mockDocRepo.On("GetByArticleID", ctx, articleID).Return(&domain.Document{
		ID:               docID,
		ArticleID:        articleID,
		CurrentVersionID: &verID,
	}, nil)

	mockDocRepo.On("GetLatestVersion", ctx, docID).Return(&domain.DocumentVersion{
		ID:         verID,
		DocumentID: docID,
		SourceHash: sourceHash,
		Title:      title,
	}, nil)

	err := uc.Upsert(ctx, articleID, title, "", body)

	assert.NoError(t, err)
	mockDocRepo.AssertExpectations(t)
	mockChunkRepo.AssertExpectations(t) // Should not be called
}

func TestIndexArticle_Upsert_NewArticle(t *testing.T) {
	mockDocRepo := new(MockRagDocumentRepository)
	mockChunkRepo := new(MockRagChunkRepository)
	mockTxManager := new(MockTransactionManager)
	hasher := domain.NewSourceHashPolicy()
	chunker := domain.NewChunker()

	uc := usecase.NewIndexArticleUsecase(
		mockDocRepo, mockChunkRepo, mockTxManager, hasher, chunker, nil,
	)

	ctx := context.Background()
	articleID := "new-article"
	title := "New Title"
	body := "Paragraph 1.\n\nParagraph 2."

	mockDocRepo.On("GetByArticleID", ctx, articleID).Return(nil, nil)

	mockDocRepo.On("CreateDocument", ctx, mock.MatchedBy(func(d *domain.Document) bool {
		return d.ArticleID == articleID
	})).Return(nil)

	mockDocRepo.On("CreateVersion", ctx, mock.MatchedBy(func(v *domain.DocumentVersion) bool {
		return v.VersionNumber == 1
	})).Return(nil)

	// Both paragraphs are short (< MinChunkLength) so the chunker merges
	// them into a single chunk.
	mockChunkRepo.On("BulkInsertChunks", ctx, mock.MatchedBy(func(chunks []domain.Chunk) bool {
		return len(chunks) == 1
	})).Return(nil)

	mockChunkRepo.On("InsertEvents", ctx, mock.MatchedBy(func(events []domain.ChunkEvent) bool {
		return len(events) == 1 && events[0].Type == domain.ChunkEventAdded
	})).Return(nil)

	mockDocRepo.On("UpdateCurrentVersion", ctx, mock.Anything, mock.Anything).Return(nil)

	err := uc.Upsert(ctx, articleID, title, "", body)
	assert.NoError(t, err)
	mockDocRepo.AssertExpectations(t)
	mockChunkRepo.AssertExpectations(t)
}

func TestIndexArticle_Upsert_Update(t *testing.T) {
	mockDocRepo := new(MockRagDocumentRepository)
	mockChunkRepo := new(MockRagChunkRepository)
	mockTxManager := new(MockTransactionManager)
	hasher := domain.NewSourceHashPolicy()
	chunker := domain.NewChunker()

	uc := usecase.NewIndexArticleUsecase(
		mockDocRepo, mockChunkRepo, mockTxManager, hasher, chunker, nil,
	)

	ctx := context.Background()
	articleID := "update-article"
	title := "Update Title"
	// All three paragraphs are short, so they merge into a single chunk
	// whose content differs from the stored old chunk below.
	body := "Start.\n\nMiddle.\n\nEnd."

	docID := uuid.New()
	verID := uuid.New()

	mockDocRepo.On("GetByArticleID", ctx, articleID).Return(&domain.Document{
		ID:               docID,
		ArticleID:        articleID,
		CurrentVersionID: &verID,
	}, nil)

	mockDocRepo.On("GetLatestVersion", ctx, docID).Return(&domain.DocumentVersion{
		ID:            verID,
		VersionNumber: 1,
		SourceHash:    "old-hash",
	}, nil)

	mockChunkRepo.On("GetChunksByVersionID", ctx, verID).Return([]domain.Chunk{
		{Ordinal: 0, Content: "Start.\n\nEnd.", ID: uuid.New()},
	}, nil)

	mockDocRepo.On("CreateVersion", ctx, mock.MatchedBy(func(v *domain.DocumentVersion) bool {
		return v.VersionNumber == 2
	})).Return(nil)

	mockChunkRepo.On("BulkInsertChunks", ctx, mock.MatchedBy(func(chunks []domain.Chunk) bool {
		return len(chunks) == 1
	})).Return(nil)

	mockChunkRepo.On("InsertEvents", ctx, mock.MatchedBy(func(events []domain.ChunkEvent) bool {
		return len(events) == 1
	})).Return(nil)

	mockDocRepo.On("UpdateCurrentVersion", ctx, docID, mock.Anything).Return(nil)

	err := uc.Upsert(ctx, articleID, title, "", body)
	assert.NoError(t, err)
	mockDocRepo.AssertExpectations(t)
	mockChunkRepo.AssertExpectations(t)
}
