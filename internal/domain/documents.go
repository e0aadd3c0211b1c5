package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Document is an ingested policy document, identified by a stable
// caller-supplied ArticleID (the source system's document identifier,
// field name kept from the teacher's article-centric schema since the
// retriever's contract depends on it unchanged).
type Document struct {
	ID               uuid.UUID
	ArticleID        string
	Title            string
	URL              string
	CurrentVersionID *uuid.UUID
}

// DocumentVersion is one immutable snapshot of a Document's source text.
type DocumentVersion struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	VersionNumber int
	SourceHash    string
	Title         string
	CreatedAt     time.Time
}

// Chunk is a persisted, embedding-sized passage belonging to a
// DocumentVersion.
type Chunk struct {
	ID         uuid.UUID
	VersionID  uuid.UUID
	Ordinal    int
	Content    string
	Hash       string
	CreatedAt  time.Time
	Embedding  []float32

	// Retrieval-time metadata, populated when the chunk is produced by
	// the ingestion pipeline and carried through to search results.
	ParentText       string
	ParentChunkIndex int
	PageNumber       int
	PageStart        int
	PageEnd          int
	SectionHeader    string
	Language         string
	FileType         string
}

// ChunkEventType is the kind of change DiffChunks assigns to a chunk
// position when comparing the previous version's chunks to the new
// version's chunks.
type ChunkEventType string

const (
	ChunkEventAdded     ChunkEventType = "added"
	ChunkEventUpdated   ChunkEventType = "updated"
	ChunkEventDeleted   ChunkEventType = "deleted"
	ChunkEventUnchanged ChunkEventType = "unchanged"
)

// ChunkEvent is one diff entry produced by DiffChunks and persisted via
// RagChunkRepository.InsertEvents for ingestion observability.
type ChunkEvent struct {
	Ordinal   int
	Type      ChunkEventType
	OldChunk  ChunkDraft
	NewChunk  ChunkDraft
}

// SearchResult is one hit returned by RagChunkRepository.Search /
// SearchWithinArticles — a persisted Chunk plus its retrieval score and
// denormalized document fields needed by the Retriever and Context
// Packer without a second round-trip.
type SearchResult struct {
	Chunk           Chunk
	Score           float64
	Title           string
	URL             string
	ArticleID       string
	DocumentVersion int
	Language        string
	PublishedAt     string
}

// LexicalSearchResult is one hit from the lexical (full-text) half of
// hybrid search, carrying only what Reciprocal Rank Fusion needs: the
// point identity and its rank in the lexical list.
type LexicalSearchResult struct {
	ChunkID uuid.UUID
	Rank    int
	Score   float64
}

// RagDocumentRepository persists Document/DocumentVersion records.
type RagDocumentRepository interface {
	GetByArticleID(ctx context.Context, articleID string) (*Document, error)
	CreateDocument(ctx context.Context, doc *Document) error
	UpdateCurrentVersion(ctx context.Context, docID uuid.UUID, versionID uuid.UUID) error
	GetLatestVersion(ctx context.Context, docID uuid.UUID) (*DocumentVersion, error)
	CreateVersion(ctx context.Context, version *DocumentVersion) error
	// DeactivateDocument removes a document from retrieval without
	// deleting its history: its current version pointer is cleared so
	// RagChunkRepository.Search never surfaces its chunks again.
	DeactivateDocument(ctx context.Context, articleID string) error
}

// RagChunkRepository persists Chunks and serves both halves of hybrid
// search.
type RagChunkRepository interface {
	BulkInsertChunks(ctx context.Context, chunks []Chunk) error
	GetChunksByVersionID(ctx context.Context, versionID uuid.UUID) ([]Chunk, error)
	InsertEvents(ctx context.Context, events []ChunkEvent) error

	// Search is the dense half of hybrid search: cosine-nearest chunks
	// to queryVector, across the whole corpus.
	Search(ctx context.Context, queryVector []float32, limit int) ([]SearchResult, error)
	// SearchWithinArticles restricts dense search to a set of document
	// IDs (used by the Context Expander's legacy-neighbor lookup).
	SearchWithinArticles(ctx context.Context, queryVector []float32, articleIDs []string, limit int) ([]SearchResult, error)
	// SearchLexical is the full-text half of hybrid search: tokenized,
	// lowercased, multilingual lookup of queryText against chunk
	// content.
	SearchLexical(ctx context.Context, queryText string, limit int) ([]LexicalSearchResult, error)
}

// TransactionManager runs fn within a single storage transaction.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RagJob is one queued ingestion job, polled by the worker.
type RagJob struct {
	ID        uuid.UUID
	JobType   string
	Payload   map[string]any
	Status    string
	Attempts  int
	CreatedAt time.Time
}

// RagJobRepository queues and dequeues ingestion jobs. AcquireNextJob
// is expected to atomically claim one pending job (e.g. via
// SELECT ... FOR UPDATE SKIP LOCKED) so multiple worker replicas can
// poll the same queue without double-processing.
type RagJobRepository interface {
	Enqueue(ctx context.Context, job *RagJob) error
	AcquireNextJob(ctx context.Context) (*RagJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error
}
