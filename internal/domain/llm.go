package domain

import "context"

// LLMResponse is a non-streaming completion.
type LLMResponse struct {
	Text string
	Done bool
}

// LLMStreamChunk is one increment of a streamed completion, mirroring
// Ollama's /api/chat streaming payload shape closely enough that an
// adapter can populate it directly off the wire.
type LLMStreamChunk struct {
	Response        string
	Thinking        string
	Model           string
	Done            bool
	DoneReason      string
	PromptEvalCount *int
	EvalCount       *int
	TotalDuration   *int64
}

// LLMClient is the Generator's and Rewriter's dependency on a chat
// model. Generate/GenerateStream take a single prompt string; Chat/
// ChatStream take a full message history, needed when the Generator
// assembles a system + user message pair.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (*LLMResponse, error)
	GenerateStream(ctx context.Context, prompt string, maxTokens int) (<-chan LLMStreamChunk, <-chan error, error)
	Chat(ctx context.Context, messages []Message, maxTokens int) (*LLMResponse, error)
	ChatStream(ctx context.Context, messages []Message, maxTokens int) (<-chan LLMStreamChunk, <-chan error, error)
	Version() string
}

// VectorEncoder is the Retriever's dependency on an embedding model.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}

// RerankCandidate is one passage submitted to a Reranker, carrying the
// caller's own ID so results can be mapped back without relying on
// index stability across the wire.
type RerankCandidate struct {
	ID      string
	Content string
	Score   float64 // retrieval-time score, carried through for combined_score
}

// RerankResult is one scored passage returned by a Reranker. A Reranker
// does not guarantee any order of its results.
type RerankResult struct {
	ID    string
	Score float32
}

// Reranker is the Reranker node's dependency on a cross-encoder model.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankResult, error)
	ModelName() string
}
