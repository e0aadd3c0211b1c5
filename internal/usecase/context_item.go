package usecase

import "github.com/google/uuid"

// ContextItem is one packed passage handed to the Generator and echoed
// back to callers as a citation source. It is the usecase-layer view of
// a domain.CandidateDocument after Context Packer has decided it fits
// the token budget.
type ContextItem struct {
	ChunkID         uuid.UUID
	ChunkText       string
	URL             string
	Title           string
	PublishedAt     string
	Score           float64
	DocumentVersion int
}
