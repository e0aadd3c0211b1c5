package backfill

import (
	"context"
	"time"
)

// SourceDocument is one record read from an upstream document
// repository (a policy/HR document management system, a wiki export,
// an object-storage bucket of source files) during a backfill pass.
type SourceDocument struct {
	ID        string
	Title     string
	URL       string
	Body      string
	CreatedAt time.Time
}

// DocumentSource pages through an upstream document repository in
// stable (CreatedAt, ID) order so a Cursor can resume a partial pass.
// afterID breaks ties among documents sharing the same CreatedAt
// second; pass "" to start from the first document at or after since.
type DocumentSource interface {
	FetchSince(ctx context.Context, since time.Time, afterID string, limit int) ([]SourceDocument, error)
}
