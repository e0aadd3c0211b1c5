package backfill

import (
	"context"
	"fmt"
	"log/slog"
)

// pageSize is how many documents Runner requests per DocumentSource
// call.
const pageSize = 50

// IndexUsecase is the backfill runner's dependency on document
// indexing, satisfied by usecase.IndexArticleUsecase.
type IndexUsecase interface {
	Upsert(ctx context.Context, articleID, title, url, body string) error
}

// Runner drives a resumable backfill pass: it pages through a
// DocumentSource starting from the last saved Cursor, reindexes each
// document, and checkpoints progress after every page so a crash
// resumes without reprocessing the whole corpus.
type Runner struct {
	source  DocumentSource
	index   IndexUsecase
	cursors *CursorManager
	logger  *slog.Logger
}

func NewRunner(source DocumentSource, index IndexUsecase, cursors *CursorManager, logger *slog.Logger) *Runner {
	return &Runner{source: source, index: index, cursors: cursors, logger: logger}
}

// Run processes the entire corpus from the saved cursor forward,
// returning the number of documents reindexed. It holds the cursor's
// file lock for its duration so two backfill runs can't race.
func (r *Runner) Run(ctx context.Context) (int, error) {
	if err := r.cursors.Lock(); err != nil {
		return 0, fmt.Errorf("acquire cursor lock: %w", err)
	}
	defer func() {
		if err := r.cursors.Unlock(); err != nil {
			r.logger.Warn("cursor unlock failed", slog.String("error", err.Error()))
		}
	}()

	cursor, err := r.cursors.Load()
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}

	processed := 0
	for {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		docs, err := r.source.FetchSince(ctx, cursor.LastCreatedAt, cursor.LastID, pageSize)
		if err != nil {
			return processed, fmt.Errorf("fetch documents: %w", err)
		}
		if len(docs) == 0 {
			break
		}

		for _, doc := range docs {
			if err := r.index.Upsert(ctx, doc.ID, doc.Title, doc.URL, doc.Body); err != nil {
				return processed, fmt.Errorf("upsert document %s: %w", doc.ID, err)
			}
			processed++
			cursor.LastCreatedAt = doc.CreatedAt
			cursor.LastID = doc.ID
			cursor.ProcessedCount++
		}

		if err := r.cursors.Save(cursor); err != nil {
			return processed, fmt.Errorf("save cursor: %w", err)
		}
		r.logger.Info("backfill page processed",
			slog.Int("page_size", len(docs)),
			slog.Int("total_processed", cursor.ProcessedCount))

		if len(docs) < pageSize {
			break
		}
	}

	return processed, nil
}
