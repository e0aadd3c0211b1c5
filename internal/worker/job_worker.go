package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"agentic-rag/internal/domain"

	"github.com/google/uuid"
)

// jobTimeout bounds how long a single job's Upsert call may run before
// its context is cancelled.
const jobTimeout = 2 * time.Minute

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
)

// pollInterval is how often the worker checks for a new job when the
// queue was last found empty.
const pollInterval = 2 * time.Second

// JobRepository is the worker's dependency on the job queue.
type JobRepository interface {
	Enqueue(ctx context.Context, job *domain.RagJob) error
	AcquireNextJob(ctx context.Context) (*domain.RagJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error
}

// IndexUsecase is the worker's dependency on document indexing.
type IndexUsecase interface {
	Upsert(ctx context.Context, articleID, title, url, body string) error
	Delete(ctx context.Context, articleID string) error
}

// JobWorker polls JobRepository for pending ingestion jobs and runs
// them through IndexUsecase, backing off exponentially between polls
// after consecutive failures so a broken downstream dependency (the
// embedder, most often) doesn't spin the queue.
type JobWorker struct {
	repo    JobRepository
	index   IndexUsecase
	logger  *slog.Logger
	backoff time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

func NewJobWorker(repo JobRepository, index IndexUsecase, logger *slog.Logger) *JobWorker {
	return &JobWorker{
		repo:   repo,
		index:  index,
		logger: logger,
	}
}

// Start begins polling in a background goroutine. Safe to call at most
// once per worker; a second call is a no-op.
func (w *JobWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go w.run()
}

// Stop signals the poll loop to exit and waits for it to finish.
func (w *JobWorker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()
	<-done
}

func (w *JobWorker) run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		w.processNextJob()

		wait := pollInterval
		if w.backoff > 0 {
			wait = w.backoff
		}

		select {
		case <-w.stopCh:
			return
		case <-time.After(wait):
		}
	}
}

// processNextJob claims and runs a single job, if one is available. It
// returns false when the queue was empty or claiming failed.
func (w *JobWorker) processNextJob() bool {
	ctx := context.Background()
	job, err := w.repo.AcquireNextJob(ctx)
	if err != nil {
		w.logger.Error("acquire next job failed", slog.String("error", err.Error()))
		return false
	}
	if job == nil {
		return false
	}

	runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	err = w.runJob(runCtx, job)

	if err != nil {
		w.backoff = w.nextBackoff(w.backoff)
		reason := err.Error()
		w.logger.Error("job failed",
			slog.String("job_id", job.ID.String()),
			slog.String("job_type", job.JobType),
			slog.String("error", reason),
			slog.Duration("backoff", w.backoff))
		_ = w.repo.UpdateStatus(ctx, job.ID, "failed", &reason)
		return true
	}

	w.backoff = 0
	_ = w.repo.UpdateStatus(ctx, job.ID, "done", nil)
	return true
}

func (w *JobWorker) runJob(ctx context.Context, job *domain.RagJob) error {
	switch job.JobType {
	case "backfill_article", "index_article":
		articleID, _ := job.Payload["article_id"].(string)
		title, _ := job.Payload["title"].(string)
		url, _ := job.Payload["url"].(string)
		body, _ := job.Payload["body"].(string)
		return w.index.Upsert(ctx, articleID, title, url, body)
	case "delete_article":
		articleID, _ := job.Payload["article_id"].(string)
		return w.index.Delete(ctx, articleID)
	default:
		return fmt.Errorf("unknown job type %q", job.JobType)
	}
}

// nextBackoff doubles prev, starting at initialBackoff and capping at
// maxBackoff.
func (w *JobWorker) nextBackoff(prev time.Duration) time.Duration {
	if prev <= 0 {
		return initialBackoff
	}
	next := prev * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
