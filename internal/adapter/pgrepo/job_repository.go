package pgrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agentic-rag/internal/domain"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// JobRepository queues and dequeues RagJob rows backing the ingestion
// worker's poll loop.
type JobRepository struct {
	pool   pgxPool
	logger *slog.Logger
}

func NewJobRepository(pool pgxPool, logger *slog.Logger) *JobRepository {
	return &JobRepository{pool: pool, logger: logger}
}

func (r *JobRepository) Enqueue(ctx context.Context, job *domain.RagJob) error {
	q := queryerFrom(ctx, r.pool)

	payload, err := sonic.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO rag_jobs (id, job_type, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, job.ID, job.JobType, payload, job.Status, job.Attempts, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	r.logger.Info("job enqueued", slog.String("id", job.ID.String()), slog.String("type", job.JobType))
	return nil
}

// AcquireNextJob atomically claims the oldest pending job with
// SELECT ... FOR UPDATE SKIP LOCKED, so multiple worker replicas polling
// the same queue never double-process a row, and bumps its status to
// "processing" and its attempt counter in the same transaction.
func (r *JobRepository) AcquireNextJob(ctx context.Context) (*domain.RagJob, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin acquire transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var job domain.RagJob
	var payload []byte
	err = tx.QueryRow(ctx, `
		SELECT id, job_type, payload, status, attempts, created_at
		FROM rag_jobs
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&job.ID, &job.JobType, &payload, &job.Status, &job.Attempts, &job.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire next job: %w", err)
	}

	if err := sonic.Unmarshal(payload, &job.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal job payload: %w", err)
	}

	job.Attempts++
	job.Status = "processing"
	_, err = tx.Exec(ctx, `
		UPDATE rag_jobs SET status = 'processing', attempts = $2 WHERE id = $1
	`, job.ID, job.Attempts)
	if err != nil {
		return nil, fmt.Errorf("mark job processing: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit acquire transaction: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	q := queryerFrom(ctx, r.pool)

	_, err := q.Exec(ctx, `
		UPDATE rag_jobs SET status = $2, error_message = $3 WHERE id = $1
	`, id, status, errorMessage)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

var _ domain.RagJobRepository = (*JobRepository)(nil)
