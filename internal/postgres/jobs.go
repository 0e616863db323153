package postgres

import (
	"context"
	"time"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/jobs"
	"github.com/google/uuid"
)

// JobQueue is the jobs table. Claiming uses FOR UPDATE SKIP LOCKED so any
// number of workers can poll the same queue.
type JobQueue struct {
	db *DB
}

func NewJobQueue(db *DB) *JobQueue {
	return &JobQueue{db: db}
}

var _ jobs.Queue = (*JobQueue)(nil)

// Enqueue joins the caller's transaction when there is one, so a job is only
// visible once the state change that produced it commits.
func (q *JobQueue) Enqueue(ctx context.Context, p jobs.EnqueueParams) (string, error) {
	id := uuid.NewString()
	scheduled := p.ScheduledAt
	if scheduled.IsZero() {
		scheduled = time.Now().UTC()
	}
	_, err := q.db.conn(ctx).Exec(ctx, `
		INSERT INTO jobs (id, queue, job_type, payload, priority, max_retries, timeout_seconds, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, p.Queue, p.JobType, p.Payload, p.Priority, p.MaxRetries, p.TimeoutSeconds, scheduled)
	if err != nil {
		return "", domain.Internal(err, "job.enqueue", "failed to enqueue job")
	}
	return id, nil
}

func (q *JobQueue) ClaimNext(ctx context.Context, workerID, queue string) (*jobs.Job, error) {
	var j jobs.Job
	err := q.db.conn(ctx).QueryRow(ctx, `
		UPDATE jobs SET status = 'running', worker_id = $1, started_at = NOW(), attempts = attempts + 1
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending' AND scheduled_at <= NOW() AND ($2 = '' OR queue = $2)
			ORDER BY priority DESC, scheduled_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, queue, job_type, payload, priority, attempts, max_retries, timeout_seconds, scheduled_at, created_at`,
		workerID, queue).Scan(&j.ID, &j.Queue, &j.JobType, &j.Payload, &j.Priority, &j.Attempts,
		&j.MaxRetries, &j.TimeoutSeconds, &j.ScheduledAt, &j.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, domain.Internal(err, "job.claim", "failed to claim job")
	}
	return &j, nil
}

func (q *JobQueue) Complete(ctx context.Context, id string) error {
	if _, err := q.db.conn(ctx).Exec(ctx,
		`UPDATE jobs SET status = 'completed', completed_at = NOW(), error_message = '' WHERE id = $1`, id); err != nil {
		return domain.Internal(err, "job.complete", "failed to complete job")
	}
	return nil
}

// Fail reschedules with quadratic backoff (attempts squared, in minutes)
// until max_retries is used up.
func (q *JobQueue) Fail(ctx context.Context, id, message string) error {
	if _, err := q.db.conn(ctx).Exec(ctx, `
		UPDATE jobs SET
			error_message = $2,
			status = CASE WHEN attempts < max_retries THEN 'pending' ELSE 'failed' END,
			scheduled_at = CASE WHEN attempts < max_retries
				THEN NOW() + make_interval(mins => attempts * attempts)
				ELSE scheduled_at END,
			completed_at = CASE WHEN attempts < max_retries THEN NULL ELSE NOW() END
		WHERE id = $1`, id, message); err != nil {
		return domain.Internal(err, "job.fail", "failed to record job failure")
	}
	return nil
}

func (q *JobQueue) DeleteFinished(ctx context.Context, before time.Time) (int64, error) {
	tag, err := q.db.conn(ctx).Exec(ctx,
		`DELETE FROM jobs WHERE status IN ('completed', 'failed') AND completed_at < $1`, before)
	if err != nil {
		return 0, domain.Internal(err, "job.delete_finished", "failed to delete finished jobs")
	}
	return tag.RowsAffected(), nil
}
