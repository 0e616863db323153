package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Job is a claimed unit of background work.
type Job struct {
	ID             string
	Queue          string
	JobType        string
	Payload        []byte
	Priority       int
	Attempts       int
	MaxRetries     int
	TimeoutSeconds int
	ScheduledAt    time.Time
	CreatedAt      time.Time
}

// EnqueueParams describes a job to insert.
type EnqueueParams struct {
	JobType        string
	Queue          string
	Payload        []byte
	Priority       int
	MaxRetries     int
	TimeoutSeconds int
	ScheduledAt    time.Time
}

// Enqueuer inserts jobs. It is the only part of the queue producers need.
type Enqueuer interface {
	Enqueue(ctx context.Context, params EnqueueParams) (string, error)
}

// Queue is the durable job table the worker polls.
type Queue interface {
	Enqueuer

	// ClaimNext locks the highest priority due job of queue (any queue when
	// empty) for workerID. It returns nil, nil when nothing is due.
	ClaimNext(ctx context.Context, workerID, queue string) (*Job, error)
	Complete(ctx context.Context, id string) error

	// Fail records message and reschedules the job with backoff while
	// retries remain; otherwise the job is marked failed.
	Fail(ctx context.Context, id, message string) error

	// DeleteFinished removes completed and failed jobs older than before.
	DeleteFinished(ctx context.Context, before time.Time) (int64, error)
}

// enqueueJSON marshals payload and enqueues it with the given settings.
func enqueueJSON(ctx context.Context, q Enqueuer, jobType, queue string, priority, maxRetries, timeoutSeconds int, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = q.Enqueue(ctx, EnqueueParams{
		JobType:        jobType,
		Queue:          queue,
		Payload:        payloadJSON,
		Priority:       priority,
		MaxRetries:     maxRetries,
		TimeoutSeconds: timeoutSeconds,
		ScheduledAt:    time.Now(),
	})
	return err
}
