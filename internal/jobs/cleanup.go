package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Job type constants for cleanup jobs
const (
	JobTypeCleanupFinishedJobs = "cleanup:finished_jobs"
)

// CleanupFinishedJobsPayload sets how long finished jobs are kept.
type CleanupFinishedJobsPayload struct {
	RetentionDays int `json:"retention_days"`
}

const defaultRetentionDays = 14

// EnqueueCleanupFinishedJobs schedules removal of old completed and failed jobs.
func EnqueueCleanupFinishedJobs(ctx context.Context, q Enqueuer, retentionDays int) error {
	// Low priority, no retry: the next scheduled run picks up what this one missed.
	return enqueueJSON(ctx, q, JobTypeCleanupFinishedJobs, "cleanup", 10, 1, 60,
		CleanupFinishedJobsPayload{RetentionDays: retentionDays})
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	JobsDeleted int64 `json:"jobs_deleted"`
}

// ProcessCleanupJob processes a cleanup job based on its type
func ProcessCleanupJob(ctx context.Context, job *Job, q Queue) (*CleanupResult, error) {
	switch job.JobType {
	case JobTypeCleanupFinishedJobs:
		var payload CleanupFinishedJobsPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cleanup payload: %w", err)
		}
		days := payload.RetentionDays
		if days <= 0 {
			days = defaultRetentionDays
		}
		n, err := q.DeleteFinished(ctx, time.Now().AddDate(0, 0, -days))
		if err != nil {
			return nil, fmt.Errorf("failed to delete finished jobs: %w", err)
		}
		return &CleanupResult{JobsDeleted: n}, nil
	default:
		return nil, fmt.Errorf("unknown cleanup job type: %s", job.JobType)
	}
}

// IsCleanupJob checks if a job type is a cleanup job
func IsCleanupJob(jobType string) bool {
	return jobType == JobTypeCleanupFinishedJobs
}
